package flow

import (
	"context"
	"os"
	"testing"
	"time"

	ConfigBuilder "github.com/keloran/go-config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

func setupTestDatabase(t *testing.T) (*postgres.PostgresContainer, *ConfigBuilder.Config) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := ConfigBuilder.NewConfigNoVault()
	if err := cfg.Build(ConfigBuilder.Postgres); err != nil {
		require.NoError(t, err)
	}

	if err := cfg.Database.ParseConnectionString(connStr); err != nil {
		require.NoError(t, err)
	}
	cfg.Database.Details.ConnectionTimeout = 30 * time.Second

	// Wait a bit to ensure database is fully ready
	time.Sleep(2 * time.Second)

	client, err := cfg.Database.GetPGXPoolClient(ctx)
	require.NoError(t, err)
	defer client.Close()

	flowSQL, err := os.ReadFile("../../sql/flow.sql")
	require.NoError(t, err)
	_, err = client.Exec(ctx, string(flowSQL))
	if err != nil {
		t.Fatalf("Failed to execute flow schema SQL: %v", err)
	}

	return pgContainer, cfg
}

func teardown(t *testing.T, pgContainer *postgres.PostgresContainer) {
	if pgContainer != nil {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

func testFlow() structs.Flow {
	return structs.Flow{
		Name:        "Hair loss anamnesis",
		Description: "Tag-driven hair loss intake",
		IsActive:    true,
		Tags:        []structs.Tag{"queda_moderada"},
		Blocks: []structs.Block{
			{
				ID: "b-q1", Type: structs.BlockQuestion, Active: true, Title: "Hair loss",
				Question: &structs.QuestionData{Question: structs.Question{
					ID:         "q1",
					Prompt:     "Are you experiencing moderate hair loss?",
					AnswerType: structs.AnswerBoolean,
					TagRules:   map[string][]structs.Tag{"true": {"queda_moderada"}},
				}},
			},
			{
				ID: "b-diag", Type: structs.BlockDiagnosis, Active: true, Title: "Diagnosis",
				Diagnosis: &structs.DiagnosisData{Rules: []structs.DiagnosticRule{
					{
						ID: "r1", Title: "Moderate hair loss", Priority: 1, IsActive: true,
						Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_moderada"}, Logic: structs.LogicAnd},
					},
				}},
			},
			{ID: "b-checkout", Type: structs.BlockCheckout, Active: true, Title: "Checkout", Checkout: &structs.CheckoutData{}},
		},
	}
}

func TestSystem_CreateAndGetFlow(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	created, err := s.CreateFlow(&f)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.ID, created.BaseID)

	got, err := s.GetFlow(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hair loss anamnesis", got.Name)
	assert.True(t, got.IsActive)
	require.Len(t, got.Blocks, 3)

	// the block union survives the jsonb round trip
	assert.Equal(t, structs.BlockQuestion, got.Blocks[0].Type)
	require.NotNil(t, got.Blocks[0].Question)
	assert.Equal(t, []structs.Tag{"queda_moderada"}, got.Blocks[0].Question.Question.TagRules["true"])
	require.NotNil(t, got.Blocks[1].Diagnosis)
	assert.Equal(t, 1, got.Blocks[1].Diagnosis.Rules[0].Priority)
}

func TestSystem_CreateFlow_RejectsInvalid(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	f.Blocks = append(f.Blocks, f.Blocks[0]) // duplicate block id
	_, err := s.CreateFlow(&f)
	assert.Error(t, err)
}

func TestSystem_UpdateFlow(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	created, err := s.CreateFlow(&f)
	require.NoError(t, err)

	created.Name = "Hair loss anamnesis v2"
	created.Blocks = created.Blocks[:2]
	updated, err := s.UpdateFlow(created)
	require.NoError(t, err)

	got, err := s.GetFlow(updated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hair loss anamnesis v2", got.Name)
	assert.Len(t, got.Blocks, 2)
}

func TestSystem_UpdateFlow_NotFound(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	f.ID = "00000000-0000-0000-0000-000000000000"
	f.BaseID = f.ID
	_, err := s.UpdateFlow(&f)
	assert.Error(t, err)
}

func TestSystem_DeleteFlow(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	created, err := s.CreateFlow(&f)
	require.NoError(t, err)

	require.NoError(t, s.DeleteFlow(created.ID))

	_, err = s.GetFlow(created.ID)
	assert.Error(t, err)

	assert.Error(t, s.DeleteFlow(created.ID))
}

func TestSystem_DuplicateFlow(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	created, err := s.CreateFlow(&f)
	require.NoError(t, err)

	dup, err := s.DuplicateFlow(created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, dup.ID)
	assert.Equal(t, created.BaseID, dup.BaseID)
	assert.Equal(t, "Hair loss anamnesis (copy)", dup.Name)
	assert.False(t, dup.IsActive)
	require.Len(t, dup.Blocks, 3)

	// fresh block ids, identical payloads
	for i := range created.Blocks {
		assert.NotEqual(t, created.Blocks[i].ID, dup.Blocks[i].ID)
	}
	assert.Equal(t, created.Blocks[0].Question, dup.Blocks[0].Question)
}

func TestSystem_SetFlowStatusAndList(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	s := NewSystem(cfg).SetContext(context.Background())

	f := testFlow()
	created, err := s.CreateFlow(&f)
	require.NoError(t, err)

	got, err := s.SetFlowStatus(created.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, err := s.AllFlows()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, 3, list[0].BlockCount)
	assert.False(t, list[0].IsActive)
}

func TestSystem_GetFlow_MissVsOutage(t *testing.T) {
	pgContainer, cfg := setupTestDatabase(t)
	defer teardown(t, pgContainer)

	sys := NewSystem(cfg).SetContext(context.Background())

	// a missing id is a not-found, mapped to 404
	_, err := sys.GetFlow("00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.IsFlowNotFound(err))

	// a database outage is a transport failure, never a not-found
	require.NoError(t, pgContainer.Terminate(context.Background()))
	_, err = sys.GetFlow("00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.False(t, errors.IsFlowNotFound(err))
}
