package flow

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/bugfixes/go-bugfixes/logs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	ConfigBuilder "github.com/keloran/go-config"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/stepper"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

type System struct {
	Config  *ConfigBuilder.Config
	Context context.Context
}

func NewSystem(cfg *ConfigBuilder.Config) *System {
	return &System{
		Config:  cfg,
		Context: context.Background(),
	}
}

func (s *System) SetContext(ctx context.Context) *System {
	s.Context = ctx
	return s
}

// FlowSummary is the list view of a flow, blocks omitted.
type FlowSummary struct {
	ID          string    `json:"id"`
	BaseID      string    `json:"baseId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	BlockCount  int       `json:"blockCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s *System) AllFlows() ([]FlowSummary, error) {
	var ff []FlowSummary
	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return ff, logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	rows, err := client.Query(s.Context, `
		SELECT
			flow_id,
			base_flow_id,
			name,
			description,
			is_active,
			jsonb_array_length(blocks),
			created_at,
			updated_at
		FROM flows
		ORDER BY updated_at DESC`)
	if err != nil {
		return ff, logs.Errorf("failed to query flows: %v", err)
	}
	defer rows.Close()

	type dataStruct struct {
		FlowID      sql.NullString
		BaseID      sql.NullString
		Name        sql.NullString
		Description sql.NullString
		IsActive    sql.NullBool
		BlockCount  sql.NullInt32
		CreatedAt   sql.NullTime
		UpdatedAt   sql.NullTime
	}

	for rows.Next() {
		d := dataStruct{}
		if err := rows.Scan(
			&d.FlowID,
			&d.BaseID,
			&d.Name,
			&d.Description,
			&d.IsActive,
			&d.BlockCount,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return ff, logs.Errorf("failed to load flows: %v", err)
		}

		ff = append(ff, FlowSummary{
			ID:          d.FlowID.String,
			BaseID:      d.BaseID.String,
			Name:        d.Name.String,
			Description: d.Description.String,
			IsActive:    d.IsActive.Bool,
			BlockCount:  int(d.BlockCount.Int32),
			CreatedAt:   d.CreatedAt.Time,
			UpdatedAt:   d.UpdatedAt.Time,
		})
	}

	return ff, nil
}

func (s *System) CreateFlow(f *structs.Flow) (*structs.Flow, error) {
	if err := stepper.ValidateFlow(*f); err != nil {
		return nil, err
	}

	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return nil, logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.BaseID == "" {
		f.BaseID = f.ID
	}
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now

	blocks, tagList, err := marshalFlowColumns(f)
	if err != nil {
		return nil, err
	}

	if _, err := client.Exec(s.Context, `
		INSERT INTO flows (flow_id, base_flow_id, name, description, is_active, blocks, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.BaseID, f.Name, f.Description, f.IsActive, blocks, tagList, f.CreatedAt, f.UpdatedAt); err != nil {
		return nil, logs.Errorf("failed to store flow: %v", err)
	}

	return f, nil
}

func (s *System) GetFlow(flowId string) (*structs.Flow, error) {
	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return nil, logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	type dataStruct struct {
		BaseID      sql.NullString
		Name        sql.NullString
		Description sql.NullString
		IsActive    sql.NullBool
		Blocks      []byte
		Tags        []byte
		CreatedAt   sql.NullTime
		UpdatedAt   sql.NullTime
	}
	d := dataStruct{}

	if err := client.QueryRow(s.Context, `
		SELECT
			base_flow_id,
			name,
			description,
			is_active,
			blocks,
			tags,
			created_at,
			updated_at
		FROM flows
		WHERE flow_id = $1`, flowId).Scan(
		&d.BaseID,
		&d.Name,
		&d.Description,
		&d.IsActive,
		&d.Blocks,
		&d.Tags,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WrapFlowError(errors.ErrFlowNotFound, flowId, "")
		}
		return nil, logs.Errorf("failed to get flow: %v", err)
	}

	f := &structs.Flow{
		ID:          flowId,
		BaseID:      d.BaseID.String,
		Name:        d.Name.String,
		Description: d.Description.String,
		IsActive:    d.IsActive.Bool,
		CreatedAt:   d.CreatedAt.Time,
		UpdatedAt:   d.UpdatedAt.Time,
	}
	if len(d.Blocks) > 0 {
		if err := json.Unmarshal(d.Blocks, &f.Blocks); err != nil {
			return nil, logs.Errorf("failed to unmarshal blocks: %v", err)
		}
	}
	if len(d.Tags) > 0 {
		if err := json.Unmarshal(d.Tags, &f.Tags); err != nil {
			return nil, logs.Errorf("failed to unmarshal tags: %v", err)
		}
	}

	return f, nil
}

func (s *System) UpdateFlow(f *structs.Flow) (*structs.Flow, error) {
	if err := stepper.ValidateFlow(*f); err != nil {
		return nil, err
	}

	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return nil, logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	f.UpdatedAt = time.Now()
	blocks, tagList, err := marshalFlowColumns(f)
	if err != nil {
		return nil, err
	}

	tag, err := client.Exec(s.Context, `
		UPDATE flows
		SET name = $2, description = $3, is_active = $4, blocks = $5, tags = $6, updated_at = $7
		WHERE flow_id = $1`,
		f.ID, f.Name, f.Description, f.IsActive, blocks, tagList, f.UpdatedAt)
	if err != nil {
		return nil, logs.Errorf("failed to update flow: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.WrapFlowError(errors.ErrFlowNotFound, f.ID, "")
	}

	return f, nil
}

func (s *System) DeleteFlow(flowId string) error {
	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	tag, err := client.Exec(s.Context, `DELETE FROM flows WHERE flow_id = $1`, flowId)
	if err != nil {
		return logs.Errorf("failed to delete flow: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.WrapFlowError(errors.ErrFlowNotFound, flowId, "")
	}

	return nil
}

// DuplicateFlow deep-copies a stored flow under a fresh id. Block ids
// are re-minted recursively so the copy cannot collide with the source;
// payload-internal ids (questions, rules, plans) are scoped to their
// flow and carry over unchanged. The copy starts inactive.
func (s *System) DuplicateFlow(flowId string) (*structs.Flow, error) {
	src, err := s.GetFlow(flowId)
	if err != nil {
		return nil, err
	}

	copied, err := deepCopyFlow(*src)
	if err != nil {
		return nil, err
	}

	copied.ID = uuid.NewString()
	copied.BaseID = src.BaseID
	copied.Name = src.Name + " (copy)"
	copied.IsActive = false
	freshBlockIDs(copied.Blocks)

	return s.CreateFlow(&copied)
}

func (s *System) SetFlowStatus(flowId string, active bool) (*structs.Flow, error) {
	client, err := s.Config.Database.GetPGXPoolClient(s.Context)
	if err != nil {
		return nil, logs.Errorf("failed to connect to database: %v", err)
	}
	defer client.Close()

	tag, err := client.Exec(s.Context,
		`UPDATE flows SET is_active = $2, updated_at = $3 WHERE flow_id = $1`,
		flowId, active, time.Now())
	if err != nil {
		return nil, logs.Errorf("failed to update flow status: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.WrapFlowError(errors.ErrFlowNotFound, flowId, "")
	}

	return s.GetFlow(flowId)
}

func marshalFlowColumns(f *structs.Flow) ([]byte, []byte, error) {
	if f.Blocks == nil {
		f.Blocks = []structs.Block{}
	}
	blocks, err := json.Marshal(f.Blocks)
	if err != nil {
		return nil, nil, logs.Errorf("failed to marshal blocks: %v", err)
	}

	if f.Tags == nil {
		f.Tags = []structs.Tag{}
	}
	tagList, err := json.Marshal(f.Tags)
	if err != nil {
		return nil, nil, logs.Errorf("failed to marshal tags: %v", err)
	}

	return blocks, tagList, nil
}

func deepCopyFlow(f structs.Flow) (structs.Flow, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return structs.Flow{}, err
	}
	var out structs.Flow
	if err := json.Unmarshal(data, &out); err != nil {
		return structs.Flow{}, err
	}
	return out, nil
}

func freshBlockIDs(blocks []structs.Block) {
	for i := range blocks {
		blocks[i].ID = uuid.NewString()
		if blocks[i].Type == structs.BlockGroup && blocks[i].Group != nil {
			freshBlockIDs(blocks[i].Group.Blocks)
		}
	}
}
