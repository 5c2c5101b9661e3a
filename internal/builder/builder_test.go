package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

func editableFlow() structs.Flow {
	return structs.Flow{
		ID:   "flow-1",
		Name: "Hair Loss",
		Blocks: []structs.Block{
			{
				ID:     "q1",
				Type:   structs.BlockQuestion,
				Active: true,
				Question: &structs.QuestionData{
					Question: structs.Question{
						ID:         "hair-loss",
						Prompt:     "Are you experiencing hair loss?",
						AnswerType: structs.AnswerBoolean,
						TagRules: map[string][]structs.Tag{
							"true": {"queda_moderada"},
						},
					},
				},
			},
			{
				ID:     "diag",
				Type:   structs.BlockDiagnosis,
				Active: true,
				Diagnosis: &structs.DiagnosisData{
					Rules: []structs.DiagnosticRule{
						{
							ID:         "r1",
							Title:      "Moderate hair loss",
							Priority:   1,
							IsActive:   true,
							Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_moderada"}, Logic: structs.LogicAnd},
						},
						{
							ID:         "r2",
							Title:      "Advanced hair loss",
							Priority:   2,
							IsActive:   true,
							Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_avancada"}, Logic: structs.LogicAnd},
						},
					},
				},
			},
			{
				ID:     "plans",
				Type:   structs.BlockPlanSelection,
				Active: true,
				Plan: &structs.PlanData{
					Plans: []structs.TreatmentPlan{
						{
							ID:         "p1",
							Name:       "Complete",
							Price:      14900,
							Priority:   1,
							IsActive:   true,
							Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_moderada"}, Logic: structs.LogicAnd},
						},
						{
							ID:         "p2",
							Name:       "Essential",
							Price:      9900,
							Priority:   2,
							IsActive:   true,
							Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_moderada"}, Logic: structs.LogicAnd},
						},
					},
				},
			},
			{
				ID:       "pay",
				Type:     structs.BlockCheckout,
				Active:   true,
				Checkout: &structs.CheckoutData{Headline: "Finish your order"},
			},
		},
	}
}

func blockIDs(blocks []structs.Block) []string {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids
}

func TestInsertBlock(t *testing.T) {
	f := editableFlow()
	note := structs.Block{ID: "tags", Type: structs.BlockTag, Active: true, Tag: &structs.TagData{Tags: []structs.Tag{"campanha_inverno"}}}

	edited, err := InsertBlock(f, note, "q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "tags", "diag", "plans", "pay"}, blockIDs(edited.Blocks))

	// source flow untouched
	assert.Equal(t, []string{"q1", "diag", "plans", "pay"}, blockIDs(f.Blocks))
	assert.True(t, edited.UpdatedAt.After(f.UpdatedAt))
}

func TestInsertBlockDuplicateID(t *testing.T) {
	f := editableFlow()
	_, err := InsertBlock(f, structs.Block{ID: "q1", Type: structs.BlockTag, Active: true, Tag: &structs.TagData{}}, "")
	assert.True(t, errors.IsDuplicateBlockID(err))
}

func TestUpdateBlockKeepsPosition(t *testing.T) {
	f := editableFlow()
	replacement := f.Blocks[0]
	replacement.Title = "Intake"

	edited, err := UpdateBlock(f, replacement)
	require.NoError(t, err)
	assert.Equal(t, "Intake", edited.Blocks[0].Title)
	assert.Equal(t, []string{"q1", "diag", "plans", "pay"}, blockIDs(edited.Blocks))
	assert.Empty(t, f.Blocks[0].Title)
}

func TestUpdateBlockNotFound(t *testing.T) {
	f := editableFlow()
	_, err := UpdateBlock(f, structs.Block{ID: "ghost", Type: structs.BlockTag, Active: true, Tag: &structs.TagData{}})
	assert.True(t, errors.IsBlockNotFound(err))
}

func TestRemoveAndReorderBlock(t *testing.T) {
	f := editableFlow()

	edited, err := RemoveBlock(f, "diag")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "plans", "pay"}, blockIDs(edited.Blocks))

	edited, err = ReorderBlock(f, "plans", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "plans", "diag", "pay"}, blockIDs(edited.Blocks))
}

func TestDuplicateBlock(t *testing.T) {
	f := editableFlow()

	edited, dup, err := DuplicateBlock(f, "q1")
	require.NoError(t, err)
	assert.NotEqual(t, "q1", dup.ID)
	assert.Equal(t, []string{"q1", dup.ID, "diag", "plans", "pay"}, blockIDs(edited.Blocks))

	// payload is a copy, not shared
	dup.Question.Question.Prompt = "changed"
	assert.Equal(t, "Are you experiencing hair loss?", f.Blocks[0].Question.Question.Prompt)
}

func TestAddRule(t *testing.T) {
	f := editableFlow()

	edited, err := AddRule(f, "diag", structs.DiagnosticRule{
		ID:         "r3",
		Title:      "Light hair loss",
		IsActive:   true,
		Activation: structs.ActivationCondition{Tags: []structs.Tag{"queda_leve"}, Logic: structs.LogicAnd},
	})
	require.NoError(t, err)

	rules := edited.Blocks[1].Diagnosis.Rules
	require.Len(t, rules, 3)
	assert.Equal(t, "r3", rules[2].ID)
	assert.Equal(t, 3, rules[2].Priority, "unset priority lands after existing rules")

	// source block untouched
	assert.Len(t, f.Blocks[1].Diagnosis.Rules, 2)
}

func TestAddRuleRejectsDuplicateID(t *testing.T) {
	f := editableFlow()
	_, err := AddRule(f, "diag", structs.DiagnosticRule{ID: "r1"})
	assert.True(t, errors.IsValidationError(err))
}

func TestAddRuleWrongBlockType(t *testing.T) {
	f := editableFlow()
	_, err := AddRule(f, "q1", structs.DiagnosticRule{ID: "r3"})
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdateRule(t *testing.T) {
	f := editableFlow()

	edited, err := UpdateRule(f, "diag", structs.DiagnosticRule{ID: "r2", Title: "Severe hair loss", Priority: 2, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Severe hair loss", edited.Blocks[1].Diagnosis.Rules[1].Title)

	_, err = UpdateRule(f, "diag", structs.DiagnosticRule{ID: "ghost"})
	assert.True(t, errors.IsRuleNotFound(err))
}

func TestRemoveRule(t *testing.T) {
	f := editableFlow()

	edited, err := RemoveRule(f, "diag", "r1")
	require.NoError(t, err)
	require.Len(t, edited.Blocks[1].Diagnosis.Rules, 1)
	assert.Equal(t, "r2", edited.Blocks[1].Diagnosis.Rules[0].ID)

	_, err = RemoveRule(f, "diag", "ghost")
	assert.True(t, errors.IsRuleNotFound(err))
}

func TestMoveRule(t *testing.T) {
	f := editableFlow()

	// r2 up: swaps priority with r1 and takes the first slot
	edited, err := MoveRule(f, "diag", "r2", MoveUp)
	require.NoError(t, err)
	rules := edited.Blocks[1].Diagnosis.Rules
	assert.Equal(t, "r2", rules[0].ID)
	assert.Equal(t, 1, rules[0].Priority)
	assert.Equal(t, "r1", rules[1].ID)
	assert.Equal(t, 2, rules[1].Priority)

	// moving past the top is a no-op
	edited, err = MoveRule(f, "diag", "r1", MoveUp)
	require.NoError(t, err)
	assert.Equal(t, "r1", edited.Blocks[1].Diagnosis.Rules[0].ID)

	_, err = MoveRule(f, "diag", "r1", Direction("sideways"))
	assert.Error(t, err)
}

func TestMoveRuleEqualPriorities(t *testing.T) {
	f := editableFlow()
	f.Blocks[1].Diagnosis.Rules[1].Priority = 1 // r1 and r2 now tie

	// the move must still take effect: priorities are renumbered in
	// the moved order instead of swapping identical values
	edited, err := MoveRule(f, "diag", "r2", MoveUp)
	require.NoError(t, err)
	rules := edited.Blocks[1].Diagnosis.Rules
	assert.Equal(t, "r2", rules[0].ID)
	assert.Equal(t, 1, rules[0].Priority)
	assert.Equal(t, "r1", rules[1].ID)
	assert.Equal(t, 2, rules[1].Priority)
}

func TestPlanOps(t *testing.T) {
	f := editableFlow()

	edited, err := AddPlan(f, "plans", structs.TreatmentPlan{ID: "p3", Name: "Premium", Price: 19900, IsActive: true})
	require.NoError(t, err)
	plans := edited.Blocks[2].Plan.Plans
	require.Len(t, plans, 3)
	assert.Equal(t, 3, plans[2].Priority)

	edited, err = MovePlan(f, "plans", "p1", MoveDown)
	require.NoError(t, err)
	plans = edited.Blocks[2].Plan.Plans
	assert.Equal(t, "p2", plans[0].ID)
	assert.Equal(t, 1, plans[0].Priority)
	assert.Equal(t, "p1", plans[1].ID)

	edited, err = RemovePlan(f, "plans", "p2")
	require.NoError(t, err)
	require.Len(t, edited.Blocks[2].Plan.Plans, 1)

	_, err = UpdatePlan(f, "plans", structs.TreatmentPlan{ID: "ghost"})
	assert.Error(t, err)
}

func TestPreviewFullWalk(t *testing.T) {
	f := editableFlow()

	resp, err := Preview(f, []PreviewAction{
		{Type: "start"},
		{Type: "answer", QuestionID: "hair-loss", Value: true},
		{Type: "next"},
		{Type: "next"},
		{Type: "select-plan", PlanID: "p1"},
		{Type: "checkout"},
	})
	require.NoError(t, err)

	assert.Equal(t, structs.StateDone, resp.Run.State)
	assert.True(t, resp.Run.Terminal)
	require.NotNil(t, resp.Handoff)
	assert.Equal(t, "p1", resp.Handoff.PlanID)
	assert.Equal(t, int64(14900), resp.Handoff.Price)
	assert.Contains(t, resp.Handoff.Tags, structs.Tag("queda_moderada"))
}

func TestPreviewStopsAtCurrentQuestion(t *testing.T) {
	f := editableFlow()

	resp, err := Preview(f, []PreviewAction{{Type: "start"}})
	require.NoError(t, err)

	assert.Equal(t, structs.StateQuestioning, resp.Run.State)
	require.NotNil(t, resp.Question)
	assert.Equal(t, "hair-loss", resp.Question.ID)
	assert.Nil(t, resp.Handoff)
}

func TestPreviewUnknownAction(t *testing.T) {
	f := editableFlow()
	_, err := Preview(f, []PreviewAction{{Type: "teleport"}})
	assert.True(t, errors.IsValidationError(err))
}

func TestPreviewInvalidFlow(t *testing.T) {
	f := editableFlow()
	f.Blocks = append(f.Blocks, structs.Block{ID: "q1", Type: structs.BlockTag, Active: true, Tag: &structs.TagData{}})
	_, err := Preview(f, nil)
	assert.Error(t, err)
}

func TestFlowFromYAML(t *testing.T) {
	doc := `
id: flow-yaml
name: Hair Loss (draft)
isActive: false
blocks:
  - id: q1
    type: question
    active: true
    data:
      question:
        id: hair-loss
        prompt: Are you experiencing hair loss?
        answerType: boolean
        tagRules:
          "true": [queda_moderada]
  - id: pay
    type: checkout
    active: true
    data:
      headline: Finish your order
`

	f, err := flowFromYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, "flow-yaml", f.ID)
	require.Len(t, f.Blocks, 2)
	require.NotNil(t, f.Blocks[0].Question)
	assert.Equal(t, structs.AnswerBoolean, f.Blocks[0].Question.Question.AnswerType)
	assert.Equal(t, []structs.Tag{"queda_moderada"}, f.Blocks[0].Question.Question.TagRules["true"])
	require.NotNil(t, f.Blocks[1].Checkout)
	assert.Equal(t, "Finish your order", f.Blocks[1].Checkout.Headline)
}
