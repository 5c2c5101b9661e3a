package structs

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnswerType enumerates the question input kinds.
type AnswerType string

const (
	AnswerText           AnswerType = "text"
	AnswerNumber         AnswerType = "number"
	AnswerBoolean        AnswerType = "boolean"
	AnswerSingleChoice   AnswerType = "single-choice"
	AnswerMultipleChoice AnswerType = "multiple-choice"
)

// Question is one anamnesis question. TagRules maps an answer key (an
// option string, or "true"/"false" for booleans) to the tags that answer
// produces. HardStopAnswers lists answer keys that disqualify the
// patient and halt the run.
type Question struct {
	ID              string           `json:"id"`
	Prompt          string           `json:"prompt"`
	AnswerType      AnswerType       `json:"answerType"`
	Options         []string         `json:"options,omitempty"`
	TagRules        map[string][]Tag `json:"tagRules,omitempty"`
	HardStopAnswers []string         `json:"hardStopAnswers,omitempty"`
	HardStopMessage string           `json:"hardStopMessage,omitempty"`
}

// BlockType discriminates the Block union.
type BlockType string

const (
	BlockQuestion      BlockType = "question"
	BlockDiagnosis     BlockType = "diagnosis"
	BlockPlanSelection BlockType = "plan-selection"
	BlockCheckout      BlockType = "checkout"
	BlockConditional   BlockType = "conditional"
	BlockTag           BlockType = "tag"
	BlockGroup         BlockType = "group"
)

type QuestionData struct {
	Question Question `json:"question"`
}

type DiagnosisData struct {
	Rules []DiagnosticRule `json:"rules"`
}

type PlanData struct {
	Plans []TreatmentPlan `json:"plans"`
}

type CheckoutData struct {
	Headline    string `json:"headline,omitempty"`
	ButtonLabel string `json:"buttonLabel,omitempty"`
}

// ConditionalData guards the block that immediately follows it: when
// Expression evaluates false against the run's answers and tags, the
// next block is skipped for that run.
type ConditionalData struct {
	Expression string `json:"expression"`
}

// TagData marks the whole run with fixed tags, e.g. campaign or channel
// tags. An active tag block contributes to the accumulated tag set for
// the run's entire lifetime regardless of its position in the flow.
type TagData struct {
	Tags []Tag `json:"tags"`
}

// GroupData nests blocks for authoring organization; the runtime walks
// a group's children inline.
type GroupData struct {
	Blocks []Block `json:"blocks"`
}

// Block is one typed step in a flow. Exactly one payload field is set,
// matching Type. Order within Flow.Blocks is the displayed order; a
// block's successor is derived from the array, never stored.
type Block struct {
	ID       string    `json:"id"`
	Type     BlockType `json:"type"`
	Title    string    `json:"title"`
	Required bool      `json:"required,omitempty"`
	Active   bool      `json:"active"`

	Question    *QuestionData    `json:"-"`
	Diagnosis   *DiagnosisData   `json:"-"`
	Plan        *PlanData        `json:"-"`
	Checkout    *CheckoutData    `json:"-"`
	Conditional *ConditionalData `json:"-"`
	Tag         *TagData         `json:"-"`
	Group       *GroupData       `json:"-"`
}

type blockEnvelope struct {
	ID       string          `json:"id"`
	Type     BlockType       `json:"type"`
	Title    string          `json:"title"`
	Required bool            `json:"required,omitempty"`
	Active   *bool           `json:"active,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	env := blockEnvelope{
		ID:       b.ID,
		Type:     b.Type,
		Title:    b.Title,
		Required: b.Required,
		Active:   &b.Active,
	}

	var payload interface{}
	switch b.Type {
	case BlockQuestion:
		payload = b.Question
	case BlockDiagnosis:
		payload = b.Diagnosis
	case BlockPlanSelection:
		payload = b.Plan
	case BlockCheckout:
		payload = b.Checkout
	case BlockConditional:
		payload = b.Conditional
	case BlockTag:
		payload = b.Tag
	case BlockGroup:
		payload = b.Group
	default:
		return nil, fmt.Errorf("unknown block type: %s", b.Type)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}

	return json.Marshal(env)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var env blockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*b = Block{
		ID:       env.ID,
		Type:     env.Type,
		Title:    env.Title,
		Required: env.Required,
		Active:   true,
	}
	if env.Active != nil {
		b.Active = *env.Active
	}

	var payload interface{}
	switch env.Type {
	case BlockQuestion:
		b.Question = &QuestionData{}
		payload = b.Question
	case BlockDiagnosis:
		b.Diagnosis = &DiagnosisData{}
		payload = b.Diagnosis
	case BlockPlanSelection:
		b.Plan = &PlanData{}
		payload = b.Plan
	case BlockCheckout:
		b.Checkout = &CheckoutData{}
		payload = b.Checkout
	case BlockConditional:
		b.Conditional = &ConditionalData{}
		payload = b.Conditional
	case BlockTag:
		b.Tag = &TagData{}
		payload = b.Tag
	case BlockGroup:
		b.Group = &GroupData{}
		payload = b.Group
	default:
		return fmt.Errorf("unknown block type: %s", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return err
		}
	}

	return nil
}

// Flow is an authored, ordered sequence of blocks plus its tag
// vocabulary. The runtime consumes it read-only.
type Flow struct {
	ID          string    `json:"id"`
	BaseID      string    `json:"baseId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	Blocks      []Block   `json:"blocks"`
	Tags        []Tag     `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
