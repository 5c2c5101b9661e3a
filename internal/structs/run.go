package structs

import "time"

// RunStateName is the stepper state of one run.
type RunStateName string

const (
	StateIntro         RunStateName = "intro"
	StateQuestioning   RunStateName = "questioning"
	StateDiagnosis     RunStateName = "diagnosis"
	StatePlanSelection RunStateName = "plan-selection"
	StateCheckout      RunStateName = "checkout"
	StateDone          RunStateName = "done"
	StateBlocked       RunStateName = "blocked"
)

// RunState is the per-user, in-progress execution of a Flow. The
// stepper threads it as an explicit value; it never lives in ambient
// state. Tags are stored per question so re-answering replaces that
// question's contribution instead of appending a duplicate set.
type RunState struct {
	ID     string       `json:"id"`
	FlowID string       `json:"flowId"`
	State  RunStateName `json:"state"`

	// Cursor indexes the run's active question list while questioning.
	Cursor int `json:"cursor"`

	Answers        map[string]interface{} `json:"answers"`
	TagsByQuestion map[string][]Tag       `json:"tagsByQuestion"`

	ResolvedDiagnosis *DiagnosticRule `json:"resolvedDiagnosis,omitempty"`
	EligiblePlans     []TreatmentPlan `json:"eligiblePlans,omitempty"`
	SelectedPlan      *TreatmentPlan  `json:"selectedPlan,omitempty"`

	// NoPlan marks the explicit "no plan available" outcome.
	NoPlan bool `json:"noPlan,omitempty"`

	// BlockedMessage carries the disqualification message when the run
	// is in the blocked state.
	BlockedMessage string `json:"blockedMessage,omitempty"`

	Terminal  bool      `json:"terminal"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckoutHandoff is the record emitted to the external payment
// initiation endpoint on checkout completion. Payment capture itself is
// not implemented here.
type CheckoutHandoff struct {
	RunID  string `json:"runId"`
	PlanID string `json:"planId"`
	Price  int64  `json:"price"`
	Tags   []Tag  `json:"tags"`
}

// AnswerRequest is the body of the run answer endpoint.
type AnswerRequest struct {
	QuestionID string      `json:"questionId"`
	Value      interface{} `json:"value"`
}

// PlanSelectRequest is the body of the run plan endpoint.
type PlanSelectRequest struct {
	PlanID string `json:"planId"`
}
