package structs

// Logic selects how an activation condition combines its tags.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Tag is an opaque, case-sensitive label produced by answers and
// consumed by activation conditions.
type Tag string

// ActivationCondition pairs a tag list with AND/OR logic. An empty tag
// list never activates, so a half-configured rule cannot win by default.
type ActivationCondition struct {
	Tags  []Tag `json:"tags"`
	Logic Logic `json:"logic"`
}

// DiagnosticRule describes one diagnostic explanation and the condition
// under which it applies. Lower priority values win.
type DiagnosticRule struct {
	ID            string              `json:"id"`
	InternalName  string              `json:"internalName"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	PhaseName     string              `json:"phaseName"`
	PhaseDuration string              `json:"phaseDuration,omitempty"`
	Priority      int                 `json:"priority"`
	Activation    ActivationCondition `json:"activation"`
	IsActive      bool                `json:"isActive"`
	ImageURL      string              `json:"imageUrl,omitempty"`
}

// Condition returns the rule's activation condition.
func (r DiagnosticRule) Condition() ActivationCondition { return r.Activation }

// Rank returns the rule's priority; lower wins.
func (r DiagnosticRule) Rank() int { return r.Priority }

// Enabled reports whether the rule participates in matching.
func (r DiagnosticRule) Enabled() bool { return r.IsActive }

// TreatmentPlan is a purchasable plan with its eligibility condition.
// Price is in cents.
type TreatmentPlan struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Price       int64               `json:"price"`
	Description string              `json:"description"`
	Features    []string            `json:"features"`
	Priority    int                 `json:"priority"`
	Activation  ActivationCondition `json:"activation"`
	IsActive    bool                `json:"isActive"`
}

// Condition returns the plan's eligibility condition.
func (p TreatmentPlan) Condition() ActivationCondition { return p.Activation }

// Rank returns the plan's priority; lower wins.
func (p TreatmentPlan) Rank() int { return p.Priority }

// Enabled reports whether the plan participates in matching.
func (p TreatmentPlan) Enabled() bool { return p.IsActive }
