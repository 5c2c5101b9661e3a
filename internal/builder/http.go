package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bugfixes/go-bugfixes/logs"
	ConfigBuilder "github.com/keloran/go-config"
	"gopkg.in/yaml.v3"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/flow"
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

// InsertBlockRequest is the body of the block insert endpoint. AfterID
// empty appends at the end.
type InsertBlockRequest struct {
	Block   structs.Block `json:"block"`
	AfterID string        `json:"afterId,omitempty"`
}

type ReorderRequest struct {
	TargetIndex int `json:"targetIndex"`
}

type MoveRequest struct {
	Direction Direction `json:"direction"`
}

// editFlow loads a flow, applies an edit, and persists the result. The
// stored flow is untouched when the edit fails, so the author can fix
// the request and retry.
func (s *System) editFlow(w http.ResponseWriter, r *http.Request, edit func(structs.Flow) (structs.Flow, error)) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	flows := flow.NewSystem(s.Config).SetContext(s.Context)
	f, err := flows.GetFlow(flowId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	edited, err := edit(*f)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	saved, err := flows.UpdateFlow(&edited)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(saved); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) InsertBlockHandler(w http.ResponseWriter, r *http.Request) {
	var req InsertBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return InsertBlock(f, req.Block, req.AfterID)
	})
}

func (s *System) UpdateBlockHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")

	var block structs.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	if block.ID != blockId {
		errors.WriteHTTPError(w, errors.NewValidationError("id", "block id cannot be changed"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return UpdateBlock(f, block)
	})
}

func (s *System) RemoveBlockHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return RemoveBlock(f, blockId)
	})
}

func (s *System) DuplicateBlockHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		edited, _, err := DuplicateBlock(f, blockId)
		return edited, err
	})
}

func (s *System) ReorderBlockHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return ReorderBlock(f, blockId, req.TargetIndex)
	})
}

func (s *System) AddRuleHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")

	var rule structs.DiagnosticRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return AddRule(f, blockId, rule)
	})
}

func (s *System) UpdateRuleHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	ruleId := r.PathValue("ruleId")

	var rule structs.DiagnosticRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	rule.ID = ruleId

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return UpdateRule(f, blockId, rule)
	})
}

func (s *System) RemoveRuleHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	ruleId := r.PathValue("ruleId")

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return RemoveRule(f, blockId, ruleId)
	})
}

func (s *System) MoveRuleHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	ruleId := r.PathValue("ruleId")

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return MoveRule(f, blockId, ruleId, req.Direction)
	})
}

func (s *System) AddPlanHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")

	var plan structs.TreatmentPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return AddPlan(f, blockId, plan)
	})
}

func (s *System) UpdatePlanHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	planId := r.PathValue("planId")

	var plan structs.TreatmentPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	plan.ID = planId

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return UpdatePlan(f, blockId, plan)
	})
}

func (s *System) RemovePlanHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	planId := r.PathValue("planId")

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return RemovePlan(f, blockId, planId)
	})
}

func (s *System) MovePlanHandler(w http.ResponseWriter, r *http.Request) {
	blockId := r.PathValue("blockId")
	planId := r.PathValue("planId")

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	s.editFlow(w, r, func(f structs.Flow) (structs.Flow, error) {
		return MovePlan(f, blockId, planId, req.Direction)
	})
}

// PreviewAction is one step of a preview replay.
type PreviewAction struct {
	Type       string      `json:"type"` // start, answer, next, previous, select-plan, checkout
	QuestionID string      `json:"questionId,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	PlanID     string      `json:"planId,omitempty"`
}

// PreviewRequest carries the (possibly unsaved) flow plus the actions
// taken so far. The flow can arrive as JSON or as the canvas's flat
// YAML export.
type PreviewRequest struct {
	Flow     *structs.Flow   `json:"flow,omitempty"`
	FlowYAML string          `json:"flowYaml,omitempty"`
	Actions  []PreviewAction `json:"actions,omitempty"`
}

type PreviewResponse struct {
	Run      structs.RunState         `json:"run"`
	Question *structs.Question        `json:"question,omitempty"`
	Handoff  *structs.CheckoutHandoff `json:"handoff,omitempty"`
}

// PreviewHandler drives the stepper against an unsaved flow, in
// isolation from persistence and payment. The UI re-sends the action
// list on every step, so the preview run never has to be stored.
func (s *System) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}

	var f structs.Flow
	switch {
	case req.Flow != nil:
		f = *req.Flow
	case req.FlowYAML != "":
		decoded, err := flowFromYAML(req.FlowYAML)
		if err != nil {
			errors.WriteHTTPError(w, errors.NewValidationError("flowYaml", "invalid YAML flow format"))
			return
		}
		f = decoded
	default:
		errors.WriteHTTPError(w, errors.NewValidationError("flow", "a flow is required for preview"))
		return
	}

	resp, err := Preview(f, req.Actions)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

// flowFromYAML bridges the YAML export into the flow JSON codec. Blocks
// carry their payload in a typed envelope that only the JSON
// unmarshaller knows how to open, so the YAML document is lowered to
// plain values and re-read as JSON.
func flowFromYAML(doc string) (structs.Flow, error) {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
		return structs.Flow{}, err
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return structs.Flow{}, err
	}

	var f structs.Flow
	if err := json.Unmarshal(buf, &f); err != nil {
		return structs.Flow{}, err
	}

	return f, nil
}

// Preview constructs a fresh run from the flow and replays the actions
// against the stepper.
func Preview(f structs.Flow, actions []PreviewAction) (*PreviewResponse, error) {
	st := stepper.New()
	run, err := st.NewRun(f)
	if err != nil {
		return nil, err
	}
	run.ID = "preview"

	resp := &PreviewResponse{}
	for _, action := range actions {
		switch action.Type {
		case "start", "next":
			run, err = st.Next(f, run)
		case "answer":
			run, err = st.Answer(f, run, action.QuestionID, action.Value)
		case "previous":
			run, err = st.Previous(f, run)
		case "select-plan":
			run, err = st.SelectPlan(f, run, action.PlanID)
		case "checkout":
			var handoff structs.CheckoutHandoff
			run, handoff, err = st.CompleteCheckout(f, run)
			if err == nil {
				resp.Handoff = &handoff
			}
		default:
			return nil, errors.NewValidationError("actions", fmt.Sprintf("unknown action type: %s", action.Type))
		}
		if err != nil {
			return nil, err
		}
	}

	resp.Run = run
	if run.State == structs.StateQuestioning {
		if q, err := st.CurrentQuestion(f, run); err == nil {
			resp.Question = &q
		}
	}

	return resp, nil
}
