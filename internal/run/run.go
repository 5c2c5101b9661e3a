package run

import (
	"context"

	"github.com/bugfixes/go-bugfixes/logs"
	"github.com/google/uuid"
	ConfigBuilder "github.com/keloran/go-config"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/checkout"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/flow"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/runstore"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/stepper"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// System executes live runs: it glues the pure stepper to the run
// store, the flow storage, and the payment handoff. The store is shared
// across requests and injected by the service.
type System struct {
	Config  *ConfigBuilder.Config
	Context context.Context

	Store   runstore.Store
	Stepper *stepper.Stepper
}

func NewSystem(cfg *ConfigBuilder.Config, store runstore.Store) *System {
	return &System{
		Config:  cfg,
		Context: context.Background(),
		Store:   store,
		Stepper: stepper.New(),
	}
}

func (s *System) SetContext(ctx context.Context) *System {
	s.Context = ctx
	return s
}

// View is the run as the client sees it: the state plus whatever the
// current state needs rendered (the question being asked, the resolved
// diagnosis, the plans on offer, or the payment redirect).
type View struct {
	Run      structs.RunState           `json:"run"`
	Question *structs.Question          `json:"question,omitempty"`
	Payment  *checkout.InitiateResponse `json:"payment,omitempty"`
}

// StartRun creates a run against an active flow and persists it at the
// intro screen.
func (s *System) StartRun(flowID string) (*View, error) {
	f, err := flow.NewSystem(s.Config).SetContext(s.Context).GetFlow(flowID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, errors.NewValidationError("flowId", "flow is not active")
	}

	run, err := s.Stepper.NewRun(*f)
	if err != nil {
		return nil, err
	}
	run.ID = uuid.NewString()

	if err := s.Store.SaveRun(s.Context, run); err != nil {
		return nil, logs.Errorf("failed to save run: %v", err)
	}

	return s.view(*f, run), nil
}

// Answer records an answer on a run.
func (s *System) Answer(runID string, req structs.AnswerRequest) (*View, error) {
	return s.transition(runID, func(f structs.Flow, run structs.RunState) (structs.RunState, error) {
		return s.Stepper.Answer(f, run, req.QuestionID, req.Value)
	})
}

// Next advances a run one step.
func (s *System) Next(runID string) (*View, error) {
	return s.transition(runID, s.Stepper.Next)
}

// Previous steps a run backwards.
func (s *System) Previous(runID string) (*View, error) {
	return s.transition(runID, s.Stepper.Previous)
}

// SelectPlan picks one of the run's eligible plans.
func (s *System) SelectPlan(runID string, req structs.PlanSelectRequest) (*View, error) {
	return s.transition(runID, func(f structs.Flow, run structs.RunState) (structs.RunState, error) {
		return s.Stepper.SelectPlan(f, run, req.PlanID)
	})
}

// Checkout completes a run and hands it to the payment provider. The
// terminal state is only persisted after the handoff succeeds, so a
// provider outage leaves the run at checkout and the call can be
// retried.
func (s *System) Checkout(runID string) (*View, error) {
	run, err := s.Store.GetRun(s.Context, runID)
	if err != nil {
		return nil, err
	}

	f, err := flow.NewSystem(s.Config).SetContext(s.Context).GetFlow(run.FlowID)
	if err != nil {
		return nil, err
	}

	done, handoff, err := s.Stepper.CompleteCheckout(*f, run)
	if err != nil {
		return nil, errors.WrapRunError(err, runID)
	}

	payment, err := checkout.NewSystem(s.Config).SetContext(s.Context).Initiate(handoff)
	if err != nil {
		return nil, logs.Errorf("checkout handoff failed: %v", err)
	}

	if err := s.Store.SaveRun(s.Context, done); err != nil {
		return nil, logs.Errorf("failed to save run: %v", err)
	}

	view := s.view(*f, done)
	view.Payment = payment
	return view, nil
}

// GetRun returns the current view of a run without transitioning it.
func (s *System) GetRun(runID string) (*View, error) {
	run, err := s.Store.GetRun(s.Context, runID)
	if err != nil {
		return nil, err
	}

	f, err := flow.NewSystem(s.Config).SetContext(s.Context).GetFlow(run.FlowID)
	if err != nil {
		return nil, err
	}

	return s.view(*f, run), nil
}

// DeleteRun discards an abandoned run.
func (s *System) DeleteRun(runID string) error {
	return s.Store.DeleteRun(s.Context, runID)
}

func (s *System) transition(runID string, step func(structs.Flow, structs.RunState) (structs.RunState, error)) (*View, error) {
	run, err := s.Store.GetRun(s.Context, runID)
	if err != nil {
		return nil, err
	}

	f, err := flow.NewSystem(s.Config).SetContext(s.Context).GetFlow(run.FlowID)
	if err != nil {
		return nil, err
	}

	next, err := step(*f, run)
	if err != nil {
		return nil, err
	}

	if err := s.Store.SaveRun(s.Context, next); err != nil {
		return nil, logs.Errorf("failed to save run: %v", err)
	}

	return s.view(*f, next), nil
}

func (s *System) view(f structs.Flow, run structs.RunState) *View {
	v := &View{Run: run}
	if run.State == structs.StateQuestioning {
		if q, err := s.Stepper.CurrentQuestion(f, run); err == nil {
			v.Question = &q
		}
	}
	return v
}
