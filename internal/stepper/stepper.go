package stepper

import (
	"fmt"
	"time"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/rules"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/sequencer"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/tags"
)

// Stepper walks a flow's ordered blocks for one end user. Every
// transition takes the RunState as an explicit value and returns the
// next one; nothing is kept in ambient state, and the flow itself is
// never mutated. The stepper only carries the shared expression cache
// for conditional blocks.
type Stepper struct {
	eval *rules.Evaluator
}

// New creates a Stepper.
func New() *Stepper {
	return &Stepper{eval: rules.NewEvaluator()}
}

// NewRun validates the flow and returns a fresh run sitting at the
// intro screen. The caller assigns the run id.
func (s *Stepper) NewRun(flow structs.Flow) (structs.RunState, error) {
	if err := ValidateFlow(flow); err != nil {
		return structs.RunState{}, err
	}

	now := time.Now()
	return structs.RunState{
		FlowID:         flow.ID,
		State:          structs.StateIntro,
		Cursor:         0,
		Answers:        make(map[string]interface{}),
		TagsByQuestion: make(map[string][]structs.Tag),
		StartedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Answer records an answer for a question and replaces that question's
// tag contribution. Re-answering after navigating back never appends a
// duplicate tag set. A hard-stop answer moves the run to the absorbing
// blocked state immediately.
func (s *Stepper) Answer(flow structs.Flow, run structs.RunState, questionID string, value interface{}) (structs.RunState, error) {
	if run.Terminal {
		return run, errors.WrapRunError(errors.ErrRunTerminal, run.ID)
	}

	q, ok := findQuestion(flow.Blocks, questionID)
	if !ok {
		return run, errors.WrapRunError(errors.ErrQuestionNotFound, run.ID)
	}

	resolved, err := tags.Resolve(q, value)
	if err != nil {
		return run, err
	}

	next := cloneRun(run)
	next.Answers[questionID] = value
	if len(resolved) > 0 {
		next.TagsByQuestion[questionID] = resolved
	} else {
		delete(next.TagsByQuestion, questionID)
	}
	next.UpdatedAt = time.Now()

	if hardStop(q, value) {
		next.State = structs.StateBlocked
		next.Terminal = true
		next.BlockedMessage = q.HardStopMessage
		if next.BlockedMessage == "" {
			next.BlockedMessage = "Based on your answers, this treatment is not suitable for you. Please consult a doctor in person."
		}
	}

	return next, nil
}

// Next advances the run one screen. Leaving the last question resolves
// the diagnosis; a run with no matching diagnostic rule skips straight
// to plan selection. Plan selection requires an explicit SelectPlan.
func (s *Stepper) Next(flow structs.Flow, run structs.RunState) (structs.RunState, error) {
	if run.Terminal {
		return run, errors.WrapRunError(errors.ErrRunTerminal, run.ID)
	}

	next := cloneRun(run)
	next.UpdatedAt = time.Now()

	questions, err := s.Questions(flow, run)
	if err != nil {
		return run, err
	}

	switch run.State {
	case structs.StateIntro:
		if len(questions) == 0 {
			return s.resolveOutcome(flow, next)
		}
		next.State = structs.StateQuestioning
		next.Cursor = 0
		return next, nil

	case structs.StateQuestioning:
		if run.Cursor >= len(questions) {
			return s.resolveOutcome(flow, next)
		}
		current := questions[run.Cursor]
		if _, answered := run.Answers[current.ID]; !answered {
			return run, errors.NewValidationError("answer", fmt.Sprintf("question %s has not been answered", current.ID))
		}
		if run.Cursor+1 < len(questions) {
			next.Cursor = run.Cursor + 1
			return next, nil
		}
		return s.resolveOutcome(flow, next)

	case structs.StateDiagnosis:
		return s.resolvePlans(flow, next)

	case structs.StatePlanSelection:
		return run, errors.NewValidationError("plan", "select a plan to continue")

	case structs.StateCheckout:
		return run, errors.NewValidationError("checkout", "complete checkout to finish")

	default:
		return run, errors.NewRunError(run.ID, fmt.Sprintf("cannot advance from state %s", run.State))
	}
}

// Previous steps one screen back, symmetric to Next. Recorded answers
// and their tags stay in place; changing one goes through Answer, which
// replaces rather than appends.
func (s *Stepper) Previous(flow structs.Flow, run structs.RunState) (structs.RunState, error) {
	if run.Terminal {
		return run, errors.WrapRunError(errors.ErrRunTerminal, run.ID)
	}

	next := cloneRun(run)
	next.UpdatedAt = time.Now()

	questions, err := s.Questions(flow, run)
	if err != nil {
		return run, err
	}
	lastQuestion := len(questions) - 1

	switch run.State {
	case structs.StateIntro:
		return run, errors.NewRunError(run.ID, "already at the first screen")

	case structs.StateQuestioning:
		if run.Cursor > 0 {
			next.Cursor = run.Cursor - 1
			return next, nil
		}
		next.State = structs.StateIntro
		return next, nil

	case structs.StateDiagnosis:
		next.State = structs.StateQuestioning
		next.Cursor = lastQuestion
		if lastQuestion < 0 {
			next.State = structs.StateIntro
			next.Cursor = 0
		}
		return next, nil

	case structs.StatePlanSelection:
		if run.ResolvedDiagnosis != nil {
			next.State = structs.StateDiagnosis
			return next, nil
		}
		next.State = structs.StateQuestioning
		next.Cursor = lastQuestion
		if lastQuestion < 0 {
			next.State = structs.StateIntro
			next.Cursor = 0
		}
		return next, nil

	case structs.StateCheckout:
		next.State = structs.StatePlanSelection
		next.SelectedPlan = nil
		return next, nil

	default:
		return run, errors.NewRunError(run.ID, fmt.Sprintf("cannot step back from state %s", run.State))
	}
}

// SelectPlan picks one of the eligible plans and moves the run to
// checkout.
func (s *Stepper) SelectPlan(flow structs.Flow, run structs.RunState, planID string) (structs.RunState, error) {
	if run.Terminal {
		return run, errors.WrapRunError(errors.ErrRunTerminal, run.ID)
	}
	if run.State != structs.StatePlanSelection {
		return run, errors.NewRunError(run.ID, fmt.Sprintf("cannot select a plan in state %s", run.State))
	}

	for _, p := range run.EligiblePlans {
		if p.ID == planID {
			next := cloneRun(run)
			plan := p
			next.SelectedPlan = &plan
			next.State = structs.StateCheckout
			next.UpdatedAt = time.Now()
			return next, nil
		}
	}

	return run, errors.NewRunError(run.ID, fmt.Sprintf("plan %s is not eligible for this run", planID))
}

// CompleteCheckout finishes the run and emits the handoff record for
// the external payment initiation endpoint. Nothing irreversible has
// happened before this point, so abandoning a run needs no compensation.
func (s *Stepper) CompleteCheckout(flow structs.Flow, run structs.RunState) (structs.RunState, structs.CheckoutHandoff, error) {
	if run.Terminal {
		return run, structs.CheckoutHandoff{}, errors.WrapRunError(errors.ErrRunTerminal, run.ID)
	}
	if run.State != structs.StateCheckout || run.SelectedPlan == nil {
		return run, structs.CheckoutHandoff{}, errors.NewRunError(run.ID, fmt.Sprintf("cannot complete checkout in state %s", run.State))
	}

	next := cloneRun(run)
	next.State = structs.StateDone
	next.Terminal = true
	next.UpdatedAt = time.Now()

	handoff := structs.CheckoutHandoff{
		RunID:  run.ID,
		PlanID: run.SelectedPlan.ID,
		Price:  run.SelectedPlan.Price,
		Tags:   s.AccumulatedTags(flow, run),
	}

	return next, handoff, nil
}

// AccumulatedTags derives the run's current tag set: each answered
// question's contribution in flow order, then the flow's tag blocks.
// Derived, never stored, so it can never drift from the answers.
func (s *Stepper) AccumulatedTags(flow structs.Flow, run structs.RunState) []structs.Tag {
	var lists [][]structs.Tag
	walkActive(flow.Blocks, func(b structs.Block) {
		switch b.Type {
		case structs.BlockQuestion:
			if qTags, ok := run.TagsByQuestion[b.Question.Question.ID]; ok {
				lists = append(lists, qTags)
			}
		case structs.BlockTag:
			lists = append(lists, b.Tag.Tags)
		}
	})
	return tags.Union(lists...)
}

// Questions returns the run-visible question list: inactive blocks are
// dropped, groups are expanded inline, and a conditional block whose
// expression is false hides the block that follows it.
func (s *Stepper) Questions(flow structs.Flow, run structs.RunState) ([]structs.Question, error) {
	visible, err := s.visibleBlocks(flow, run)
	if err != nil {
		return nil, err
	}

	var out []structs.Question
	for _, b := range visible {
		if b.Type == structs.BlockQuestion {
			out = append(out, b.Question.Question)
		}
	}
	return out, nil
}

// CurrentQuestion returns the question at the run's cursor while
// questioning.
func (s *Stepper) CurrentQuestion(flow structs.Flow, run structs.RunState) (structs.Question, error) {
	if run.State != structs.StateQuestioning {
		return structs.Question{}, errors.NewRunError(run.ID, fmt.Sprintf("no current question in state %s", run.State))
	}
	questions, err := s.Questions(flow, run)
	if err != nil {
		return structs.Question{}, err
	}
	if run.Cursor < 0 || run.Cursor >= len(questions) {
		return structs.Question{}, errors.NewRunError(run.ID, "cursor is out of range")
	}
	return questions[run.Cursor], nil
}

// resolveOutcome leaves questioning: resolve the diagnosis first, or
// skip straight to plan selection when no diagnostic rule matches.
func (s *Stepper) resolveOutcome(flow structs.Flow, run structs.RunState) (structs.RunState, error) {
	tagSet := s.AccumulatedTags(flow, run)

	var candidates []structs.DiagnosticRule
	walkActive(flow.Blocks, func(b structs.Block) {
		if b.Type == structs.BlockDiagnosis {
			candidates = append(candidates, b.Diagnosis.Rules...)
		}
	})

	if winner, ok := rules.Select(candidates, tagSet); ok {
		run.ResolvedDiagnosis = &winner
		run.State = structs.StateDiagnosis
		return run, nil
	}

	run.ResolvedDiagnosis = nil
	return s.resolvePlans(flow, run)
}

// resolvePlans moves the run to plan selection. An empty eligible list
// is the explicit no-plan-available outcome; the run never falls
// through to checkout with undefined data.
func (s *Stepper) resolvePlans(flow structs.Flow, run structs.RunState) (structs.RunState, error) {
	tagSet := s.AccumulatedTags(flow, run)

	var candidates []structs.TreatmentPlan
	walkActive(flow.Blocks, func(b structs.Block) {
		if b.Type == structs.BlockPlanSelection {
			candidates = append(candidates, b.Plan.Plans...)
		}
	})

	run.EligiblePlans = rules.Eligible(candidates, tagSet)
	run.NoPlan = len(run.EligiblePlans) == 0
	run.State = structs.StatePlanSelection
	return run, nil
}

// visibleBlocks flattens the flow for one run. Conditional expressions
// see the answers and the question-derived tags; tag blocks do not feed
// back into guard evaluation.
func (s *Stepper) visibleBlocks(flow structs.Flow, run structs.RunState) ([]structs.Block, error) {
	var questionTags [][]structs.Tag
	for _, list := range run.TagsByQuestion {
		questionTags = append(questionTags, list)
	}
	env := rules.Env(run.Answers, tags.Union(questionTags...))

	var flatten func(blocks []structs.Block) ([]structs.Block, error)
	flatten = func(blocks []structs.Block) ([]structs.Block, error) {
		var out []structs.Block
		skipNext := false
		for _, b := range blocks {
			// a false guard is spent on the block that immediately
			// follows it in document order, even when that block is
			// inactive or another conditional (whose own guard then
			// never evaluates); it never leaks further down the flow
			if skipNext {
				skipNext = false
				continue
			}
			if !b.Active {
				continue
			}
			if b.Type == structs.BlockConditional {
				pass, err := s.eval.Evaluate(b.Conditional.Expression, env)
				if err != nil {
					return nil, errors.WrapFlowError(err, flow.ID, b.ID)
				}
				skipNext = !pass
				continue
			}
			if b.Type == structs.BlockGroup {
				children, err := flatten(b.Group.Blocks)
				if err != nil {
					return nil, err
				}
				out = append(out, children...)
				continue
			}
			out = append(out, b)
		}
		return out, nil
	}

	return flatten(flow.Blocks)
}

// ValidateFlow checks the invariants the runtime relies on: unique
// block ids and well-formed question tag rules.
func ValidateFlow(flow structs.Flow) error {
	if err := sequencer.Validate(flow.Blocks); err != nil {
		return err
	}

	var failed error
	walkBlocks(flow.Blocks, func(b structs.Block) {
		if failed != nil {
			return
		}
		if b.Type == structs.BlockQuestion {
			if err := tags.ValidateTagRules(b.Question.Question); err != nil {
				failed = err
			}
		}
	})
	return failed
}

func findQuestion(blocks []structs.Block, questionID string) (structs.Question, bool) {
	var found structs.Question
	ok := false
	walkBlocks(blocks, func(b structs.Block) {
		if !ok && b.Type == structs.BlockQuestion && b.Question.Question.ID == questionID {
			found = b.Question.Question
			ok = true
		}
	})
	return found, ok
}

// hardStop reports whether the answer matches one of the question's
// disqualifying answer keys.
func hardStop(q structs.Question, value interface{}) bool {
	if len(q.HardStopAnswers) == 0 {
		return false
	}

	keys := make([]string, 0, 1)
	if key, ok := tags.AnswerKey(q, value); ok {
		keys = append(keys, key)
	}
	if q.AnswerType == structs.AnswerMultipleChoice {
		switch v := value.(type) {
		case []string:
			keys = append(keys, v...)
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					keys = append(keys, s)
				}
			}
		}
	}

	for _, key := range keys {
		for _, stop := range q.HardStopAnswers {
			if key == stop {
				return true
			}
		}
	}
	return false
}

// walkBlocks visits every block in order, descending into groups.
func walkBlocks(blocks []structs.Block, visit func(structs.Block)) {
	for _, b := range blocks {
		visit(b)
		if b.Type == structs.BlockGroup && b.Group != nil {
			walkBlocks(b.Group.Blocks, visit)
		}
	}
}

// walkActive visits active blocks in order, skipping inactive subtrees.
// Inactive blocks are retained for editing but invisible to a run.
func walkActive(blocks []structs.Block, visit func(structs.Block)) {
	for _, b := range blocks {
		if !b.Active {
			continue
		}
		visit(b)
		if b.Type == structs.BlockGroup && b.Group != nil {
			walkActive(b.Group.Blocks, visit)
		}
	}
}

func cloneRun(run structs.RunState) structs.RunState {
	out := run

	out.Answers = make(map[string]interface{}, len(run.Answers))
	for k, v := range run.Answers {
		out.Answers[k] = v
	}

	out.TagsByQuestion = make(map[string][]structs.Tag, len(run.TagsByQuestion))
	for k, v := range run.TagsByQuestion {
		list := make([]structs.Tag, len(v))
		copy(list, v)
		out.TagsByQuestion[k] = list
	}

	return out
}
