package builder

import (
	"fmt"
	"sort"
	"time"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/sequencer"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// The builder is the authoring counterpart of the stepper: every
// operation takes a Flow value and returns the edited Flow, leaving the
// input untouched so a failed edit never corrupts the canvas.

// Direction moves a rule or plan up or down the priority order.
type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// InsertBlock adds a block to the flow, at the end or after a given
// block.
func InsertBlock(f structs.Flow, block structs.Block, afterID string) (structs.Flow, error) {
	blocks, err := sequencer.Insert(f.Blocks, block, afterID)
	if err != nil {
		return f, err
	}
	return withBlocks(f, blocks), nil
}

// UpdateBlock replaces a block in place, keeping its position. The
// replacement must keep the block's id.
func UpdateBlock(f structs.Flow, block structs.Block) (structs.Flow, error) {
	for i, b := range f.Blocks {
		if b.ID == block.ID {
			blocks := make([]structs.Block, len(f.Blocks))
			copy(blocks, f.Blocks)
			blocks[i] = block
			return withBlocks(f, blocks), nil
		}
	}
	return f, errors.WrapFlowError(errors.ErrBlockNotFound, f.ID, block.ID)
}

// RemoveBlock drops a block from the flow.
func RemoveBlock(f structs.Flow, id string) (structs.Flow, error) {
	blocks, err := sequencer.Remove(f.Blocks, id)
	if err != nil {
		return f, err
	}
	return withBlocks(f, blocks), nil
}

// ReorderBlock moves a block to targetIndex, array-move semantics.
func ReorderBlock(f structs.Flow, id string, targetIndex int) (structs.Flow, error) {
	blocks, err := sequencer.Reorder(f.Blocks, id, targetIndex)
	if err != nil {
		return f, err
	}
	return withBlocks(f, blocks), nil
}

// DuplicateBlock deep-copies a block under a fresh id.
func DuplicateBlock(f structs.Flow, id string) (structs.Flow, structs.Block, error) {
	blocks, dup, err := sequencer.Duplicate(f.Blocks, id)
	if err != nil {
		return f, structs.Block{}, err
	}
	return withBlocks(f, blocks), dup, nil
}

// AddRule appends a diagnostic rule to a diagnosis block. A new rule
// lands at the end of the priority order.
func AddRule(f structs.Flow, blockID string, rule structs.DiagnosticRule) (structs.Flow, error) {
	return editDiagnosis(f, blockID, func(rules []structs.DiagnosticRule) ([]structs.DiagnosticRule, error) {
		if rule.ID == "" {
			return nil, errors.NewValidationError("id", "rule id is required")
		}
		for _, r := range rules {
			if r.ID == rule.ID {
				return nil, errors.NewValidationError("id", fmt.Sprintf("rule %s already exists", rule.ID))
			}
		}
		if rule.Priority == 0 {
			rule.Priority = nextPriority(rules, func(r structs.DiagnosticRule) int { return r.Priority })
		}
		return append(append([]structs.DiagnosticRule{}, rules...), rule), nil
	})
}

// UpdateRule replaces a diagnostic rule by id.
func UpdateRule(f structs.Flow, blockID string, rule structs.DiagnosticRule) (structs.Flow, error) {
	return editDiagnosis(f, blockID, func(rules []structs.DiagnosticRule) ([]structs.DiagnosticRule, error) {
		out := append([]structs.DiagnosticRule{}, rules...)
		for i, r := range out {
			if r.ID == rule.ID {
				out[i] = rule
				return out, nil
			}
		}
		return nil, errors.WrapFlowError(errors.ErrRuleNotFound, f.ID, blockID)
	})
}

// RemoveRule drops a diagnostic rule by id.
func RemoveRule(f structs.Flow, blockID, ruleID string) (structs.Flow, error) {
	return editDiagnosis(f, blockID, func(rules []structs.DiagnosticRule) ([]structs.DiagnosticRule, error) {
		out := make([]structs.DiagnosticRule, 0, len(rules))
		found := false
		for _, r := range rules {
			if r.ID == ruleID {
				found = true
				continue
			}
			out = append(out, r)
		}
		if !found {
			return nil, errors.WrapFlowError(errors.ErrRuleNotFound, f.ID, blockID)
		}
		return out, nil
	})
}

// MoveRule bumps a diagnostic rule up or down: its priority value is
// swapped with its neighbour's in the priority order, then the list is
// re-sorted. Moving past either end is a no-op.
func MoveRule(f structs.Flow, blockID, ruleID string, dir Direction) (structs.Flow, error) {
	return editDiagnosis(f, blockID, func(rules []structs.DiagnosticRule) ([]structs.DiagnosticRule, error) {
		out := append([]structs.DiagnosticRule{}, rules...)
		err := moveByPriority(out, ruleID, dir,
			func(r structs.DiagnosticRule) string { return r.ID },
			func(r structs.DiagnosticRule) int { return r.Priority },
			func(r *structs.DiagnosticRule, p int) { r.Priority = p },
		)
		if err != nil {
			return nil, errors.WrapFlowError(err, f.ID, blockID)
		}
		return out, nil
	})
}

// AddPlan appends a treatment plan to a plan-selection block.
func AddPlan(f structs.Flow, blockID string, plan structs.TreatmentPlan) (structs.Flow, error) {
	return editPlans(f, blockID, func(plans []structs.TreatmentPlan) ([]structs.TreatmentPlan, error) {
		if plan.ID == "" {
			return nil, errors.NewValidationError("id", "plan id is required")
		}
		for _, p := range plans {
			if p.ID == plan.ID {
				return nil, errors.NewValidationError("id", fmt.Sprintf("plan %s already exists", plan.ID))
			}
		}
		if plan.Priority == 0 {
			plan.Priority = nextPriority(plans, func(p structs.TreatmentPlan) int { return p.Priority })
		}
		return append(append([]structs.TreatmentPlan{}, plans...), plan), nil
	})
}

// UpdatePlan replaces a treatment plan by id.
func UpdatePlan(f structs.Flow, blockID string, plan structs.TreatmentPlan) (structs.Flow, error) {
	return editPlans(f, blockID, func(plans []structs.TreatmentPlan) ([]structs.TreatmentPlan, error) {
		out := append([]structs.TreatmentPlan{}, plans...)
		for i, p := range out {
			if p.ID == plan.ID {
				out[i] = plan
				return out, nil
			}
		}
		return nil, errors.WrapFlowError(errors.ErrRuleNotFound, f.ID, blockID)
	})
}

// RemovePlan drops a treatment plan by id.
func RemovePlan(f structs.Flow, blockID, planID string) (structs.Flow, error) {
	return editPlans(f, blockID, func(plans []structs.TreatmentPlan) ([]structs.TreatmentPlan, error) {
		out := make([]structs.TreatmentPlan, 0, len(plans))
		found := false
		for _, p := range plans {
			if p.ID == planID {
				found = true
				continue
			}
			out = append(out, p)
		}
		if !found {
			return nil, errors.WrapFlowError(errors.ErrRuleNotFound, f.ID, blockID)
		}
		return out, nil
	})
}

// MovePlan bumps a treatment plan up or down the priority order.
func MovePlan(f structs.Flow, blockID, planID string, dir Direction) (structs.Flow, error) {
	return editPlans(f, blockID, func(plans []structs.TreatmentPlan) ([]structs.TreatmentPlan, error) {
		out := append([]structs.TreatmentPlan{}, plans...)
		err := moveByPriority(out, planID, dir,
			func(p structs.TreatmentPlan) string { return p.ID },
			func(p structs.TreatmentPlan) int { return p.Priority },
			func(p *structs.TreatmentPlan, prio int) { p.Priority = prio },
		)
		if err != nil {
			return nil, errors.WrapFlowError(err, f.ID, blockID)
		}
		return out, nil
	})
}

func withBlocks(f structs.Flow, blocks []structs.Block) structs.Flow {
	f.Blocks = blocks
	f.UpdatedAt = time.Now()
	return f
}

func editDiagnosis(f structs.Flow, blockID string, edit func([]structs.DiagnosticRule) ([]structs.DiagnosticRule, error)) (structs.Flow, error) {
	for i, b := range f.Blocks {
		if b.ID != blockID {
			continue
		}
		if b.Type != structs.BlockDiagnosis || b.Diagnosis == nil {
			return f, errors.NewValidationError("blockId", fmt.Sprintf("block %s is not a diagnosis block", blockID))
		}
		rules, err := edit(b.Diagnosis.Rules)
		if err != nil {
			return f, err
		}

		blocks := make([]structs.Block, len(f.Blocks))
		copy(blocks, f.Blocks)
		blocks[i].Diagnosis = &structs.DiagnosisData{Rules: rules}
		return withBlocks(f, blocks), nil
	}
	return f, errors.WrapFlowError(errors.ErrBlockNotFound, f.ID, blockID)
}

func editPlans(f structs.Flow, blockID string, edit func([]structs.TreatmentPlan) ([]structs.TreatmentPlan, error)) (structs.Flow, error) {
	for i, b := range f.Blocks {
		if b.ID != blockID {
			continue
		}
		if b.Type != structs.BlockPlanSelection || b.Plan == nil {
			return f, errors.NewValidationError("blockId", fmt.Sprintf("block %s is not a plan-selection block", blockID))
		}
		plans, err := edit(b.Plan.Plans)
		if err != nil {
			return f, err
		}

		blocks := make([]structs.Block, len(f.Blocks))
		copy(blocks, f.Blocks)
		blocks[i].Plan = &structs.PlanData{Plans: plans}
		return withBlocks(f, blocks), nil
	}
	return f, errors.WrapFlowError(errors.ErrBlockNotFound, f.ID, blockID)
}

// moveByPriority swaps the priority of one element with its neighbour
// in the priority order, then re-sorts the slice by priority with
// declaration order breaking ties. Neighbours sharing a priority value
// get the list renumbered sequentially so the move always takes effect.
func moveByPriority[T any](list []T, id string, dir Direction, idOf func(T) string, prioOf func(T) int, setPrio func(*T, int)) error {
	order := make([]int, len(list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return prioOf(list[order[a]]) < prioOf(list[order[b]])
	})

	pos := -1
	for p, idx := range order {
		if idOf(list[idx]) == id {
			pos = p
			break
		}
	}
	if pos < 0 {
		return errors.ErrRuleNotFound
	}

	var neighbour int
	switch dir {
	case MoveUp:
		if pos == 0 {
			return nil
		}
		neighbour = pos - 1
	case MoveDown:
		if pos == len(order)-1 {
			return nil
		}
		neighbour = pos + 1
	default:
		return errors.NewValidationError("direction", fmt.Sprintf("unknown direction: %s", dir))
	}

	i, j := order[pos], order[neighbour]
	pi, pj := prioOf(list[i]), prioOf(list[j])
	if pi == pj {
		// swapping equal values would be an identity and the move
		// would silently not happen; renumber the whole list in the
		// moved order instead
		order[pos], order[neighbour] = order[neighbour], order[pos]
		for p, idx := range order {
			setPrio(&list[idx], p+1)
		}
	} else {
		setPrio(&list[i], pj)
		setPrio(&list[j], pi)
	}

	sort.SliceStable(list, func(a, b int) bool {
		return prioOf(list[a]) < prioOf(list[b])
	})
	return nil
}

func nextPriority[T any](list []T, prioOf func(T) int) int {
	max := 0
	for _, item := range list {
		if prioOf(item) > max {
			max = prioOf(item)
		}
	}
	return max + 1
}
