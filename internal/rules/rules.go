package rules

import (
	"sort"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/tags"
)

// Candidate is anything that can compete for activation: diagnostic
// rules and treatment plans both satisfy it.
type Candidate interface {
	Condition() structs.ActivationCondition
	Rank() int
	Enabled() bool
}

// Satisfied evaluates an activation condition against the accumulated
// tag set. An empty condition never activates: a rule with no tags
// configured must not win by default.
func Satisfied(cond structs.ActivationCondition, tagSet []structs.Tag) bool {
	if len(cond.Tags) == 0 {
		return false
	}

	switch cond.Logic {
	case structs.LogicOr:
		for _, t := range cond.Tags {
			if tags.Contains(tagSet, t) {
				return true
			}
		}
		return false
	default:
		// AND is the default when logic is unset
		for _, t := range cond.Tags {
			if !tags.Contains(tagSet, t) {
				return false
			}
		}
		return true
	}
}

// Select picks the winning candidate for a tag set: disabled candidates
// are dropped, then unsatisfied ones, and the survivor with the lowest
// priority wins. Ties go to the first declared candidate so the result
// is deterministic. The second return is false when nothing matches;
// that is a defined outcome, not an error.
func Select[T Candidate](candidates []T, tagSet []structs.Tag) (T, bool) {
	var best T
	found := false

	for _, c := range candidates {
		if !c.Enabled() {
			continue
		}
		if !Satisfied(c.Condition(), tagSet) {
			continue
		}
		if !found || c.Rank() < best.Rank() {
			best = c
			found = true
		}
	}

	return best, found
}

// Eligible returns every enabled, satisfied candidate ordered by
// priority, declaration order breaking ties. The winner of Select is
// always the first element when any survive.
func Eligible[T Candidate](candidates []T, tagSet []structs.Tag) []T {
	var out []T
	for _, c := range candidates {
		if c.Enabled() && Satisfied(c.Condition(), tagSet) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}
