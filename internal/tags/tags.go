package tags

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// AnswerKey normalizes an answer value into the key used by a
// question's tag rules: the option string for choices, "true"/"false"
// for booleans. Text and number answers have no key.
func AnswerKey(q structs.Question, value interface{}) (string, bool) {
	switch q.AnswerType {
	case structs.AnswerBoolean:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), true
		}
	case structs.AnswerSingleChoice:
		if s, ok := value.(string); ok {
			return s, true
		}
	}
	return "", false
}

// Resolve maps a question's answer value to the tags it produces. It is
// pure: no accumulation happens here. Multiple-choice answers resolve
// to the union of every selected option's tags, each option looked up
// independently. Text and number questions resolve to nothing.
func Resolve(q structs.Question, value interface{}) ([]structs.Tag, error) {
	if value == nil {
		return nil, nil
	}

	switch q.AnswerType {
	case structs.AnswerText, structs.AnswerNumber:
		return nil, nil

	case structs.AnswerBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, errors.NewValidationError("value", fmt.Sprintf("question %s expects a boolean answer", q.ID))
		}
		return q.TagRules[strconv.FormatBool(b)], nil

	case structs.AnswerSingleChoice:
		s, ok := value.(string)
		if !ok {
			return nil, errors.NewValidationError("value", fmt.Sprintf("question %s expects a single option", q.ID))
		}
		if !hasOption(q, s) {
			return nil, errors.NewValidationError("value", fmt.Sprintf("option %q is not declared on question %s", s, q.ID))
		}
		return q.TagRules[s], nil

	case structs.AnswerMultipleChoice:
		selected, err := stringSlice(value)
		if err != nil {
			return nil, errors.NewValidationError("value", fmt.Sprintf("question %s expects a list of options", q.ID))
		}
		var out []structs.Tag
		seen := make(map[structs.Tag]bool)
		for _, s := range selected {
			if !hasOption(q, s) {
				return nil, errors.NewValidationError("value", fmt.Sprintf("option %q is not declared on question %s", s, q.ID))
			}
			for _, t := range q.TagRules[s] {
				if !seen[t] {
					seen[t] = true
					out = append(out, t)
				}
			}
		}
		return out, nil

	default:
		return nil, errors.NewValidationError("answerType", fmt.Sprintf("unknown answer type: %s", q.AnswerType))
	}
}

// ValidateTagRules checks that every tag-rule key on a question refers
// to a declared option, or to "true"/"false" for booleans.
func ValidateTagRules(q structs.Question) error {
	for key := range q.TagRules {
		switch q.AnswerType {
		case structs.AnswerBoolean:
			if key != "true" && key != "false" {
				return errors.NewValidationError("tagRules", fmt.Sprintf("question %s: boolean tag rule key must be true or false, got %q", q.ID, key))
			}
		case structs.AnswerSingleChoice, structs.AnswerMultipleChoice:
			if !hasOption(q, key) {
				return errors.NewValidationError("tagRules", fmt.Sprintf("question %s: tag rule key %q has no matching option", q.ID, key))
			}
		}
	}
	return nil
}

// Union merges tag lists preserving first-seen order, dropping
// duplicates.
func Union(lists ...[]structs.Tag) []structs.Tag {
	var out []structs.Tag
	seen := make(map[structs.Tag]bool)
	for _, list := range lists {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Contains reports whether the tag set includes the given tag.
// Comparison is case-sensitive.
func Contains(set []structs.Tag, tag structs.Tag) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}

// Vocabulary returns the sorted, deduplicated tag vocabulary reachable
// from a flow's questions and tag blocks, for the author's picker.
func Vocabulary(f structs.Flow) []structs.Tag {
	seen := make(map[structs.Tag]bool)
	collect := func(list []structs.Tag) {
		for _, t := range list {
			seen[t] = true
		}
	}

	collect(f.Tags)
	var walk func(blocks []structs.Block)
	walk = func(blocks []structs.Block) {
		for _, b := range blocks {
			switch b.Type {
			case structs.BlockQuestion:
				for _, list := range b.Question.Question.TagRules {
					collect(list)
				}
			case structs.BlockTag:
				collect(b.Tag.Tags)
			case structs.BlockGroup:
				walk(b.Group.Blocks)
			}
		}
	}
	walk(f.Blocks)

	out := make([]structs.Tag, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hasOption(q structs.Question, option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

func stringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}
