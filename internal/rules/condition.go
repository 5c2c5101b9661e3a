package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// Evaluator evaluates a conditional block's boolean expression against
// the run's answers and accumulated tags.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewEvaluator creates an Evaluator with an initialized program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Env builds the expression environment for one run: the raw answers
// keyed by question id, the accumulated tags, and a hasTag helper.
func Env(answers map[string]interface{}, tagSet []structs.Tag) map[string]interface{} {
	tagStrings := make([]string, 0, len(tagSet))
	for _, t := range tagSet {
		tagStrings = append(tagStrings, string(t))
	}

	return map[string]interface{}{
		"answers": answers,
		"tags":    tagStrings,
		"hasTag": func(tag string) bool {
			for _, t := range tagStrings {
				if t == tag {
					return true
				}
			}
			return false
		},
	}
}

// Evaluate compiles (once) and runs the expression against the
// environment. The expression must evaluate to a boolean; otherwise an
// error is returned.
func (e *Evaluator) Evaluate(expression string, env map[string]interface{}) (bool, error) {
	// Check cache with read lock
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if !ok {
		// Compile with write lock
		e.mu.Lock()
		if program, ok = e.cache[expression]; !ok {
			var err error
			program, err = expr.Compile(expression, expr.AllowUndefinedVariables())
			if err != nil {
				e.mu.Unlock()
				return false, err
			}
			e.cache[expression] = program
		}
		e.mu.Unlock()
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	if boolResult, ok := result.(bool); ok {
		return boolResult, nil
	}
	return false, fmt.Errorf("expression '%s' did not evaluate to a boolean, got %T", expression, result)
}
