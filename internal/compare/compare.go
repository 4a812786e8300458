package compare

import (
	"errors"
	"fmt"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// ErrUnknownMode is returned when no comparator is registered for a mode.
var ErrUnknownMode = errors.New("unknown comparison mode")

// Comparator compares student output against expected output.
type Comparator interface {
	Compare(student, expected string) Result
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(student, expected string) Result

func (f ComparatorFunc) Compare(student, expected string) Result { return f(student, expected) }

// Registry maps comparison modes to comparators.
type Registry struct {
	comparators map[types.ComparisonMode]Comparator
}

// NewRegistry creates a registry with the line_diff and token_match
// comparators registered.
func NewRegistry() *Registry {
	r := &Registry{comparators: make(map[types.ComparisonMode]Comparator)}
	r.Register(types.ModeLineDiff, ComparatorFunc(func(s, e string) Result { return CompareLines(s, e) }))
	r.Register(types.ModeTokenMatch, ComparatorFunc(func(s, e string) Result { return CompareTokens(s, e) }))
	return r
}

// Register adds a comparator for a mode, replacing any previous one.
func (r *Registry) Register(mode types.ComparisonMode, c Comparator) {
	r.comparators[mode] = c
}

// Modes lists the registered modes in a stable order.
func (r *Registry) Modes() []string {
	var modes []string
	for _, m := range []types.ComparisonMode{types.ModeLineDiff, types.ModeTokenMatch} {
		if _, ok := r.comparators[m]; ok {
			modes = append(modes, string(m))
		}
	}
	return modes
}

// Compare runs the comparator registered for mode.
func (r *Registry) Compare(student, expected string, mode types.ComparisonMode) (Result, error) {
	c, ok := r.comparators[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return c.Compare(student, expected), nil
}

var defaultRegistry = NewRegistry()

// Compare compares student output against expected output using the
// built-in comparator for mode.
func Compare(student, expected string, mode types.ComparisonMode) (Result, error) {
	return defaultRegistry.Compare(student, expected, mode)
}
