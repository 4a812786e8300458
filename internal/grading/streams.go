package grading

import (
	"fmt"
	"strings"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

const (
	StreamCout = "cout"
	StreamCerr = "cerr"

	LevelWarning = "warning"
	LevelCheck   = "check"
	LevelError   = "error"
)

// StreamAdvisory applies one stream policy to a captured stream. A nil
// capture means the stream was not recorded. The result never affects the
// grade; ok is false when the policy has nothing to say.
func StreamAdvisory(stream string, policy types.StreamPolicy, capture *string) (types.Advisory, bool) {
	if policy == types.PolicyDontCheck || policy == "" {
		return types.Advisory{}, false
	}
	if capture == nil {
		return types.Advisory{
			Stream:  stream,
			Level:   LevelError,
			Message: fmt.Sprintf("%s capture does not exist", stream),
		}, true
	}

	switch policy {
	case types.PolicyWarnIfNotEmpty:
		if strings.TrimSpace(*capture) == "" {
			return types.Advisory{}, false
		}
		return types.Advisory{
			Stream:  stream,
			Level:   LevelWarning,
			Message: fmt.Sprintf("%s is not empty", stream),
		}, true
	case types.PolicyCheck:
		msg := fmt.Sprintf("check %s", stream)
		if stream == StreamCout {
			msg = fmt.Sprintf("check %s instead of output file", stream)
		}
		return types.Advisory{Stream: stream, Level: LevelCheck, Message: msg}, true
	}
	return types.Advisory{}, false
}

// Advisories evaluates the cout and cerr policies of a test case.
func Advisories(tc types.TestCase, cout, cerr *string) []types.Advisory {
	var out []types.Advisory
	if a, ok := StreamAdvisory(StreamCout, tc.CoutCheck, cout); ok {
		out = append(out, a)
	}
	if a, ok := StreamAdvisory(StreamCerr, tc.CerrCheck, cerr); ok {
		out = append(out, a)
	}
	return out
}
