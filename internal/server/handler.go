package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	segjson "github.com/segmentio/encoding/json"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/internal/store"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

const (
	EngineVersion   = "1.2.0"
	ProtocolVersion = 1

	maxTextSizeBytes      = 8 * 1024 * 1024
	maxConcurrentRequests = 64
	defaultHistoryWindow  = 20
	maxHistoryWindow      = 1000
)

// Deps are the collaborators the built-in handlers need.
// History may be nil, which disables award_history and recording.
type Deps struct {
	Grader  *grading.Grader
	Batch   *grading.Batch
	History *store.HistoryStore
}

// RegisterBuiltinHandlers registers the built-in JSON-RPC handlers on s.
func RegisterBuiltinHandlers(s *Server, deps Deps) {
	if deps.Grader == nil {
		deps.Grader = grading.NewGrader(nil)
	}
	if deps.Batch == nil {
		deps.Batch = grading.NewBatch(deps.Grader, 1)
	}

	caps := []string{"compare", "grade_batch", "stream_advisories"}
	if deps.History != nil {
		caps = append(caps, "award_history")
	}

	s.RegisterHandler("initialize", handleInitialize(caps, deps.Grader.Modes()))
	s.RegisterHandler("shutdown", handleShutdown)
	s.RegisterHandler("compare", handleCompare(deps.Grader))
	s.RegisterHandler("grade_batch", handleGradeBatch(deps.Batch, deps.History, s.logger))
	s.RegisterHandler("award_history", handleAwardHistory(deps.History))
}

func requireInitialized(session *Session, method string) *types.RPCError {
	if session.State() == StateInitialized {
		return nil
	}
	return types.NewRPCError(
		types.ErrSessionError,
		method+" called before initialize",
		types.ErrTypeSessionError,
		false,
		"call initialize first to establish a session",
	)
}

func invalidParams(method string, err error) *types.RPCError {
	return types.NewRPCError(
		types.ErrInvalidRequest,
		fmt.Sprintf("invalid %s params", method),
		types.ErrTypeInvalidRequest,
		false,
		err.Error(),
	)
}

func checkTextSize(field, text string) *types.RPCError {
	if len(text) <= maxTextSizeBytes {
		return nil
	}
	return types.NewRPCError(
		types.ErrInvalidRequest,
		field+" text too large",
		types.ErrTypeInvalidRequest,
		false,
		fmt.Sprintf("%d bytes exceeds the limit of %d", len(text), maxTextSizeBytes),
	)
}

func comparisonError(err error) *types.RPCError {
	return types.NewRPCError(
		types.ErrComparisonError,
		"comparison failed",
		types.ErrTypeComparisonError,
		false,
		err.Error(),
	)
}

func handleInitialize(caps, modes []string) Handler {
	return func(_ context.Context, session *Session, params json.RawMessage) (any, *types.RPCError) {
		if session.State() != StateUninitialized {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				"initialize called on already-initialized session",
				types.ErrTypeSessionError,
				false,
				"initialize may only be called once per session",
			)
		}

		var p types.InitializeParams
		if err := segjson.Unmarshal(params, &p); err != nil {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				"invalid initialize params",
				types.ErrTypeSessionError,
				false,
				err.Error(),
			)
		}

		if p.ProtocolVersion != ProtocolVersion {
			return nil, types.NewRPCError(
				types.ErrSessionError,
				fmt.Sprintf("protocol version %d not supported; engine supports version %d", p.ProtocolVersion, ProtocolVersion),
				types.ErrTypeSessionError,
				false,
				"upgrade the engine binary or downgrade the client protocol_version",
			)
		}

		supported := make(map[string]bool, len(caps))
		for _, c := range caps {
			supported[c] = true
		}
		missing := []string{}
		for _, req := range p.RequiredCapabilities {
			if !supported[req] {
				missing = append(missing, req)
			}
		}

		session.setClientName(p.ClientName)
		session.SetState(StateInitialized)

		return &types.InitializeResult{
			EngineVersion:         EngineVersion,
			ProtocolVersion:       ProtocolVersion,
			Capabilities:          caps,
			Missing:               missing,
			Compatible:            len(missing) == 0,
			Modes:                 modes,
			MaxConcurrentRequests: maxConcurrentRequests,
			MaxTextSizeBytes:      maxTextSizeBytes,
		}, nil
	}
}

func handleShutdown(_ context.Context, session *Session, _ json.RawMessage) (any, *types.RPCError) {
	if session.State() != StateInitialized {
		return nil, types.NewRPCError(
			types.ErrSessionError,
			"shutdown called on uninitialized or already-shutting-down session",
			types.ErrTypeSessionError,
			false,
			"call initialize before shutdown",
		)
	}

	session.SetState(StateShuttingDown)
	completed, graded := session.complete()

	return &types.ShutdownResult{
		SessionsCompleted: int(completed),
		CasesGraded:       int(graded),
	}, nil
}

func handleCompare(grader *grading.Grader) Handler {
	return func(_ context.Context, session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "compare"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.CompareParams
		if err := segjson.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("compare", err)
		}
		if p.Points != nil && *p.Points < 0 {
			return nil, invalidParams("compare", errors.New("points must be non-negative"))
		}
		if rpcErr := checkTextSize("student", p.Student); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := checkTextSize("expected", p.Expected); rpcErr != nil {
			return nil, rpcErr
		}

		res, err := grader.Compare(p.Student, p.Expected, p.Mode)
		if err != nil {
			return nil, comparisonError(err)
		}

		out := &types.CompareResult{Grade: res.Grade(), Report: res.Report()}
		if p.Points != nil {
			num, den := res.Fraction()
			award := grading.AwardFraction(num, den, *p.Points)
			out.Award = &award
		}
		session.IncrementCases(1)
		return out, nil
	}
}

func handleGradeBatch(batch *grading.Batch, history *store.HistoryStore, logger *slog.Logger) Handler {
	return func(ctx context.Context, session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "grade_batch"); rpcErr != nil {
			return nil, rpcErr
		}

		var p types.GradeBatchParams
		if err := segjson.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("grade_batch", err)
		}
		for i, c := range p.Cases {
			if c.TestCase.Title == "" {
				return nil, invalidParams("grade_batch", fmt.Errorf("cases[%d]: title is required", i))
			}
			if c.TestCase.Points < 0 {
				return nil, invalidParams("grade_batch", fmt.Errorf("cases[%d]: points must be non-negative", i))
			}
			if rpcErr := checkTextSize(c.TestCase.Title+" student", c.Student); rpcErr != nil {
				return nil, rpcErr
			}
			if rpcErr := checkTextSize(c.TestCase.Title+" expected", c.Expected); rpcErr != nil {
				return nil, rpcErr
			}
		}

		outcomes, err := batch.GradeAll(ctx, p.Cases)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, types.NewRPCError(
					types.ErrTimeout,
					"grade_batch interrupted",
					types.ErrTypeTimeout,
					true,
					err.Error(),
				)
			}
			return nil, comparisonError(err)
		}

		session.IncrementCases(len(outcomes))

		if history != nil {
			runID := uuid.NewString()
			for _, o := range outcomes {
				rec := store.AwardRecord{
					RunID:      runID,
					Submission: p.Submission,
					TestName:   o.TestCase.Title,
					Mode:       o.TestCase.Comparison,
					Grade:      o.Grade,
					Award:      o.Award,
					Points:     o.TestCase.Points,
				}
				if err := history.Record(ctx, rec); err != nil {
					logger.Warn("failed to record award history", "run_id", runID, "test", o.TestCase.Title, "err", err)
				}
			}
		}

		res := grading.Summarize(outcomes)
		return &res, nil
	}
}

func handleAwardHistory(history *store.HistoryStore) Handler {
	return func(ctx context.Context, session *Session, params json.RawMessage) (any, *types.RPCError) {
		if rpcErr := requireInitialized(session, "award_history"); rpcErr != nil {
			return nil, rpcErr
		}
		if history == nil {
			return nil, types.NewRPCError(
				types.ErrStoreError,
				"award history is not configured",
				types.ErrTypeStoreError,
				false,
				"start the engine with a history store",
			)
		}

		var p types.AwardHistoryParams
		if err := segjson.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("award_history", err)
		}
		if p.TestName == "" {
			return nil, invalidParams("award_history", errors.New("test_name is required"))
		}
		window := p.WindowSize
		if window <= 0 {
			window = defaultHistoryWindow
		}
		window = min(window, maxHistoryWindow)

		grades, err := history.QueryWindow(ctx, p.TestName, window)
		if err != nil {
			return nil, storeError(err)
		}
		mean, stddev, count, err := history.Stats(ctx, p.TestName)
		if err != nil {
			return nil, storeError(err)
		}
		if grades == nil {
			grades = []float64{}
		}

		return &types.AwardHistoryResult{
			TestName: p.TestName,
			Grades:   grades,
			Mean:     mean,
			StdDev:   stddev,
			Count:    count,
		}, nil
	}
}

func storeError(err error) *types.RPCError {
	return types.NewRPCError(
		types.ErrStoreError,
		"award history query failed",
		types.ErrTypeStoreError,
		true,
		err.Error(),
	)
}
