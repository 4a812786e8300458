package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServerWith starts a server with deps and returns the client ends of its pipes.
func newTestServerWith(t *testing.T, deps Deps, maxConcurrent int) (*io.PipeWriter, *bufio.Reader, *Server) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	s := NewWithConcurrency(inR, outW, discardLogger(), maxConcurrent)
	RegisterBuiltinHandlers(s, deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
		outW.Close()
	}()
	t.Cleanup(func() {
		cancel()
		inW.Close()
		outR.Close()
		<-done
	})
	return inW, bufio.NewReader(outR), s
}

func newTestServer(t *testing.T) (*io.PipeWriter, *bufio.Reader, *Server) {
	t.Helper()
	return newTestServerWith(t, Deps{}, 1)
}

func sendRequest(t *testing.T, w io.Writer, id int64, method string, params any) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := types.Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readResponse(t *testing.T, r *bufio.Reader) *types.Response {
	t.Helper()
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadBytes('\n')
		ch <- result{line, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read response: %v", res.err)
		}
		var resp types.Response
		if err := json.Unmarshal(res.line, &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", res.line, err)
		}
		return &resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	return nil
}

func initializeParams() types.InitializeParams {
	return types.InitializeParams{
		ClientName:      "test-client",
		ClientVersion:   "0.0.1",
		ProtocolVersion: ProtocolVersion,
	}
}

func TestServer_Initialize(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	p := initializeParams()
	p.RequiredCapabilities = []string{"compare", "telepathy"}
	sendRequest(t, stdin, 1, "initialize", p)
	resp := readResponse(t, stdout)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.ID != 1 {
		t.Errorf("ID = %d, want 1", resp.ID)
	}

	var result types.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.EngineVersion != EngineVersion {
		t.Errorf("EngineVersion = %q, want %q", result.EngineVersion, EngineVersion)
	}
	if result.Compatible {
		t.Error("Compatible = true with an unknown required capability")
	}
	if len(result.Missing) != 1 || result.Missing[0] != "telepathy" {
		t.Errorf("Missing = %v, want [telepathy]", result.Missing)
	}
	if strings.Join(result.Modes, ",") != "line_diff,token_match" {
		t.Errorf("Modes = %v", result.Modes)
	}
}

func TestServer_InitializeTwiceFails(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	sendRequest(t, stdin, 1, "initialize", initializeParams())
	readResponse(t, stdout)
	sendRequest(t, stdin, 2, "initialize", initializeParams())
	resp := readResponse(t, stdout)

	if resp.Error == nil || resp.Error.Code != types.ErrSessionError {
		t.Fatalf("second initialize = %+v, want session error", resp.Error)
	}
}

func TestServer_ProtocolVersionMismatch(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	p := initializeParams()
	p.ProtocolVersion = 99
	sendRequest(t, stdin, 1, "initialize", p)
	resp := readResponse(t, stdout)

	if resp.Error == nil || resp.Error.Code != types.ErrSessionError {
		t.Fatalf("error = %+v, want session error", resp.Error)
	}
}

func TestServer_ParseError(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	if _, err := stdin.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp := readResponse(t, stdout)
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("error = %+v, want -32700", resp.Error)
	}
}

func TestServer_InvalidRequest(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	if _, err := stdin.Write([]byte(`{"jsonrpc":"1.0","id":4,"method":"compare"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp := readResponse(t, stdout)
	if resp.Error == nil || resp.Error.Code != -32600 {
		t.Fatalf("error = %+v, want -32600", resp.Error)
	}
	if resp.ID != 4 {
		t.Errorf("ID = %d, want 4", resp.ID)
	}
}

func TestServer_MethodNotFound(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	sendRequest(t, stdin, 7, "evaluate_everything", struct{}{})
	resp := readResponse(t, stdout)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("error = %+v, want -32601", resp.Error)
	}
}

func TestServer_Shutdown(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	sendRequest(t, stdin, 1, "initialize", initializeParams())
	readResponse(t, stdout)
	sendRequest(t, stdin, 2, "compare", types.CompareParams{Student: "a", Expected: "a", Mode: types.ModeLineDiff})
	readResponse(t, stdout)
	sendRequest(t, stdin, 3, "shutdown", struct{}{})
	resp := readResponse(t, stdout)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result types.ShutdownResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.SessionsCompleted != 1 || result.CasesGraded != 1 {
		t.Errorf("ShutdownResult = %+v, want 1 session and 1 case", result)
	}
}

func TestServer_ShutdownBeforeInitialize(t *testing.T) {
	stdin, stdout, _ := newTestServer(t)

	sendRequest(t, stdin, 1, "shutdown", struct{}{})
	resp := readResponse(t, stdout)
	if resp.Error == nil || resp.Error.Code != types.ErrSessionError {
		t.Fatalf("error = %+v, want session error", resp.Error)
	}
}

func TestServer_ConcurrentRequestsAllAnswered(t *testing.T) {
	grader := grading.NewGrader(nil)
	stdin, stdout, _ := newTestServerWith(t, Deps{Grader: grader, Batch: grading.NewBatch(grader, 4)}, 8)

	sendRequest(t, stdin, 1, "initialize", initializeParams())
	readResponse(t, stdout)

	const n = 20
	var batch []byte
	for i := 0; i < n; i++ {
		params, _ := json.Marshal(types.CompareParams{Student: "x y", Expected: "x y z", Mode: types.ModeTokenMatch})
		line, _ := json.Marshal(types.Request{JSONRPC: "2.0", ID: int64(100 + i), Method: "compare", Params: params})
		batch = append(append(batch, line...), '\n')
	}
	go func() { _, _ = stdin.Write(batch) }()

	seen := make(map[int64]bool)
	for i := 0; i < n; i++ {
		resp := readResponse(t, stdout)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %+v", resp.ID, resp.Error)
		}
		seen[resp.ID] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct responses, want %d", len(seen), n)
	}
}

func TestServer_ConcurrentShutdownStopsRun(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	defer outR.Close()

	s := NewWithConcurrency(inR, outW, discardLogger(), 4)
	RegisterBuiltinHandlers(s, Deps{})
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(context.Background()) }()

	stdout := bufio.NewReader(outR)
	sendRequest(t, inW, 1, "initialize", initializeParams())
	readResponse(t, stdout)
	sendRequest(t, inW, 2, "shutdown", struct{}{})
	if resp := readResponse(t, stdout); resp.Error != nil {
		t.Fatalf("shutdown failed: %+v", resp.Error)
	}

	// stdin stays open; Run must return on shutdown alone.
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept reading after shutdown")
	}
}

func TestSession_ShuttingDownClosesOnce(t *testing.T) {
	sess := NewSession()
	select {
	case <-sess.ShuttingDown():
		t.Fatal("new session reports shutting down")
	default:
	}

	sess.SetState(StateInitialized)
	sess.SetState(StateShuttingDown)
	sess.SetState(StateShuttingDown)

	select {
	case <-sess.ShuttingDown():
	default:
		t.Fatal("ShuttingDown not closed after shutdown")
	}
}

func TestServer_SetRateLimit(t *testing.T) {
	s := New(strings.NewReader(""), io.Discard, discardLogger())

	s.SetRateLimit(5, 2)
	if s.limiter.Limit() != rate.Limit(5) || s.limiter.Burst() != 2 {
		t.Errorf("limiter = %v/%d, want 5/2", s.limiter.Limit(), s.limiter.Burst())
	}
	s.SetRateLimit(3, 0)
	if s.limiter.Burst() != 1 {
		t.Errorf("burst = %d, want 1", s.limiter.Burst())
	}
	s.SetRateLimit(0, 10)
	if s.limiter.Limit() != rate.Inf {
		t.Errorf("limit = %v, want Inf", s.limiter.Limit())
	}
}

func TestServer_RunStopsAtEOF(t *testing.T) {
	var out strings.Builder
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocol_version":1}}` + "\n\n")
	s := New(in, &out, discardLogger())
	RegisterBuiltinHandlers(s, Deps{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Count(out.String(), "\n") != 1 {
		t.Errorf("output = %q, want one response", out.String())
	}
	if s.session.State() != StateInitialized {
		t.Errorf("state = %v, want initialized", s.session.State())
	}
}

func TestSessionState_String(t *testing.T) {
	cases := map[SessionState]string{
		StateUninitialized: "uninitialized",
		StateInitialized:   "initialized",
		StateShuttingDown:  "shutting_down",
		SessionState(42):   "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("SessionState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
