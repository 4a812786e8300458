package types

import "encoding/json"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData holds structured error detail.
type ErrorData struct {
	ErrorType string `json:"error_type"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail"`
}

// InitializeParams holds parameters for the initialize method.
type InitializeParams struct {
	ClientName           string   `json:"client_name"`
	ClientVersion        string   `json:"client_version"`
	ProtocolVersion      int      `json:"protocol_version"`
	RequiredCapabilities []string `json:"required_capabilities"`
}

// InitializeResult holds the result of the initialize method.
type InitializeResult struct {
	EngineVersion         string   `json:"engine_version"`
	ProtocolVersion       int      `json:"protocol_version"`
	Capabilities          []string `json:"capabilities"`
	Missing               []string `json:"missing"`
	Compatible            bool     `json:"compatible"`
	Modes                 []string `json:"modes"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests"`
	MaxTextSizeBytes      int      `json:"max_text_size_bytes"`
}

// CompareParams holds parameters for the compare method.
// Points is optional; when set the result carries an award.
type CompareParams struct {
	Student  string         `json:"student"`
	Expected string         `json:"expected"`
	Mode     ComparisonMode `json:"mode"`
	Points   *float64       `json:"points,omitempty"`
}

// CompareResult holds the result of the compare method.
type CompareResult struct {
	Grade  float64    `json:"grade"`
	Award  *int       `json:"award,omitempty"`
	Report DiffReport `json:"report"`
}

// GradeCase is one test case together with its already-loaded texts.
// Cout and Cerr are nil when the stream was not captured.
type GradeCase struct {
	TestCase TestCase `json:"test_case"`
	Student  string   `json:"student"`
	Expected string   `json:"expected"`
	Cout     *string  `json:"cout,omitempty"`
	Cerr     *string  `json:"cerr,omitempty"`
}

// GradeBatchParams holds parameters for the grade_batch method.
type GradeBatchParams struct {
	Submission string      `json:"submission,omitempty"`
	Cases      []GradeCase `json:"cases"`
}

// Advisory is a message about a captured stream. It never affects the grade.
type Advisory struct {
	Stream  string `json:"stream"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// TestCaseOutcome is the graded result of one test case.
type TestCaseOutcome struct {
	Title      string     `json:"test_name"`
	Points     float64    `json:"max_points"`
	Grade      float64    `json:"grade"`
	Award      int        `json:"points_awarded"`
	Report     DiffReport `json:"diff"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

// GradeBatchResult holds the result of the grade_batch method.
type GradeBatchResult struct {
	Results      []TestCaseOutcome `json:"results"`
	TotalAwarded int               `json:"total_awarded"`
	MaxPoints    float64           `json:"max_points"`
}

// AwardHistoryParams holds parameters for the award_history method.
type AwardHistoryParams struct {
	TestName   string `json:"test_name"`
	WindowSize int    `json:"window_size"`
}

// AwardHistoryResult holds the result of the award_history method.
type AwardHistoryResult struct {
	TestName string    `json:"test_name"`
	Grades   []float64 `json:"grades"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"stddev"`
	Count    int       `json:"count"`
}

// ShutdownResult holds the result of the shutdown method.
type ShutdownResult struct {
	SessionsCompleted int `json:"sessions_completed"`
	CasesGraded       int `json:"cases_graded"`
}
