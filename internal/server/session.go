package server

import "sync"

// SessionState tracks where a client is in the initialize/shutdown handshake.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitialized
	StateShuttingDown
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShuttingDown:
		return "shutting_down"
	}
	return "unknown"
}

// Session holds per-connection state and counters.
type Session struct {
	mu                sync.Mutex
	state             SessionState
	clientName        string
	sessionsCompleted int64
	casesGraded       int64
	shutdown          chan struct{}
}

// NewSession returns an uninitialized session.
func NewSession() *Session {
	return &Session{state: StateUninitialized, shutdown: make(chan struct{})}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateShuttingDown && s.state != StateShuttingDown {
		close(s.shutdown)
	}
	s.state = state
}

// ShuttingDown is closed once the session enters StateShuttingDown.
func (s *Session) ShuttingDown() <-chan struct{} {
	return s.shutdown
}

// ClientName is the name the client sent in initialize.
func (s *Session) ClientName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientName
}

func (s *Session) setClientName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientName = name
}

// IncrementCases adds n to the number of test cases graded in this session.
func (s *Session) IncrementCases(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casesGraded += int64(n)
}

// complete marks one session finished and returns the counters.
func (s *Session) complete() (sessions, cases int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsCompleted++
	return s.sessionsCompleted, s.casesGraded
}
