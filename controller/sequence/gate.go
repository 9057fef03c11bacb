package sequence

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ParamKind identifies one of the four run parameters the engine collects
// before a run, always requested in this order.
type ParamKind int

const (
	ParamLogFile ParamKind = iota
	ParamSampleName
	ParamStepInterval
	ParamLoopCount
)

var paramNames = map[ParamKind]string{
	ParamLogFile:      "log_file",
	ParamSampleName:   "sample_name",
	ParamStepInterval: "step_interval",
	ParamLoopCount:    "loop_count",
}

func (k ParamKind) String() string {
	if n, ok := paramNames[k]; ok {
		return n
	}
	return fmt.Sprintf("param(%d)", int(k))
}

// ParseParamKind maps an API path segment back to a ParamKind.
func ParseParamKind(s string) (ParamKind, error) {
	for k, n := range paramNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("sequence: unknown parameter kind %q", s)
}

var (
	// ErrNoAnswer means the operator cancelled or supplied an empty value.
	ErrNoAnswer = errors.New("sequence: parameter not supplied")
	// ErrTimeout means no answer arrived within the gate timeout.
	ErrTimeout = errors.New("sequence: timed out waiting for parameter")
	// ErrGateClosed means the run was stopped while awaiting an answer.
	ErrGateClosed = errors.New("sequence: gate closed")
	// ErrNotPending is returned by Answer when the kind does not match the
	// outstanding request.
	ErrNotPending = errors.New("sequence: no such pending parameter request")
)

type answer struct {
	value string
	ok    bool
}

// Gate is the synchronous request/response handshake between the engine and
// the operator surface. The engine keeps exactly one request outstanding at
// a time and blocks on the handoff channel until it is answered.
type Gate struct {
	timeout  time.Duration
	requests chan ParamKind

	mu      sync.Mutex
	pending bool
	kind    ParamKind
	ch      chan answer
}

// NewGate returns a Gate. A timeout of zero means requests wait forever;
// a positive timeout makes abandoned prompts abort the run instead of
// wedging it.
func NewGate(timeout time.Duration) *Gate {
	return &Gate{
		timeout:  timeout,
		requests: make(chan ParamKind, 4),
	}
}

// Requests delivers each newly issued request's kind. The operator surface
// consumes this to know which prompt to raise.
func (g *Gate) Requests() <-chan ParamKind { return g.requests }

// Pending reports the currently outstanding request, if any.
func (g *Gate) Pending() (ParamKind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.kind, g.pending
}

// Request blocks until the operator answers, the quit channel closes or the
// gate timeout expires. An empty or cancelled answer yields ErrNoAnswer.
func (g *Gate) Request(kind ParamKind, quit <-chan struct{}) (string, error) {
	g.mu.Lock()
	g.pending = true
	g.kind = kind
	g.ch = make(chan answer, 1)
	ch := g.ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.pending = false
		g.ch = nil
		g.mu.Unlock()
	}()

	select {
	case g.requests <- kind:
	default:
	}

	var timeoutC <-chan time.Time
	if g.timeout > 0 {
		t := time.NewTimer(g.timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	select {
	case a := <-ch:
		if !a.ok || a.value == "" {
			return "", ErrNoAnswer
		}
		return a.value, nil
	case <-quit:
		return "", ErrGateClosed
	case <-timeoutC:
		return "", ErrTimeout
	}
}

// Answer completes the outstanding request. ok=false (or an empty value)
// is the explicit cancelled sentinel.
func (g *Gate) Answer(kind ParamKind, value string, ok bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending || g.kind != kind {
		return ErrNotPending
	}
	g.ch <- answer{value: value, ok: ok}
	g.pending = false
	return nil
}
