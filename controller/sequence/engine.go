// Package sequence runs the timed valve actuation sequence: precondition
// check, parameter collection through the gate, then the fixed step list for
// the configured number of loops.
package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labjacker/labjacker/controller/device"
	"github.com/labjacker/labjacker/controller/eventlog"
	"github.com/labjacker/labjacker/controller/status"
)

// State is the engine's lifecycle state. Terminal states are reported once,
// then the engine returns to Idle.
type State int

const (
	Idle State = iota
	CheckingPreconditions
	AwaitingConfig
	Running
	Completed
	Cancelled
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingPreconditions:
		return "checking_preconditions"
	case AwaitingConfig:
		return "awaiting_config"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

var (
	// ErrBusy is returned by Run when a run is already active.
	ErrBusy = errors.New("sequence: run already in progress")
	// ErrPrecondition is returned when the valve state check fails.
	ErrPrecondition = errors.New("sequence: valve states do not match required initial state")
)

// Events is the log/alert side of the operator collaborator.
type Events interface {
	LogLine(msg string)
	Alert(msg string)
}

// Config holds the four operator-supplied run parameters. It is built fresh
// by the gate handshake for every run and discarded at run end.
type Config struct {
	LogPath      string
	SampleName   string
	StepInterval int // seconds
	LoopCount    int
}

// requiredState is the valve configuration that must hold before a run may
// start: every port closed.
var requiredState = [status.NumPorts]status.PortState{
	status.Closed, status.Closed, status.Closed, status.Closed,
}

// Engine executes sequence runs. One run at a time; Run blocks for the whole
// run and is normally invoked on its own goroutine via Start.
type Engine struct {
	dev    device.Driver
	store  *status.Store
	gate   *Gate
	events Events

	// test seams; Run uses these for waits and timestamps
	sleep func(time.Duration)
	now   func() time.Time

	mu    sync.Mutex
	state State
	last  State // most recent terminal state
	stop  chan struct{}
}

// New returns an Engine wired to the given collaborators.
func New(dev device.Driver, store *status.Store, gate *Gate, events Events) *Engine {
	return &Engine{
		dev:    dev,
		store:  store,
		gate:   gate,
		events: events,
		sleep:  time.Sleep,
		now:    time.Now,
		state:  Idle,
	}
}

// Gate returns the engine's parameter gate.
func (e *Engine) Gate() *Gate { return e.gate }

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastOutcome returns the terminal state of the most recent run.
func (e *Engine) LastOutcome() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Start launches Run on a new goroutine. It fails immediately if a run is
// already active.
func (e *Engine) Start() error {
	if err := e.begin(); err != nil {
		return err
	}
	go e.run()
	return nil
}

// Run executes a full run synchronously.
func (e *Engine) Run() error {
	if err := e.begin(); err != nil {
		return err
	}
	return e.run()
}

// Stop requests cancellation of the active run. The step in flight (a wait
// included) always completes; no further step starts.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return
	}
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return ErrBusy
	}
	e.state = CheckingPreconditions
	e.stop = make(chan struct{})
	return nil
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// finish records the terminal state and returns the engine to Idle.
func (e *Engine) finish(terminal State) {
	e.mu.Lock()
	e.last = terminal
	e.state = Idle
	e.mu.Unlock()
}

func (e *Engine) cancelled() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	ts := e.now().Format(eventlog.DateFormat)
	e.events.LogLine(ts + " : " + fmt.Sprintf(format, args...))
}

func (e *Engine) run() error {
	if !e.checkInitialState() {
		e.finish(Aborted)
		return ErrPrecondition
	}

	e.setState(AwaitingConfig)
	cfg, err := e.gatherConfig()
	if err != nil {
		e.finish(Aborted)
		return err
	}

	logger := eventlog.New(cfg.LogPath, cfg.SampleName)
	steps := BuildSteps(cfg.StepInterval)

	e.setState(Running)
	e.store.SetRunning(true)
	defer e.store.SetRunning(false)

	cancelled := false
loops:
	for i := 1; i <= cfg.LoopCount; i++ {
		if e.cancelled() {
			cancelled = true
			break
		}
		e.logf("starting sequence loop %d of %d", i, cfg.LoopCount)
		e.execStep(startStep, logger)
		for _, st := range steps {
			if e.cancelled() {
				cancelled = true
				break loops
			}
			e.execStep(st, logger)
		}
	}

	if cancelled {
		e.logf("sequence cancelled")
		e.finish(Cancelled)
		return nil
	}
	e.logf("finished")
	e.finish(Completed)
	return nil
}

// checkInitialState verifies the live valve states against the required
// initial configuration. A mismatch raises exactly one alert listing the
// required state per port, one log line, and aborts the run.
func (e *Engine) checkInitialState() bool {
	snap := e.store.Snapshot()
	for i, req := range requiredState {
		if snap.Valves[i] != req {
			e.events.Alert(requiredStateAlert())
			e.logf("valve states do not match required initial state")
			return false
		}
	}
	return true
}

func requiredStateAlert() string {
	lines := make([]string, 0, status.NumPorts)
	for i, req := range requiredState {
		lines = append(lines, fmt.Sprintf("  Valve %d : %s", i+1, req))
	}
	return "Required initial state:    \n\n" + strings.Join(lines, "\n")
}

// gatherConfig collects the four run parameters through the gate, in fixed
// order. Any empty or cancelled answer aborts with a parameter-specific
// message.
func (e *Engine) gatherConfig() (Config, error) {
	var cfg Config

	path, err := e.gate.Request(ParamLogFile, e.stop)
	if err != nil {
		e.logf("no output file specified. not starting")
		return cfg, err
	}
	cfg.LogPath = path

	name, err := e.gate.Request(ParamSampleName, e.stop)
	if err != nil {
		e.logf("no sample name specified. not starting")
		return cfg, err
	}
	cfg.SampleName = name

	interval, err := e.requestInt(ParamStepInterval)
	if err != nil {
		e.logf("no time step interval specified. not starting")
		return cfg, err
	}
	cfg.StepInterval = interval

	loops, err := e.requestInt(ParamLoopCount)
	if err != nil {
		e.logf("no loop count specified. not starting")
		return cfg, err
	}
	cfg.LoopCount = loops

	return cfg, nil
}

func (e *Engine) requestInt(kind ParamKind) (int, error) {
	v, err := e.gate.Request(kind, e.stop)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(v))
	if convErr != nil || n < 1 {
		return 0, ErrNoAnswer
	}
	return n, nil
}

// execStep logs the step message, writes a snapshot record first if the step
// is flagged for it, then applies the side effect. Device and log-file
// failures are reported and never abort the run.
func (e *Engine) execStep(st Step, logger *eventlog.Logger) {
	ts := e.now().Format(eventlog.DateFormat)
	e.events.LogLine(ts + " : " + st.Msg)

	if st.Snapshot {
		if err := logger.Write(ts, e.store.Snapshot()); err != nil {
			e.events.LogLine(ts + " : " + err.Error())
		}
	}

	switch st.Kind {
	case StepWait:
		e.sleep(st.Delay)
	case StepSetValve:
		if err := e.dev.SetPortState(st.Port, st.Target); err != nil {
			e.logf("failed to set valve %d: %v", st.Port, err)
			return
		}
		e.store.SetValve(st.Port, st.Target)
	case StepLogOnly:
	}
}
