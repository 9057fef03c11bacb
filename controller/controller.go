// Package controller wires the device, status store, pollers, sequence
// engine, schedulers and telemetry into one unit behind an HTTP operator
// surface.
package controller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/labjacker/labjacker/controller/calibration"
	"github.com/labjacker/labjacker/controller/device"
	"github.com/labjacker/labjacker/controller/eventlog"
	"github.com/labjacker/labjacker/controller/poller"
	"github.com/labjacker/labjacker/controller/schedule"
	"github.com/labjacker/labjacker/controller/sequence"
	"github.com/labjacker/labjacker/controller/status"
	"github.com/labjacker/labjacker/controller/storage"
	"github.com/labjacker/labjacker/controller/telemetry"
)

// maxLogEntries caps the in-memory activity log.
const maxLogEntries = 100

// telemetryInterval is the cadence of gauge/MQTT refreshes.
const telemetryInterval = 2 * time.Second

// ErrSequenceRunning rejects manual valve toggles during a run.
var ErrSequenceRunning = errors.New("controller: sequence run in progress")

// Controller owns the full subsystem graph and implements the engine's
// Events contract.
type Controller struct {
	cfg      Config
	dev      device.Driver
	store    *status.Store
	db       *storage.Store
	calib    *calibration.Calibration
	pollers  *poller.Poller
	engine   *sequence.Engine
	tele     *telemetry.Telemetry
	registry *prometheus.Registry

	mu        sync.Mutex
	connected bool
	info      device.Info
	logs      []string
	alerts    []string
	quitters  map[string]chan struct{}
	monitor   *schedule.Monitor
}

// New builds a Controller from the config and a device driver. A nil driver
// with dev mode enabled selects the simulator; a nil driver otherwise is an
// error — the hardware binding is supplied by the driver build, not here.
func New(cfg Config, dev device.Driver) (*Controller, error) {
	if dev == nil {
		if !cfg.DevMode {
			return nil, errors.New("controller: no device driver; enable dev_mode or link a hardware driver")
		}
		dev = device.NewSimulator()
	}
	dev = device.Serialize(dev)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		dev:      dev,
		store:    status.NewStore(),
		db:       db,
		calib:    calibration.Load(cfg.CalibrationFile),
		registry: prometheus.NewRegistry(),
		quitters: make(map[string]chan struct{}),
	}
	if err := c.bootstrapSettings(); err != nil {
		db.Close()
		return nil, err
	}

	c.tele = telemetry.New(c.registry, cfg.MQTT)
	c.pollers = poller.New(dev, c.store, c.calib, cfg.PollInterval())
	gate := sequence.NewGate(cfg.GateTimeout())
	c.engine = sequence.New(dev, c.store, gate, c)
	return c, nil
}

// Start connects the device, launches the pollers, the telemetry loop and
// the schedulers.
func (c *Controller) Start() error {
	if err := c.Connect(); err != nil {
		// A failed initial connect is reported, not fatal; the operator
		// connects later through the API.
		c.appendLog("device connect failed: " + err.Error())
	}
	c.pollers.Start()

	q := make(chan struct{})
	c.mu.Lock()
	c.quitters["telemetry"] = q
	c.mu.Unlock()
	go c.telemetryLoop(q)

	s, err := c.Settings()
	if err != nil {
		return err
	}
	c.restartSchedules(s)
	return nil
}

// Stop tears everything down: active run, schedulers, pollers, telemetry,
// device, database.
func (c *Controller) Stop() {
	c.engine.Stop()
	c.stopSchedules()

	c.mu.Lock()
	for name, q := range c.quitters {
		close(q)
		delete(c.quitters, name)
	}
	c.mu.Unlock()

	c.pollers.Stop()
	c.tele.Close()
	c.dev.Close()
	c.db.Close()
}

func (c *Controller) telemetryLoop(quit <-chan struct{}) {
	t := time.NewTicker(telemetryInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.tele.Emit(c.store.Snapshot())
		case <-quit:
			return
		}
	}
}

// Connect opens the device, reads its identity and refreshes the valve
// states in the status store.
func (c *Controller) Connect() error {
	if err := c.dev.Open(); err != nil {
		return err
	}
	info, err := c.dev.Info()
	if err != nil {
		c.dev.Close()
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.info = info
	c.mu.Unlock()
	c.refreshValves()
	c.appendLog(fmt.Sprintf("connected to %s (serial %s, firmware %s)",
		info.Name, info.SerialNumber, info.FirmwareVersion))
	return nil
}

// Disconnect stops any active run and closes the device. The pollers keep
// running and publish unavailable readings while disconnected.
func (c *Controller) Disconnect() error {
	c.engine.Stop()
	c.mu.Lock()
	c.connected = false
	c.info = device.Info{}
	c.mu.Unlock()
	err := c.dev.Close()
	c.appendLog("disconnected from device")
	return err
}

// Connected reports the device connection state and identity.
func (c *Controller) Connected() (device.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.connected
}

// refreshValves reads all four port states into the status store.
func (c *Controller) refreshValves() {
	for port := status.FirstPort; port <= status.LastPort; port++ {
		if s, err := c.dev.PortState(port); err == nil {
			c.store.SetValve(port, s)
		}
	}
}

// ToggleValve flips one valve port. Rejected while a sequence run is
// active so manual actuation cannot disturb a run.
func (c *Controller) ToggleValve(port int) (status.PortState, error) {
	if port < status.FirstPort || port > status.LastPort {
		return 0, fmt.Errorf("controller: no such valve %d", port)
	}
	if c.store.Running() {
		return 0, ErrSequenceRunning
	}
	cur, err := c.dev.PortState(port)
	if err != nil {
		return 0, err
	}
	next := cur.Toggle()
	if err := c.dev.SetPortState(port, next); err != nil {
		return 0, err
	}
	c.store.SetValve(port, next)
	c.appendLog(fmt.Sprintf("valve %d set to %s", port, next))
	return next, nil
}

// StartSequence begins an interactive run; the operator answers the
// parameter prompts through the API.
func (c *Controller) StartSequence() error {
	if err := c.engine.Start(); err != nil {
		return err
	}
	c.appendLog("sequence run requested")
	return nil
}

// StopSequence requests cancellation of the active run.
func (c *Controller) StopSequence() {
	c.engine.Stop()
	c.appendLog("sequence stop requested")
}

// Engine exposes the sequence engine to the API layer.
func (c *Controller) Engine() *sequence.Engine { return c.engine }

// Status returns a snapshot of the live state.
func (c *Controller) Status() status.Snapshot { return c.store.Snapshot() }

// Calibration returns the pressure calibration in effect.
func (c *Controller) Calibration() *calibration.Calibration { return c.calib }

// LogLine implements sequence.Events: engine lines arrive already
// timestamped, so they are appended verbatim.
func (c *Controller) LogLine(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(msg)
}

// Alert implements sequence.Events.
func (c *Controller) Alert(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, msg)
	if len(c.alerts) > maxLogEntries {
		c.alerts = c.alerts[len(c.alerts)-maxLogEntries:]
	}
	c.appendLocked("alert: " + msg)
}

// appendLog adds a timestamped entry to the activity log.
func (c *Controller) appendLog(msg string) {
	entry := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(entry)
}

func (c *Controller) appendLocked(entry string) {
	c.logs = append(c.logs, entry)
	if len(c.logs) > maxLogEntries {
		c.logs = c.logs[len(c.logs)-maxLogEntries:]
	}
}

// Logs returns a copy of the activity log.
func (c *Controller) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.logs...)
}

// Alerts returns a copy of the alert list.
func (c *Controller) Alerts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.alerts...)
}

// restartSchedules stops and restarts the rrule runner and the cron monitor
// from the given settings.
func (c *Controller) restartSchedules(s Settings) {
	c.stopSchedules()

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.RunRule != "" {
		q := make(chan struct{})
		c.quitters["run_rule"] = q
		schedule.StartRule(s.RunRule, q, func() { c.scheduledRun() })
	}

	if s.MonitorCron != "" && s.MonitorLog != "" {
		mon, err := schedule.StartMonitor(s.MonitorCron, func() { c.monitorTick() })
		if err != nil {
			c.appendLocked(fmt.Sprintf("%s invalid monitor schedule: %v",
				time.Now().Format("15:04:05"), err))
		} else {
			c.monitor = mon
		}
	}
}

func (c *Controller) stopSchedules() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.quitters["run_rule"]; ok {
		close(q)
		delete(c.quitters, "run_rule")
	}
	c.monitor.Stop()
	c.monitor = nil
}

// scheduledRun starts an unattended run, answering the parameter gate from
// the persisted settings.
func (c *Controller) scheduledRun() {
	s, err := c.Settings()
	if err != nil || s.LogPath == "" {
		c.appendLog("scheduled run skipped: no log path configured")
		return
	}
	gate := c.engine.Gate()
	// Drop any stale request notifications from an earlier interactive run.
	for {
		select {
		case <-gate.Requests():
			continue
		default:
		}
		break
	}
	if err := c.engine.Start(); err != nil {
		c.appendLog("scheduled run skipped: " + err.Error())
		return
	}
	c.appendLog("scheduled sequence run started")

	go func() {
		for i := 0; i < 4; i++ {
			var kind sequence.ParamKind
			select {
			case kind = <-gate.Requests():
			case <-time.After(time.Minute):
				return
			}
			var value string
			switch kind {
			case sequence.ParamLogFile:
				value = s.LogPath
			case sequence.ParamSampleName:
				value = s.SampleName
			case sequence.ParamStepInterval:
				value = fmt.Sprintf("%d", s.StepInterval)
			case sequence.ParamLoopCount:
				value = fmt.Sprintf("%d", s.LoopCount)
			}
			gate.Answer(kind, value, true)
		}
	}()
}

// monitorTick appends one snapshot record to the monitor log.
func (c *Controller) monitorTick() {
	s, err := c.Settings()
	if err != nil || s.MonitorLog == "" {
		return
	}
	l := eventlog.New(s.MonitorLog, s.SampleName)
	ts := time.Now().Format(eventlog.DateFormat)
	if err := l.Write(ts, c.store.Snapshot()); err != nil {
		c.appendLog(err.Error())
	}
}
