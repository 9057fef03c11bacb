package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/labjacker/labjacker/controller/status"
)

// Simulator is an in-memory driver used in dev mode, when no U3 hardware is
// attached. Analog channels produce a slow sine around a per-channel offset
// and the temperature sits near room temperature, so the pollers and the
// calibration path see plausible values.
type Simulator struct {
	mu    sync.Mutex
	open  bool
	ports [status.NumPorts]status.PortState
	start time.Time
}

func NewSimulator() *Simulator {
	s := &Simulator{start: time.Now()}
	for i := range s.ports {
		s.ports[i] = status.Closed
	}
	return s
}

func (s *Simulator) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Simulator) PortState(port int) (status.PortState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return status.Closed, ErrNotConnected
	}
	if port < status.FirstPort || port > status.LastPort {
		return status.Closed, fmt.Errorf("device: no such port %d", port)
	}
	return s.ports[port-1], nil
}

func (s *Simulator) SetPortState(port int, st status.PortState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotConnected
	}
	if port < status.FirstPort || port > status.LastPort {
		return fmt.Errorf("device: no such port %d", port)
	}
	s.ports[port-1] = st
	return nil
}

func (s *Simulator) ReadAnalog(channel int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotConnected
	}
	if channel != 0 && channel != 1 {
		return 0, fmt.Errorf("device: no such analog channel %d", channel)
	}
	t := time.Since(s.start).Seconds()
	base := 1.5 + float64(channel)*3.5
	return base + 0.05*math.Sin(t/7), nil
}

func (s *Simulator) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotConnected
	}
	// ~22 °C in Kelvin with a little drift.
	t := time.Since(s.start).Seconds()
	return 295.15 + 0.2*math.Sin(t/60), nil
}

func (s *Simulator) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Info{}, ErrNotConnected
	}
	return Info{Name: "U3-SIM", SerialNumber: "000000000", FirmwareVersion: "1.46"}, nil
}
