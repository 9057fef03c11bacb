package device

import (
	"sync"

	"github.com/labjacker/labjacker/controller/status"
)

// serialized wraps a Driver in a single mutex so that engine actuations,
// manual toggles and poller reads never interleave at the device boundary.
type serialized struct {
	mu sync.Mutex
	d  Driver
}

// Serialize returns a Driver whose calls are serialized through one mutex.
// Wrapping an already serialized driver returns it unchanged.
func Serialize(d Driver) Driver {
	if _, ok := d.(*serialized); ok {
		return d
	}
	return &serialized{d: d}
}

func (s *serialized) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Open()
}

func (s *serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Close()
}

func (s *serialized) PortState(port int) (status.PortState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.PortState(port)
}

func (s *serialized) SetPortState(port int, st status.PortState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SetPortState(port, st)
}

func (s *serialized) ReadAnalog(channel int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ReadAnalog(channel)
}

func (s *serialized) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ReadTemperature()
}

func (s *serialized) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Info()
}
