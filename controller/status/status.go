// Package status holds the live device state shared between the pollers,
// the sequence engine and the operator API.
package status

import "sync"

// PortState is the logical state of a valve port.
type PortState int

const (
	Open PortState = iota
	Closed
)

func (s PortState) String() string {
	if s == Open {
		return "Open"
	}
	return "Closed"
}

// Toggle returns the opposite state.
func (s PortState) Toggle() PortState {
	if s == Open {
		return Closed
	}
	return Open
}

// Ports are numbered 1..4, matching the valve labels on the rig.
const (
	FirstPort = 1
	LastPort  = 4
	NumPorts  = 4
)

// Reading is a sensor value that may be unavailable. A failed device read
// publishes an invalid Reading rather than an error.
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Avail returns a valid reading.
func Avail(v float64) Reading { return Reading{Value: v, Valid: true} }

// Unavail is the unavailable marker.
func Unavail() Reading { return Reading{} }

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Temperature Reading             `json:"temperature"`  // °C
	AIN0        Reading             `json:"ain0"`         // V
	AIN1        Reading             `json:"ain1"`         // V
	VoltageDiff Reading             `json:"voltage_diff"` // V
	Pressure    Reading             `json:"pressure"`     // psig
	Valves      [NumPorts]PortState `json:"valves"`       // index 0 = valve 1
	Running     bool                `json:"running"`
}

// Store is the shared status record. One RWMutex guards all field groups;
// each setter writes its own group only, so concurrent writers to different
// groups serialize but never clobber each other's fields.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.snap.Valves {
		s.snap.Valves[i] = Closed
	}
	return s
}

// SetTemperature publishes a temperature reading in °C.
func (s *Store) SetTemperature(r Reading) {
	s.mu.Lock()
	s.snap.Temperature = r
	s.mu.Unlock()
}

// SetAnalog publishes the analog group as one atomic set: both raw inputs,
// the derived voltage differential and the derived pressure.
func (s *Store) SetAnalog(ain0, ain1, vd, pressure Reading) {
	s.mu.Lock()
	s.snap.AIN0 = ain0
	s.snap.AIN1 = ain1
	s.snap.VoltageDiff = vd
	s.snap.Pressure = pressure
	s.mu.Unlock()
}

// SetValve records the state of one valve port (1..4).
func (s *Store) SetValve(port int, state PortState) {
	if port < FirstPort || port > LastPort {
		return
	}
	s.mu.Lock()
	s.snap.Valves[port-1] = state
	s.mu.Unlock()
}

// Valve returns the recorded state of one valve port.
func (s *Store) Valve(port int) PortState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Valves[port-1]
}

// SetRunning flags whether a sequence run is active.
func (s *Store) SetRunning(on bool) {
	s.mu.Lock()
	s.snap.Running = on
	s.mu.Unlock()
}

// Running reports whether a sequence run is active.
func (s *Store) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Running
}

// Snapshot copies the whole record under the read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
