// Package device defines the hardware contract the controller drives: four
// digital valve ports, two analog inputs and an internal temperature sensor.
// Concrete drivers (LabJack U3 over USB, the built-in simulator) live behind
// the Driver interface; nothing above this package touches the hardware
// binding directly.
package device

import (
	"errors"

	"github.com/labjacker/labjacker/controller/status"
)

// ErrNotConnected is returned by drivers for any I/O issued while the
// device is closed.
var ErrNotConnected = errors.New("device: not connected")

// Info describes the connected device.
type Info struct {
	Name            string `json:"name"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
}

// Driver is the narrow device-interface contract. Valve ports are numbered
// 1..4, analog channels 0..1. ReadTemperature reports Kelvin, as the U3 does.
type Driver interface {
	Open() error
	Close() error
	PortState(port int) (status.PortState, error)
	SetPortState(port int, s status.PortState) error
	ReadAnalog(channel int) (float64, error)
	ReadTemperature() (float64, error)
	Info() (Info, error)
}
