// Package poller runs the two background sampling tasks: one for the
// device's internal temperature, one for the analog inputs and the values
// derived from them.
package poller

import (
	"sync"
	"time"

	"github.com/labjacker/labjacker/controller/calibration"
	"github.com/labjacker/labjacker/controller/device"
	"github.com/labjacker/labjacker/controller/status"
)

// DefaultInterval is the hardware sampling cadence.
const DefaultInterval = 500 * time.Millisecond

// kelvinOffset converts the device's Kelvin reading to °C.
const kelvinOffset = 273.15

// Poller owns the temperature and analog sampling loops.
type Poller struct {
	dev      device.Driver
	store    *status.Store
	calib    *calibration.Calibration
	interval time.Duration

	mu       sync.Mutex
	quitters map[string]chan struct{}
	wg       sync.WaitGroup
}

// New returns a Poller sampling at the given interval; an interval of zero
// uses DefaultInterval.
func New(dev device.Driver, store *status.Store, calib *calibration.Calibration, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		dev:      dev,
		store:    store,
		calib:    calib,
		interval: interval,
		quitters: make(map[string]chan struct{}),
	}
}

// Start launches both sampling loops. Calling Start on a running Poller is
// a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.quitters) != 0 {
		return
	}
	for name, tick := range map[string]func(){
		"temp": p.sampleTemperature,
		"ain":  p.sampleAnalog,
	} {
		q := make(chan struct{})
		p.quitters[name] = q
		p.wg.Add(1)
		go p.loop(tick, q)
	}
}

// Stop terminates both loops and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	for name, q := range p.quitters {
		close(q)
		delete(p.quitters, name)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) loop(tick func(), quit <-chan struct{}) {
	defer p.wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	tick()
	for {
		select {
		case <-t.C:
			tick()
		case <-quit:
			return
		}
	}
}

// sampleTemperature reads the internal sensor (Kelvin) and publishes °C.
// A read failure publishes the unavailable marker and leaves every other
// field group untouched.
func (p *Poller) sampleTemperature() {
	k, err := p.dev.ReadTemperature()
	if err != nil {
		p.store.SetTemperature(status.Unavail())
		return
	}
	p.store.SetTemperature(status.Avail(k - kelvinOffset))
}

// sampleAnalog reads both analog inputs and publishes the full analog group
// as one atomic set: ain0, ain1, vd = ain1 - ain0, and pressure derived from
// vd through the calibration formula. Any unavailable input makes the
// derived values unavailable too.
func (p *Poller) sampleAnalog() {
	var ain0, ain1 status.Reading
	if v, err := p.dev.ReadAnalog(0); err == nil {
		ain0 = status.Avail(v)
	}
	if v, err := p.dev.ReadAnalog(1); err == nil {
		ain1 = status.Avail(v)
	}

	var vd, pressure status.Reading
	if ain0.Valid && ain1.Valid {
		vd = status.Avail(ain1.Value - ain0.Value)
		pressure = status.Avail(p.calib.Pressure(vd.Value))
	}
	p.store.SetAnalog(ain0, ain1, vd, pressure)
}
