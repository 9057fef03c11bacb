// Package schedule triggers unattended work: rrule-driven automatic
// sequence runs and a cron-driven background monitor that appends status
// records between runs.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
)

// ParseRule parses an RRULE string (e.g. "FREQ=HOURLY;INTERVAL=4").
// Empty string means no schedule.
func ParseRule(ruleStr string) (*rrule.RRule, error) {
	if ruleStr == "" {
		return nil, nil
	}
	// Prepend DTSTART=now in UTC
	start := time.Now().UTC().Format("20060102T150405Z")
	full := "DTSTART=" + start + ";" + ruleStr
	return rrule.StrToRRule(full)
}

// StartRule spawns a goroutine that waits for each recurrence of the rule,
// then calls the callback. It stops when quit is closed. An empty or invalid
// rule starts nothing.
func StartRule(ruleStr string, quit <-chan struct{}, callback func()) {
	if ruleStr == "" {
		return
	}
	rr, err := ParseRule(ruleStr)
	if err != nil {
		return
	}
	go func() {
		for {
			next := rr.After(time.Now(), false)
			if next.IsZero() {
				return
			}
			select {
			case <-time.After(time.Until(next)):
				callback()
			case <-quit:
				return
			}
		}
	}()
}

// Monitor runs a callback on a cron schedule.
type Monitor struct {
	c *cron.Cron
}

// StartMonitor starts a cron scheduler calling fn on the given spec
// (standard five-field cron syntax). An empty spec returns a nil Monitor,
// which Stop tolerates.
func StartMonitor(spec string, fn func()) (*Monitor, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, err
	}
	c.Start()
	return &Monitor{c: c}, nil
}

// Stop halts the scheduler. Safe on a nil Monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.c.Stop()
}
