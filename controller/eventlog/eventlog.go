// Package eventlog appends status snapshot records to a CSV log file.
package eventlog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/labjacker/labjacker/controller/status"
)

// Header is the fixed CSV header line. The missing comma between
// voltage_diff and valve_state_1 is deliberate: existing analysis scripts
// parse the header byte-for-byte and already compensate for it.
const Header = "date,sample_name,pressure,voltage_0,voltage_1,voltage_diff" +
	"valve_state_1,valve_state_2,valve_state_3,valve_state_4\n"

// DateFormat is the timestamp layout used for the date field.
const DateFormat = "2006-01-02 15:04:05"

// unavailable is how a failed reading renders in a record.
const unavailable = "--"

// Logger appends records to one log file. The file is opened per write, so
// a run can log to a file that an operator rotates or inspects between
// steps.
type Logger struct {
	path   string
	sample string
}

// New returns a Logger for the given file and sample name.
func New(path, sample string) *Logger {
	return &Logger{path: path, sample: sample}
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

func formatReading(r status.Reading) string {
	if !r.Valid {
		return unavailable
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// Record renders one data row from a snapshot: timestamp, sample name,
// pressure, both voltages, the voltage differential and the four valve
// state labels. Always 10 comma-separated fields.
func Record(timestamp, sample string, snap status.Snapshot) string {
	fields := []string{
		timestamp,
		sample,
		formatReading(snap.Pressure),
		formatReading(snap.AIN0),
		formatReading(snap.AIN1),
		formatReading(snap.VoltageDiff),
		snap.Valves[0].String(),
		snap.Valves[1].String(),
		snap.Valves[2].String(),
		snap.Valves[3].String(),
	}
	return strings.Join(fields, ",") + "\n"
}

// Write appends one snapshot record, writing the header line first when the
// file does not exist or is empty at the time of the write. A write failure
// is returned to the caller; it is never fatal to the run.
func (l *Logger) Write(timestamp string, snap status.Snapshot) error {
	needHeader := false
	if fi, err := os.Stat(l.path); os.IsNotExist(err) || (err == nil && fi.Size() == 0) {
		needHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	if needHeader {
		if _, err := f.WriteString(Header); err != nil {
			return fmt.Errorf("eventlog: write header: %w", err)
		}
	}
	if _, err := f.WriteString(Record(timestamp, l.sample, snap)); err != nil {
		return fmt.Errorf("eventlog: write record: %w", err)
	}
	return nil
}
