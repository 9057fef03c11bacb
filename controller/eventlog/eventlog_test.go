package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labjacker/labjacker/controller/status"
)

func sampleSnapshot() status.Snapshot {
	return status.Snapshot{
		Pressure:    status.Avail(12.5),
		AIN0:        status.Avail(1.5),
		AIN1:        status.Avail(5),
		VoltageDiff: status.Avail(3.5),
		Valves: [status.NumPorts]status.PortState{
			status.Closed, status.Open, status.Closed, status.Closed,
		},
	}
}

func TestHeaderWrittenOnceForNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	l := New(path, "s1")

	require.NoError(t, l.Write("2024-01-02 03:04:05", sampleSnapshot()))
	require.NoError(t, l.Write("2024-01-02 03:04:10", sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.TrimRight(Header, "\n"), lines[0])
	assert.Equal(t, 1, strings.Count(string(data), "date,sample_name"))
}

func TestNoHeaderForNonEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0644))

	l := New(path, "s1")
	require.NoError(t, l.Write("2024-01-02 03:04:05", sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "date,sample_name"))
}

func TestHeaderForExistingEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	l := New(path, "s1")
	require.NoError(t, l.Write("2024-01-02 03:04:05", sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header))
}

func TestHeaderLiteral(t *testing.T) {
	// The header omits the comma between voltage_diff and valve_state_1;
	// existing logs and their consumers depend on it.
	assert.Contains(t, Header, "voltage_diffvalve_state_1")
}

func TestRecordFields(t *testing.T) {
	row := Record("2024-01-02 03:04:05", "s1", sampleSnapshot())
	fields := strings.Split(strings.TrimRight(row, "\n"), ",")
	require.Len(t, fields, 10)
	assert.Equal(t, "2024-01-02 03:04:05", fields[0])
	assert.Equal(t, "s1", fields[1])
	assert.Equal(t, "12.5", fields[2])
	assert.Equal(t, "1.5", fields[3])
	assert.Equal(t, "5", fields[4])
	assert.Equal(t, "3.5", fields[5])
	assert.Equal(t, []string{"Closed", "Open", "Closed", "Closed"}, fields[6:])
}

func TestRecordUnavailableMarker(t *testing.T) {
	snap := sampleSnapshot()
	snap.Pressure = status.Unavail()
	snap.VoltageDiff = status.Unavail()
	row := Record("2024-01-02 03:04:05", "s1", snap)
	fields := strings.Split(strings.TrimRight(row, "\n"), ",")
	assert.Equal(t, "--", fields[2])
	assert.Equal(t, "--", fields[5])
}

func TestWriteErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "s1") // a directory cannot be opened for append
	err := l.Write("2024-01-02 03:04:05", sampleSnapshot())
	assert.Error(t, err)
}
