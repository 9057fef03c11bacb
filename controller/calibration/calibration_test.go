package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Knetic/govaluate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFormula(t *testing.T) {
	c, err := NewWithFormula("(2 * v) + 1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, c.Pressure(3))
}

func TestDefaultFormula(t *testing.T) {
	c := New()
	assert.InDelta(t, 5.0221*10-24.036, c.Pressure(10), 1e-9)
	assert.Equal(t, DefaultFormula, c.Formula())
}

func TestParseRejectsUnrestrictedExpressions(t *testing.T) {
	for _, src := range []string{
		"",
		"v + x",
		"pow(v, 2)",
		"v > 1",
		"v; 2",
		"v2 + 1",
		"(v + 1",
		"v + 1)",
		`"boom"`,
	} {
		_, err := Parse(src)
		assert.Error(t, err, "expression %q should be rejected", src)
	}
}

func TestParseAcceptsArithmetic(t *testing.T) {
	for _, src := range []string{
		"v",
		"-v",
		"(5.0221 * v) - 24.036",
		"((v + 1) / 2) * 3.5",
	} {
		_, err := Parse(src)
		assert.NoError(t, err, "expression %q should be accepted", src)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Equal(t, DefaultFormula, c.Formula())
}

func TestLoadFormulaLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\np = (2 * v) + 1\n"), 0644))

	c := Load(path)
	assert.Equal(t, "(2 * v) + 1", c.Formula())
	assert.Equal(t, 9.0, c.Pressure(4))
}

func TestLoadBadExpressionFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.txt")
	require.NoError(t, os.WriteFile(path, []byte("p = exec(v)\n"), 0644))

	c := Load(path)
	assert.Equal(t, DefaultFormula, c.Formula())
}

func TestEvaluationFailureIsStickyAndSilent(t *testing.T) {
	// An expression referencing a parameter Pressure never supplies forces
	// an evaluation failure; the grammar check is bypassed on purpose.
	expr, err := govaluate.NewEvaluableExpression("w + 1")
	require.NoError(t, err)
	c := &Calibration{expr: expr, source: "w + 1"}

	got := c.Pressure(10)
	assert.InDelta(t, 5.0221*10-24.036, got, 1e-9)
	assert.Equal(t, DefaultFormula, c.Formula())

	// Subsequent calls keep using the default.
	assert.InDelta(t, 5.0221*2-24.036, c.Pressure(2), 1e-9)
}
