// Package calibration converts the measured voltage differential into a
// pressure value. The formula can be overridden by a calibration file
// containing a line of the form "p = <expression>", where the expression is
// restricted single-variable arithmetic over v. Anything the restricted
// grammar rejects, and any expression that later fails to evaluate, drops
// the override and sticks with the built-in default.
package calibration

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/Knetic/govaluate"
)

// DefaultFormula is the built-in pressure conversion for the rig's sensor.
const DefaultFormula = "(5.0221 * v) - 24.036"

// DefaultFile is the calibration file name, looked up next to the
// executable unless the config points elsewhere.
const DefaultFile = "calibration.txt"

var formulaLine = regexp.MustCompile(`^\s?p\s?=\s?`)

// Calibration evaluates the pressure formula. Safe for concurrent use.
type Calibration struct {
	mu       sync.Mutex
	expr     *govaluate.EvaluableExpression
	source   string
	fellBack bool
}

// Parse validates src against the restricted grammar and compiles it.
func Parse(src string) (*govaluate.EvaluableExpression, error) {
	if err := checkRestricted(src); err != nil {
		return nil, err
	}
	return govaluate.NewEvaluableExpression(src)
}

// checkRestricted accepts numeric literals, the variable v, parentheses and
// the four arithmetic operators. Everything else is rejected before the
// expression ever reaches the evaluator, so a calibration file cannot smuggle
// in function calls, comparisons or foreign identifiers.
func checkRestricted(src string) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("calibration: empty expression")
	}
	depth := 0
	rs := []rune(src)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == ' ' || r == '\t':
		case r >= '0' && r <= '9', r == '.':
		case r == '+', r == '-', r == '*', r == '/':
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("calibration: unbalanced parentheses")
			}
		case r == 'v':
			// v must stand alone, not begin a longer identifier.
			if i+1 < len(rs) && isIdentRune(rs[i+1]) {
				return fmt.Errorf("calibration: unknown identifier in %q", src)
			}
		default:
			return fmt.Errorf("calibration: illegal character %q in expression", r)
		}
	}
	if depth != 0 {
		return fmt.Errorf("calibration: unbalanced parentheses")
	}
	return nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func mustDefault() *govaluate.EvaluableExpression {
	expr, err := govaluate.NewEvaluableExpression(DefaultFormula)
	if err != nil {
		panic(err) // the default formula is a constant; this cannot happen
	}
	return expr
}

// New returns a Calibration using the built-in default formula.
func New() *Calibration {
	return &Calibration{expr: mustDefault(), source: DefaultFormula}
}

// NewWithFormula returns a Calibration using the given override expression.
func NewWithFormula(src string) (*Calibration, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return &Calibration{expr: expr, source: src}, nil
}

// Load reads the calibration file and returns a Calibration. A missing or
// unreadable file, or a file without a valid "p = ..." line, yields the
// default formula; Load itself never fails.
func Load(path string) *Calibration {
	f, err := os.Open(path)
	if err != nil {
		return New()
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !formulaLine.MatchString(line) {
			continue
		}
		src := strings.TrimSpace(line[strings.Index(line, "=")+1:])
		c, err := NewWithFormula(src)
		if err != nil {
			log.Printf("calibration: ignoring %s: %v", path, err)
			return New()
		}
		return c
	}
	return New()
}

// Formula returns the expression currently in effect.
func (c *Calibration) Formula() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Pressure evaluates the formula at the given voltage differential. If an
// override formula fails to evaluate, the override is permanently replaced
// with the default and the default's result is returned.
func (c *Calibration) Pressure(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.expr.Evaluate(map[string]interface{}{"v": v})
	if err == nil {
		if f, ok := out.(float64); ok {
			return f
		}
		err = fmt.Errorf("calibration: expression %q is not numeric", c.source)
	}
	if !c.fellBack {
		log.Printf("calibration: formula %q failed (%v), using default", c.source, err)
	}
	c.expr = mustDefault()
	c.source = DefaultFormula
	c.fellBack = true

	out, evalErr := c.expr.Evaluate(map[string]interface{}{"v": v})
	if evalErr != nil {
		return 0
	}
	f, _ := out.(float64)
	return f
}
