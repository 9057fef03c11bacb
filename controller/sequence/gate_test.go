package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRequestAnswer(t *testing.T) {
	g := NewGate(0)
	quit := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		kind := <-g.Requests()
		assert.Equal(t, ParamLogFile, kind)
		require.NoError(t, g.Answer(ParamLogFile, "/tmp/run.csv", true))
	}()

	v, err := g.Request(ParamLogFile, quit)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/run.csv", v)
	<-done

	_, pending := g.Pending()
	assert.False(t, pending)
}

func TestGateCancelledAnswer(t *testing.T) {
	g := NewGate(0)
	quit := make(chan struct{})

	go func() {
		<-g.Requests()
		g.Answer(ParamSampleName, "", false)
	}()

	_, err := g.Request(ParamSampleName, quit)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestGateEmptyValueIsNoAnswer(t *testing.T) {
	g := NewGate(0)
	quit := make(chan struct{})

	go func() {
		<-g.Requests()
		g.Answer(ParamSampleName, "", true)
	}()

	_, err := g.Request(ParamSampleName, quit)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestGateTimeout(t *testing.T) {
	g := NewGate(10 * time.Millisecond)
	quit := make(chan struct{})

	_, err := g.Request(ParamLoopCount, quit)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGateQuit(t *testing.T) {
	g := NewGate(0)
	quit := make(chan struct{})
	close(quit)

	_, err := g.Request(ParamStepInterval, quit)
	assert.ErrorIs(t, err, ErrGateClosed)
}

func TestGateAnswerWithoutRequest(t *testing.T) {
	g := NewGate(0)
	assert.ErrorIs(t, g.Answer(ParamLogFile, "x", true), ErrNotPending)
}

func TestGateAnswerWrongKind(t *testing.T) {
	g := NewGate(0)
	quit := make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		<-g.Requests()
		errs <- g.Answer(ParamLoopCount, "6", true)
		g.Answer(ParamLogFile, "/tmp/run.csv", true)
	}()

	v, err := g.Request(ParamLogFile, quit)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/run.csv", v)
	assert.ErrorIs(t, <-errs, ErrNotPending)
}

func TestParseParamKind(t *testing.T) {
	for _, k := range []ParamKind{ParamLogFile, ParamSampleName, ParamStepInterval, ParamLoopCount} {
		got, err := ParseParamKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseParamKind("bogus")
	assert.Error(t, err)
}
