package event

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures every call it receives, for assertion.
type recordingSink struct {
	outdated []string
	unknown  []string
}

func (r *recordingSink) DataFileOutOfSync()       {}
func (r *recordingSink) DepValueCyclic(string)    {}
func (r *recordingSink) UnknownValue(name string) { r.unknown = append(r.unknown, name) }
func (r *recordingSink) OutdatedNode(name string) { r.outdated = append(r.outdated, name) }
func (r *recordingSink) TargetBuiltTwice(target, node1, node2 string) {}

// panickingSink always panics, to exercise Bus's recovery boundary.
type panickingSink struct{}

func (panickingSink) DataFileOutOfSync()                     { panic("boom") }
func (panickingSink) DepValueCyclic(string)                  { panic("boom") }
func (panickingSink) UnknownValue(string)                    { panic("boom") }
func (panickingSink) OutdatedNode(string)                    { panic("boom") }
func (panickingSink) TargetBuiltTwice(string, string, string) { panic("boom") }

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBusDispatchesToEverySubscriber(t *testing.T) {
	bus := NewBus(silentLogger())
	a, b := &recordingSink{}, &recordingSink{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.OutdatedNode("compile:a.c")

	assert.Equal(t, []string{"compile:a.c"}, a.outdated)
	assert.Equal(t, []string{"compile:a.c"}, b.outdated)
}

func TestBusRecoversFromPanickingSubscriber(t *testing.T) {
	bus := NewBus(silentLogger())
	bus.Subscribe(panickingSink{})
	rec := &recordingSink{}
	bus.Subscribe(rec)

	require.NotPanics(t, func() {
		bus.UnknownValue("mystery")
	})
	assert.Equal(t, []string{"mystery"}, rec.unknown)
}

func TestBusWithNoSubscribersIsANoOp(t *testing.T) {
	bus := NewBus(silentLogger())
	require.NotPanics(t, func() {
		bus.TargetBuiltTwice("out.o", "n1", "n2")
	})
}
