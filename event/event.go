// Package event implements the build's diagnostic notification surface
// (spec.md §6's EventSink): a closed set of named events the engine
// raises during a build, and a dispatcher that can fan a single event out
// to any number of subscribers.
//
// Grounded on original_source/events/aql_event_handler.py: the event set
// itself (dataFileIsNotSync, depValueIsCyclic, unknownValue, outdatedNode,
// targetIsBuiltTwiceByNodes) is carried across unchanged in meaning, with
// Python's class-method-as-event-slot design replaced by a plain
// interface - Go has no decorator-based registry to mirror, and an
// interface gives the same "every subscriber must handle every event"
// guarantee at compile time instead of the original's runtime
// verifyHandler reflection check.
//
// Sink methods take plain names rather than entity.Entity/*node.Node
// values so this package has no dependency on node or entity - it is the
// outermost layer, wired in by whoever drives a build, not by Node or
// VFile themselves.
package event

import "github.com/sirupsen/logrus"

// Sink is the full set of diagnostic events a build can raise.
type Sink interface {
	// DataFileOutOfSync reports that the VFile's on-disk state is
	// inconsistent with what the engine expected - either an internal
	// bug or external corruption of the database file.
	DataFileOutOfSync()
	// DepValueCyclic reports that valueName appears as its own
	// (possibly indirect) dependency.
	DepValueCyclic(valueName string)
	// UnknownValue reports a reference to a value the engine has no
	// record of.
	UnknownValue(valueName string)
	// OutdatedNode reports that nodeName needs to be rebuilt.
	OutdatedNode(nodeName string)
	// TargetBuiltTwice reports that targetName was produced by two
	// different nodes in the same build, a build-graph authoring error.
	TargetBuiltTwice(targetName, node1Name, node2Name string)
}

// LogrusSink is the default Sink, logging every event at the severity
// the Python original used: logWarning for the three internal-error
// events and for TargetBuiltTwice, logInfo for the routine OutdatedNode.
type LogrusSink struct {
	Logger *logrus.Logger
}

// NewLogrusSink returns a LogrusSink using logger, or logrus's standard
// logger if logger is nil.
func NewLogrusSink(logger *logrus.Logger) LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return LogrusSink{Logger: logger}
}

func (s LogrusSink) DataFileOutOfSync() {
	s.Logger.Warn("internal error: data file is out of sync")
}

func (s LogrusSink) DepValueCyclic(valueName string) {
	s.Logger.WithField("value", valueName).Warn("internal error: cyclic dependency value")
}

func (s LogrusSink) UnknownValue(valueName string) {
	s.Logger.WithField("value", valueName).Warn("internal error: unknown value")
}

func (s LogrusSink) OutdatedNode(nodeName string) {
	s.Logger.WithField("node", nodeName).Info("outdated node")
}

func (s LogrusSink) TargetBuiltTwice(targetName, node1Name, node2Name string) {
	s.Logger.WithFields(logrus.Fields{
		"target": targetName, "node1": node1Name, "node2": node2Name,
	}).Warn("target is built by different nodes")
}
