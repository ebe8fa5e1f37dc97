package pipeline

import "github.com/sirupsen/logrus"

// ProgressSink receives (current, total) step counts from the worker.
type ProgressSink interface {
	Progress(current, total int)
}

// LogSink receives human-readable progress messages.
type LogSink interface {
	Log(message string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(current, total int)

func (f ProgressFunc) Progress(current, total int) { f(current, total) }

// LogFunc adapts a function to LogSink.
type LogFunc func(message string)

func (f LogFunc) Log(message string) { f(message) }

type nopSink struct{}

func (nopSink) Progress(int, int) {}
func (nopSink) Log(string)        {}

// LoggerSink forwards messages to a logrus logger at info level.
func LoggerSink(logger logrus.FieldLogger) LogSink {
	return LogFunc(func(message string) {
		logger.Info(message)
	})
}

