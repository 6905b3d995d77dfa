package log

import "github.com/sirupsen/logrus"

// BadgerLogger routes badger's internal logging through logrus.
// Badger's Info output is chatty during compaction, so it is demoted to Debug.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger creates an adapter tagged with component=badger
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry.WithField("component", "badger")}
}

func (l *BadgerLogger) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }
func (l *BadgerLogger) Infof(f string, v ...interface{})    { l.entry.Debugf(f, v...) }
func (l *BadgerLogger) Debugf(f string, v ...interface{})   { l.entry.Tracef(f, v...) }
