package log

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferedEntry(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logrus.NewEntry(logger), buf
}

func TestBadgerLogger_ImplementsBadgerLogger(t *testing.T) {
	entry, _ := newBufferedEntry(logrus.InfoLevel)
	var _ badger.Logger = NewBadgerLogger(entry)
}

func TestBadgerLogger_TagsComponent(t *testing.T) {
	entry, buf := newBufferedEntry(logrus.InfoLevel)
	NewBadgerLogger(entry).Errorf("value log %s", "corrupt")

	out := buf.String()
	assert.Contains(t, out, "level=error")
	assert.Contains(t, out, "value log corrupt")
	assert.Contains(t, out, "component=badger")
}

func TestBadgerLogger_LevelMapping(t *testing.T) {
	tests := []struct {
		name    string
		level   logrus.Level
		log     func(l *BadgerLogger)
		visible bool
	}{
		{"warning at info", logrus.InfoLevel, func(l *BadgerLogger) { l.Warningf("w") }, true},
		{"info demoted below info", logrus.InfoLevel, func(l *BadgerLogger) { l.Infof("i") }, false},
		{"info visible at debug", logrus.DebugLevel, func(l *BadgerLogger) { l.Infof("i") }, true},
		{"debug demoted below debug", logrus.DebugLevel, func(l *BadgerLogger) { l.Debugf("d") }, false},
		{"debug visible at trace", logrus.TraceLevel, func(l *BadgerLogger) { l.Debugf("d") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, buf := newBufferedEntry(tt.level)
			tt.log(NewBadgerLogger(entry))
			assert.Equal(t, tt.visible, buf.Len() > 0)
		})
	}
}
