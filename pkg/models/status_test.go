package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageStatus_String(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   string
	}{
		{PageStatusUnset, "unset"},
		{PageStatusPending, "pending"},
		{PageStatusSuccess, "success"},
		{PageStatusSkipped, "skipped"},
		{PageStatusFailure, "failure"},
		{PageStatusNotFound, "not_found"},
		{PageStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestPageStatus_IsValid(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   bool
	}{
		{PageStatusPending, true},
		{PageStatusSuccess, true},
		{PageStatusSkipped, true},
		{PageStatusFailure, true},
		{PageStatusUnset, false},
		{PageStatusNotFound, false},
		{PageStatusDBError, false},
		{PageStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "PageStatus(%q).IsValid()", string(tt.status))
	}
}

func TestEntryState_IsTerminal(t *testing.T) {
	assert.False(t, EntryQueued.IsTerminal())
	assert.False(t, EntryFetching.IsTerminal())
	for _, s := range []EntryState{EntryProcessed, EntrySkippedPolicy, EntrySkippedDepth, EntrySkippedDedup, EntryFailed} {
		assert.True(t, s.IsTerminal(), "EntryState(%q).IsTerminal()", s)
	}
}
