package models

// PageStatus represents the processing status of a page in the store
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value = unset/unknown
	PageStatusPending  PageStatus = "pending"   // Page marked visited, not yet processed
	PageStatusSuccess  PageStatus = "success"   // Page fetched and processed
	PageStatusSkipped  PageStatus = "skipped"   // Blocked by robots policy
	PageStatusFailure  PageStatus = "failure"   // Fetch or processing failed
	PageStatusNotFound PageStatus = "not_found" // Page not in store
	PageStatusDBError  PageStatus = "db_error"  // Store error occurred
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusSuccess, PageStatusSkipped, PageStatusFailure:
		return true
	}
	return false
}

// EntryState is the lifecycle state of a frontier entry
type EntryState string

const (
	EntryQueued        EntryState = "queued"
	EntryFetching      EntryState = "fetching"
	EntryProcessed     EntryState = "processed"
	EntrySkippedPolicy EntryState = "skipped-policy"
	EntrySkippedDepth  EntryState = "skipped-depth"
	EntrySkippedDedup  EntryState = "skipped-dedup"
	EntryFailed        EntryState = "failed"
)

// String implements fmt.Stringer for logging
func (s EntryState) String() string { return string(s) }

// IsTerminal reports whether no further transition follows s
func (s EntryState) IsTerminal() bool {
	switch s {
	case EntryProcessed, EntrySkippedPolicy, EntrySkippedDepth, EntrySkippedDedup, EntryFailed:
		return true
	}
	return false
}
