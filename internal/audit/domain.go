package audit

import "time"

// TimelineFilters holds the filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    int64
	Entity   string
	Action   string
	EntityID string
	Page     int
	PageSize int
}

// Entry is one stored audit record, before/after values included.
type Entry struct {
	ID          int64
	ActorID     int64
	Action      string
	Entity      string
	EntityID    string
	Description string
	Before      map[string]any
	After       map[string]any
	At          time.Time
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
