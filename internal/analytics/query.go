package analytics

// Filter selects events from the log. Zero-valued string fields and nil
// bounds match everything.
type Filter struct {
	EventType string
	SessionID string
	UserID    string
	StartTime *int64
	EndTime   *int64
	Offset    int
	Limit     int
}

// Match reports whether the event satisfies every set criterion. Time bounds
// are inclusive and apply to the client timestamp.
func (f Filter) Match(e *Event) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}

	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}

	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}

	if f.StartTime != nil && e.Timestamp < *f.StartTime {
		return false
	}

	if f.EndTime != nil && e.Timestamp > *f.EndTime {
		return false
	}

	return true
}

// Page is one window of a filtered result.
type Page struct {
	Events []*Event
	Total  int
}

// Query filters events, then applies offset and limit, keeping input order.
func Query(events []*Event, f Filter) Page {
	matched := make([]*Event, 0, len(events))

	for _, e := range events {
		if f.Match(e) {
			matched = append(matched, e)
		}
	}

	start := min(max(f.Offset, 0), len(matched))
	end := min(start+max(f.Limit, 0), len(matched))

	return Page{
		Events: matched[start:end],
		Total:  len(matched),
	}
}
