package analytics

import (
	"cmp"
	"net/url"
	"slices"
	"time"
)

const (
	topPagesLimit = 10

	desktopMinWidth = 1024
	tabletMinWidth  = 768
)

// TimeSource selects which timestamp summary windows are computed on.
type TimeSource string

const (
	// ClientTime windows on the client-supplied timestamp.
	ClientTime TimeSource = "client"
	// ServerTime windows on the server-assigned timestamp.
	ServerTime TimeSource = "server"
)

// Overview holds the headline counts of a summary.
type Overview struct {
	TotalEvents    int `json:"totalEvents"`
	ActiveSessions int `json:"activeSessions"`
	PageViews      int `json:"pageViews"`
	UniqueUsers    int `json:"uniqueUsers"`
	EventsToday    int `json:"eventsToday"`
	EventsThisWeek int `json:"eventsThisWeek"`
}

// Devices is the viewport-width breakdown.
type Devices struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
	Tablet  int `json:"tablet"`
}

// PageCount is a page path and its number of page views.
type PageCount struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// TimeRanges holds the event count of each window.
type TimeRanges struct {
	LastHour int `json:"lastHour"`
	LastDay  int `json:"lastDay"`
	LastWeek int `json:"lastWeek"`
}

// Report is a point-in-time summary of the event log.
type Report struct {
	Overview   Overview       `json:"overview"`
	Devices    Devices        `json:"devices"`
	Browsers   map[string]int `json:"browsers"`
	TopPages   []PageCount    `json:"topPages"`
	EventTypes map[string]int `json:"eventTypes"`
	TimeRanges TimeRanges     `json:"timeRanges"`
}

// Summarize computes a Report over events as of now.
func Summarize(events []*Event, now time.Time, source TimeSource) *Report {
	nowMs := now.UnixMilli()
	hour := time.Hour.Milliseconds()
	day := 24 * hour
	week := 7 * day

	report := &Report{
		Browsers:   make(map[string]int),
		EventTypes: make(map[string]int),
	}

	activeSessions := make(map[string]struct{})
	users := make(map[string]struct{})
	pages := newPageTally()

	for _, e := range events {
		age := nowMs - windowTimestamp(e, source)

		if age < hour {
			report.TimeRanges.LastHour++

			if e.SessionID != "" {
				activeSessions[e.SessionID] = struct{}{}
			}
		}

		if age < day {
			report.TimeRanges.LastDay++
		}

		if age < week {
			report.TimeRanges.LastWeek++
		}

		if e.UserID != "" {
			users[e.UserID] = struct{}{}
		}

		if e.EventType != "" {
			report.EventTypes[e.EventType]++
		}

		if width, ok := e.DeviceInfo.WindowWidth(); ok {
			switch {
			case width >= desktopMinWidth:
				report.Devices.Desktop++
			case width >= tabletMinWidth:
				report.Devices.Tablet++
			default:
				report.Devices.Mobile++
			}
		}

		if e.Browser != nil && e.Browser.Name != "" {
			report.Browsers[e.Browser.Name]++
		}

		if e.IsPageView() {
			report.Overview.PageViews++

			if path, ok := pagePath(e.URL); ok {
				pages.add(path)
			}
		}
	}

	report.Overview.TotalEvents = len(events)
	report.Overview.ActiveSessions = len(activeSessions)
	report.Overview.UniqueUsers = len(users)
	report.Overview.EventsToday = report.TimeRanges.LastDay
	report.Overview.EventsThisWeek = report.TimeRanges.LastWeek
	report.TopPages = pages.top(topPagesLimit)

	return report
}

func windowTimestamp(e *Event, source TimeSource) int64 {
	if source == ServerTime {
		return e.ServerTimestamp
	}

	return e.Timestamp
}

func pagePath(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if path := u.EscapedPath(); path != "" {
		return path, true
	}

	return "/", true
}

// pageTally counts paths and remembers first-encounter order for ties.
type pageTally struct {
	counts map[string]int
	order  []string
}

func newPageTally() *pageTally {
	return &pageTally{counts: make(map[string]int)}
}

func (t *pageTally) add(path string) {
	if _, ok := t.counts[path]; !ok {
		t.order = append(t.order, path)
	}

	t.counts[path]++
}

func (t *pageTally) top(n int) []PageCount {
	result := make([]PageCount, 0, len(t.order))
	for _, path := range t.order {
		result = append(result, PageCount{Path: path, Views: t.counts[path]})
	}

	slices.SortStableFunc(result, func(a, b PageCount) int {
		return cmp.Compare(b.Views, a.Views)
	})

	if len(result) > n {
		result = result[:n]
	}

	return result
}
