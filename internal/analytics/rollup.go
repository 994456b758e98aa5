package analytics

import "slices"

// Session is the rollup of all events sharing a session id.
type Session struct {
	SessionID    string     `json:"sessionId"`
	UserID       string     `json:"userId,omitempty"`
	StartTime    int64      `json:"startTime"`
	LastActivity int64      `json:"lastActivity"`
	Duration     int64      `json:"duration"`
	Events       int        `json:"events"`
	PageViews    int        `json:"pageViews"`
	DeviceInfo   DeviceInfo `json:"deviceInfo,omitempty"`
	IP           string     `json:"ip,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
}

// User is the rollup of all events sharing a user id.
type User struct {
	UserID      string     `json:"userId"`
	FirstSeen   int64      `json:"firstSeen"`
	LastSeen    int64      `json:"lastSeen"`
	Sessions    []string   `json:"sessions"`
	TotalEvents int        `json:"totalEvents"`
	PageViews   int        `json:"pageViews"`
	DeviceInfo  DeviceInfo `json:"deviceInfo,omitempty"`
}

// HasSession reports whether the session id is already recorded.
func (u *User) HasSession(sessionID string) bool {
	return slices.Contains(u.Sessions, sessionID)
}

var sessionKind = rollupKind[Session]{
	name:  "session",
	keyOf: func(e *Event) string { return e.SessionID },
	seed: func(e *Event) *Session {
		return &Session{
			SessionID:    e.SessionID,
			UserID:       e.UserID,
			StartTime:    e.Timestamp,
			LastActivity: e.Timestamp,
			DeviceInfo:   e.DeviceInfo,
			IP:           e.IP,
			UserAgent:    e.UserAgent,
		}
	},
	apply: func(s *Session, e *Event) {
		s.LastActivity = max(s.LastActivity, e.Timestamp)
		s.Duration = s.LastActivity - s.StartTime
		s.Events++

		if e.IsPageView() {
			s.PageViews++
		}
	},
	clone: func(s *Session) *Session {
		c := *s

		return &c
	},
	key:       func(s *Session) string { return s.SessionID },
	firstSeen: func(s *Session) int64 { return s.StartTime },
	lastSeen:  func(s *Session) int64 { return s.LastActivity },
}

var userKind = rollupKind[User]{
	name:  "user",
	keyOf: func(e *Event) string { return e.UserID },
	seed: func(e *Event) *User {
		return &User{
			UserID:     e.UserID,
			FirstSeen:  e.Timestamp,
			LastSeen:   e.Timestamp,
			Sessions:   []string{},
			DeviceInfo: e.DeviceInfo,
		}
	},
	apply: func(u *User, e *Event) {
		u.LastSeen = max(u.LastSeen, e.Timestamp)
		u.TotalEvents++

		if e.SessionID != "" && !u.HasSession(e.SessionID) {
			u.Sessions = append(u.Sessions, e.SessionID)
		}

		if e.IsPageView() {
			u.PageViews++
		}
	},
	clone: func(u *User) *User {
		c := *u
		c.Sessions = slices.Clone(u.Sessions)

		return &c
	},
	key:       func(u *User) string { return u.UserID },
	firstSeen: func(u *User) int64 { return u.FirstSeen },
	lastSeen:  func(u *User) int64 { return u.LastSeen },
}

// SessionKey returns the repository key of a session record.
func SessionKey(s *Session) string { return s.SessionID }

// UserKey returns the repository key of a user record.
func UserKey(u *User) string { return u.UserID }
