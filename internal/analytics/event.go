package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventTypePageLoad is the event type that counts as a page view.
const EventTypePageLoad = "page_load"

// Browser is the client-detected browser.
type Browser struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// DeviceInfo is the client-reported device description. It is an open
// record; only windowWidth is interpreted by the engine.
type DeviceInfo map[string]any

// WindowWidth returns the reported viewport width, if any.
func (d DeviceInfo) WindowWidth() (float64, bool) {
	switch v := d["windowWidth"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

// Event is one recorded visitor interaction. Fields the client sends that the
// engine does not know about are kept in Extra and written back verbatim.
type Event struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"sessionId,omitempty"`
	UserID          string     `json:"userId,omitempty"`
	EventType       string     `json:"eventType,omitempty"`
	Timestamp       int64      `json:"timestamp,omitempty"`
	ServerTimestamp int64      `json:"serverTimestamp"`
	URL             string     `json:"url,omitempty"`
	DeviceInfo      DeviceInfo `json:"deviceInfo,omitempty"`
	Browser         *Browser   `json:"browser,omitempty"`
	IP              string     `json:"ip,omitempty"`
	UserAgent       string     `json:"userAgent,omitempty"`
	Origin          string     `json:"origin,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// IsPageView reports whether the event is a page load.
func (e *Event) IsPageView() bool {
	return e.EventType == EventTypePageLoad
}

// ParseEvent decodes a client submission. The body must be a JSON object.
func ParseEvent(body []byte) (*Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrValidation)
	}

	var event Event
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return &event, nil
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*e = Event{}

	for key, raw := range fields {
		var err error

		switch key {
		case "id":
			err = json.Unmarshal(raw, &e.ID)
		case "sessionId":
			err = json.Unmarshal(raw, &e.SessionID)
		case "userId":
			err = json.Unmarshal(raw, &e.UserID)
		case "eventType":
			err = json.Unmarshal(raw, &e.EventType)
		case "timestamp":
			e.Timestamp, err = decodeMillis(raw)
		case "serverTimestamp":
			e.ServerTimestamp, err = decodeMillis(raw)
		case "url":
			err = json.Unmarshal(raw, &e.URL)
		case "deviceInfo":
			err = json.Unmarshal(raw, &e.DeviceInfo)
		case "browser":
			err = json.Unmarshal(raw, &e.Browser)
		case "ip":
			err = json.Unmarshal(raw, &e.IP)
		case "userAgent":
			err = json.Unmarshal(raw, &e.UserAgent)
		case "origin":
			err = json.Unmarshal(raw, &e.Origin)
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]json.RawMessage)
			}

			e.Extra[key] = raw
		}

		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}

	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+12)

	for key, raw := range e.Extra {
		out[key] = raw
	}

	out["id"] = e.ID
	out["serverTimestamp"] = e.ServerTimestamp

	setString(out, "sessionId", e.SessionID)
	setString(out, "userId", e.UserID)
	setString(out, "eventType", e.EventType)
	setString(out, "url", e.URL)
	setString(out, "ip", e.IP)
	setString(out, "userAgent", e.UserAgent)
	setString(out, "origin", e.Origin)

	if e.Timestamp != 0 {
		out["timestamp"] = e.Timestamp
	}

	if e.DeviceInfo != nil {
		out["deviceInfo"] = e.DeviceInfo
	}

	if e.Browser != nil {
		out["browser"] = e.Browser
	}

	return json.Marshal(out)
}

func setString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

// decodeMillis accepts integral and fractional JSON numbers as well as null.
func decodeMillis(raw json.RawMessage) (int64, error) {
	if strings.TrimSpace(string(raw)) == "null" {
		return 0, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}

	return int64(f), nil
}
