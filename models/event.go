// api/models/event.go
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"shopdemo/api/utils"
)

// EventKind names an analytics event type. The value doubles as the path
// suffix under /analytics/ and as the metrics label.
type EventKind string

const (
	KindPageView EventKind = "pageview"
	KindClick    EventKind = "click"
	KindSession  EventKind = "session"
)

const (
	// UnknownValue replaces missing enrichment fields on insert.
	UnknownValue = "unknown"
	// MaxTextContent is the longest click text kept, in characters.
	MaxTextContent = 100
)

// Enrichment is the device and location classification the collector attaches
// to every event.
type Enrichment struct {
	Device  string `json:"device,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

func (e Enrichment) normalized() Enrichment {
	return Enrichment{
		Device:  utils.DefaultIfEmpty(e.Device, UnknownValue),
		Browser: utils.DefaultIfEmpty(e.Browser, UnknownValue),
		OS:      utils.DefaultIfEmpty(e.OS, UnknownValue),
		Country: utils.DefaultIfEmpty(e.Country, UnknownValue),
		City:    utils.DefaultIfEmpty(e.City, UnknownValue),
	}
}

// PageViewRequest is the body of POST /analytics/pageview.
type PageViewRequest struct {
	SessionID   string  `json:"session_id" binding:"required"`
	UserID      *string `json:"user_id"`
	PageURL     string  `json:"page_url" binding:"required"`
	TimeSpent   float64 `json:"time_spent"`
	ScrollDepth float64 `json:"scroll_depth"`
	Enrichment
}

// ClickRequest is the body of POST /analytics/click. Enrichment is accepted
// because the collector sends the same envelope for every event, but the
// clicks table does not store it.
type ClickRequest struct {
	SessionID   string  `json:"session_id" binding:"required"`
	UserID      *string `json:"user_id"`
	ElementID   string  `json:"element_id" binding:"required"`
	PageURL     string  `json:"page_url" binding:"required"`
	TextContent string  `json:"text_content"`
	XPosition   float64 `json:"x_position"`
	YPosition   float64 `json:"y_position"`
	Enrichment
}

// SessionRequest is the body of POST /analytics/session. Start and end times
// are client wall-clock values in RFC 3339 form.
type SessionRequest struct {
	SessionID    string    `json:"session_id" binding:"required"`
	UserID       *string   `json:"user_id"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
	Duration     float64   `json:"duration"`
	PagesVisited float64   `json:"pages_visited"`
	IsBounce     Flag      `json:"is_bounce"`
	Enrichment
}

type PageViewRow struct {
	SessionID   string
	UserID      *string
	PageURL     string
	Timestamp   time.Time
	TimeSpent   uint32
	ScrollDepth float32
	Enrichment
}

type ClickRow struct {
	SessionID   string
	UserID      *string
	ElementID   string
	PageURL     string
	Timestamp   time.Time
	TextContent string
	XPosition   uint32
	YPosition   uint32
}

type SessionRow struct {
	SessionID    string
	UserID       *string
	StartTime    time.Time
	EndTime      time.Time
	Duration     uint32
	PagesVisited uint32
	IsBounce     uint8
	Enrichment
}

// Row applies insert defaults. now is the server arrival time.
func (r PageViewRequest) Row(now time.Time) PageViewRow {
	return PageViewRow{
		SessionID:   r.SessionID,
		UserID:      nullableString(r.UserID),
		PageURL:     r.PageURL,
		Timestamp:   now.UTC(),
		TimeSpent:   toUInt32(r.TimeSpent),
		ScrollDepth: float32(clampFraction(r.ScrollDepth)),
		Enrichment:  r.Enrichment.normalized(),
	}
}

func (r ClickRequest) Row(now time.Time) ClickRow {
	return ClickRow{
		SessionID:   r.SessionID,
		UserID:      nullableString(r.UserID),
		ElementID:   r.ElementID,
		PageURL:     r.PageURL,
		Timestamp:   now.UTC(),
		TextContent: utils.Truncate(r.TextContent, MaxTextContent),
		XPosition:   toUInt32(r.XPosition),
		YPosition:   toUInt32(r.YPosition),
	}
}

// Range of a ClickHouse DateTime column (unsigned 32-bit seconds).
var (
	MinDateTime = time.Unix(0, 0).UTC()
	MaxDateTime = time.Unix(math.MaxUint32, 0).UTC()
)

// Validate rejects session times the sessions table cannot store.
func (r SessionRequest) Validate() error {
	for _, f := range []struct {
		name string
		t    time.Time
	}{{"start_time", r.StartTime}, {"end_time", r.EndTime}} {
		if f.t.Before(MinDateTime) || f.t.After(MaxDateTime) {
			return fmt.Errorf("%s %s is outside the supported range %s to %s",
				f.name, f.t.Format(time.RFC3339), MinDateTime.Format(time.RFC3339), MaxDateTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Row applies insert defaults. A finished session has visited at least one
// page, so a missing page count is stored as 1.
func (r SessionRequest) Row() SessionRow {
	pages := toUInt32(r.PagesVisited)
	if pages == 0 {
		pages = 1
	}
	return SessionRow{
		SessionID:    r.SessionID,
		UserID:       nullableString(r.UserID),
		StartTime:    r.StartTime.UTC(),
		EndTime:      r.EndTime.UTC(),
		Duration:     toUInt32(r.Duration),
		PagesVisited: pages,
		IsBounce:     r.IsBounce.UInt8(),
		Enrichment:   r.Enrichment.normalized(),
	}
}

// Flag decodes a JSON value by JavaScript truthiness: false, 0, NaN, "" and
// null are false, everything else is true.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(x)
	case float64:
		*f = Flag(x != 0 && !math.IsNaN(x))
	case string:
		*f = Flag(x != "")
	default:
		*f = true
	}
	return nil
}

func (f Flag) UInt8() uint8 {
	if f {
		return 1
	}
	return 0
}

// DailySummary is one row of the page view rollup.
type DailySummary struct {
	Date           string  `json:"date"`
	PageViews      uint64  `json:"page_views"`
	AvgTimeSpent   float64 `json:"avg_time_spent"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
}

type TopPathResult struct {
	PageURL string `json:"page_url"`
	Count   uint64 `json:"count"`
}

type TimeBucketCount struct {
	Time  time.Time `json:"time"`
	Count uint64    `json:"count"`
}

func nullableString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func toUInt32(v float64) uint32 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(math.Floor(v))
}

func clampFraction(v float64) float64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return 1
	}
	return v
}
