// Package history defines the append-only archive of completed deliveries.
package history

import (
	"strings"
	"time"
)

// Record is an immutable snapshot of a delivery taken at the moment it
// reached DELIVERED. Records are never mutated after creation.
type Record struct {
	ID             string    `json:"id"`
	DeliveryID     string    `json:"delivery_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	Platform       string    `json:"platform"`
	OrderNumber    string    `json:"order_number"`
	Customer       string    `json:"customer"` // drop-location name
	Amount         float64   `json:"amount"`
	Earnings       float64   `json:"earnings"`
	PickupLocation string    `json:"pickup_location"`
	Location       string    `json:"location"` // delivery street address
	Status         string    `json:"status"`
	Date           string    `json:"date"` // YYYY-MM-DD, local wall clock at archival
	Time           string    `json:"time"` // HH:MM
	ArchivedAt     time.Time `json:"archived_at"`
}

// Window selects a time range for history listings, anchored at "now".
type Window string

const (
	WindowAll   Window = "all"
	WindowToday Window = "today"
	WindowWeek  Window = "week"  // since most recent Sunday 00:00
	WindowMonth Window = "month" // since day 1 of the current month
)

// Filter narrows a history listing. Zero values match everything.
type Filter struct {
	Platform string
	Window   Window
}

// WindowStart returns the inclusive lower date bound for a window relative
// to now. The second return is false for WindowAll (no bound).
func WindowStart(w Window, now time.Time) (time.Time, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch w {
	case WindowToday:
		return day, true
	case WindowWeek:
		return day.AddDate(0, 0, -int(now.Weekday())), true
	case WindowMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// Matches reports whether the record passes the filter, with window
// boundaries computed from now. Window matching compares the record's
// stored date, not its archival timestamp.
func (f Filter) Matches(r Record, now time.Time) bool {
	if f.Platform != "" && !strings.EqualFold(f.Platform, r.Platform) {
		return false
	}
	start, bounded := WindowStart(f.Window, now)
	if !bounded {
		return true
	}
	d, err := time.ParseInLocation("2006-01-02", r.Date, now.Location())
	if err != nil {
		return false
	}
	return !d.Before(start)
}
