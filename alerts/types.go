package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/briangreenhill/alertsua/status"
)

// LocationType is the administrative level of an alert location
type LocationType string

const (
	LocationOblast  LocationType = "oblast"
	LocationRaion   LocationType = "raion"
	LocationHromada LocationType = "hromada"
	LocationCity    LocationType = "city"
	LocationUnknown LocationType = "unknown"
)

// AlertType is the kind of threat an alert announces
type AlertType string

const (
	AlertAirRaid           AlertType = "air_raid"
	AlertArtilleryShelling AlertType = "artillery_shelling"
	AlertUrbanFights       AlertType = "urban_fights"
	AlertChemical          AlertType = "chemical"
	AlertNuclear           AlertType = "nuclear"
)

// Period selects the window of GetAlertsHistory
type Period string

const (
	PeriodMonthAgo Period = "month_ago"
	PeriodWeekAgo  Period = "week_ago"
)

func (p Period) valid() bool {
	return p == PeriodMonthAgo || p == PeriodWeekAgo
}

// Alert is one alert record
type Alert struct {
	ID                int          `json:"id" yaml:"id"`
	LocationTitle     string       `json:"location_title" yaml:"location_title"`
	LocationType      LocationType `json:"location_type" yaml:"location_type"`
	StartedAt         time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt        *time.Time   `json:"finished_at" yaml:"finished_at,omitempty"`
	UpdatedAt         time.Time    `json:"updated_at" yaml:"updated_at"`
	AlertType         AlertType    `json:"alert_type" yaml:"alert_type"`
	LocationUID       int          `json:"location_uid" yaml:"location_uid"`
	LocationOblast    string       `json:"location_oblast" yaml:"location_oblast"`
	LocationOblastUID int          `json:"location_oblast_uid" yaml:"location_oblast_uid"`
	LocationRaion     string       `json:"location_raion,omitempty" yaml:"location_raion,omitempty"`
	Notes             string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Calculated        bool         `json:"calculated" yaml:"calculated"`
}

// Active reports whether the alert has not finished
func (a Alert) Active() bool { return a.FinishedAt == nil }

// clone returns a copy that shares no memory with a
func (a Alert) clone() Alert {
	if a.FinishedAt != nil {
		f := *a.FinishedAt
		a.FinishedAt = &f
	}
	return a
}

func cloneAlerts(items []Alert) []Alert {
	if items == nil {
		return nil
	}
	out := make([]Alert, len(items))
	for i, al := range items {
		out[i] = al.clone()
	}
	return out
}

type alertWire struct {
	ID                int             `json:"id"`
	LocationTitle     string          `json:"location_title"`
	LocationType      LocationType    `json:"location_type"`
	StartedAt         string          `json:"started_at"`
	FinishedAt        *string         `json:"finished_at"`
	UpdatedAt         string          `json:"updated_at"`
	AlertType         AlertType       `json:"alert_type"`
	LocationUID       json.RawMessage `json:"location_uid"`
	LocationOblast    string          `json:"location_oblast"`
	LocationOblastUID json.RawMessage `json:"location_oblast_uid"`
	LocationRaion     *string         `json:"location_raion"`
	Notes             *string         `json:"notes"`
	Calculated        *bool           `json:"calculated"`
}

// UnmarshalJSON accepts the API shape, where UIDs may be strings or numbers
// and optional fields may be null
func (a *Alert) UnmarshalJSON(b []byte) error {
	var w alertWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	out := Alert{
		ID:             w.ID,
		LocationTitle:  w.LocationTitle,
		LocationType:   w.LocationType,
		AlertType:      w.AlertType,
		LocationOblast: w.LocationOblast,
	}
	if out.LocationType == "" {
		out.LocationType = LocationUnknown
	}

	var err error
	if out.StartedAt, err = parseTime(w.StartedAt); err != nil {
		return fmt.Errorf("started_at: %w", err)
	}
	if out.UpdatedAt, err = parseTime(w.UpdatedAt); err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	if w.FinishedAt != nil && *w.FinishedAt != "" {
		t, err := parseTime(*w.FinishedAt)
		if err != nil {
			return fmt.Errorf("finished_at: %w", err)
		}
		out.FinishedAt = &t
	}
	if out.LocationUID, err = flexInt(w.LocationUID); err != nil {
		return fmt.Errorf("location_uid: %w", err)
	}
	if out.LocationOblastUID, err = flexInt(w.LocationOblastUID); err != nil {
		return fmt.Errorf("location_oblast_uid: %w", err)
	}
	if w.LocationRaion != nil {
		out.LocationRaion = *w.LocationRaion
	}
	if w.Notes != nil {
		out.Notes = *w.Notes
	}
	if w.Calculated != nil {
		out.Calculated = *w.Calculated
	}

	*a = out
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006/01/02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// parseTime reads API timestamps. Layouts without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// flexInt decodes a JSON number, a numeric string or null
func flexInt(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	var n int
	err := json.Unmarshal(raw, &n)
	return n, err
}

// Alerts is an immutable list of alerts with the response metadata. Filters
// return new values and never modify the receiver.
type Alerts struct {
	items         []Alert
	lastUpdatedAt time.Time
	disclaimer    string
}

// NewAlerts copies items into a new Alerts
func NewAlerts(items []Alert, lastUpdatedAt time.Time, disclaimer string) Alerts {
	return Alerts{
		items:         cloneAlerts(items),
		lastUpdatedAt: lastUpdatedAt,
		disclaimer:    disclaimer,
	}
}

func (a Alerts) Len() int                 { return len(a.items) }
func (a Alerts) At(i int) Alert           { return a.items[i].clone() }
func (a Alerts) LastUpdatedAt() time.Time { return a.lastUpdatedAt }
func (a Alerts) Disclaimer() string       { return a.disclaimer }

// All iterates over the alerts in response order
func (a Alerts) All() iter.Seq2[int, Alert] {
	return func(yield func(int, Alert) bool) {
		for i, al := range a.items {
			if !yield(i, al.clone()) {
				return
			}
		}
	}
}

// Slice returns a copy of the alerts
func (a Alerts) Slice() []Alert {
	return cloneAlerts(a.items)
}

// Filter returns the alerts matching keep, with the same metadata
func (a Alerts) Filter(keep func(Alert) bool) Alerts {
	out := Alerts{lastUpdatedAt: a.lastUpdatedAt, disclaimer: a.disclaimer}
	for _, al := range a.items {
		if keep(al.clone()) {
			out.items = append(out.items, al)
		}
	}
	return out
}

func (a Alerts) ByLocationType(t LocationType) Alerts {
	return a.Filter(func(al Alert) bool { return al.LocationType == t })
}

func (a Alerts) ByAlertType(t AlertType) Alerts {
	return a.Filter(func(al Alert) bool { return al.AlertType == t })
}

func (a Alerts) ByLocationTitle(title string) Alerts {
	return a.Filter(func(al Alert) bool { return al.LocationTitle == title })
}

func (a Alerts) ByLocationUID(uid int) Alerts {
	return a.Filter(func(al Alert) bool { return al.LocationUID == uid })
}

func (a Alerts) Oblasts() Alerts  { return a.ByLocationType(LocationOblast) }
func (a Alerts) Raions() Alerts   { return a.ByLocationType(LocationRaion) }
func (a Alerts) Hromadas() Alerts { return a.ByLocationType(LocationHromada) }
func (a Alerts) Cities() Alerts   { return a.ByLocationType(LocationCity) }

func (a Alerts) AirRaid() Alerts           { return a.ByAlertType(AlertAirRaid) }
func (a Alerts) ArtilleryShelling() Alerts { return a.ByAlertType(AlertArtilleryShelling) }
func (a Alerts) UrbanFights() Alerts       { return a.ByAlertType(AlertUrbanFights) }
func (a Alerts) Chemical() Alerts          { return a.ByAlertType(AlertChemical) }
func (a Alerts) Nuclear() Alerts           { return a.ByAlertType(AlertNuclear) }

type alertsWire struct {
	Alerts []Alert `json:"alerts"`
	Meta   struct {
		LastUpdatedAt string `json:"last_updated_at,omitempty"`
	} `json:"meta"`
	Disclaimer string `json:"disclaimer,omitempty"`
}

// MarshalJSON writes the API response shape
func (a Alerts) MarshalJSON() ([]byte, error) {
	var w alertsWire
	w.Alerts = a.items
	if w.Alerts == nil {
		w.Alerts = []Alert{}
	}
	if !a.lastUpdatedAt.IsZero() {
		w.Meta.LastUpdatedAt = a.lastUpdatedAt.Format(time.RFC3339Nano)
	}
	w.Disclaimer = a.disclaimer
	return json.Marshal(w)
}

// UnmarshalJSON reads the API response shape
func (a *Alerts) UnmarshalJSON(b []byte) error {
	var w alertsWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	updated, err := parseTime(w.Meta.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("meta.last_updated_at: %w", err)
	}
	*a = Alerts{items: w.Alerts, lastUpdatedAt: updated, disclaimer: w.Disclaimer}
	return nil
}

// AirRaidAlertStatus is the air raid state of one location
type AirRaidAlertStatus struct {
	LocationUID   int           `json:"location_uid" yaml:"location_uid"`
	LocationTitle string        `json:"location_title" yaml:"location_title"`
	Status        status.Status `json:"status" yaml:"status"`
}
