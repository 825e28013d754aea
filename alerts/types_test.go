package alerts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T12:30:15Z", want},
		{"2024-03-01T12:30:15.000Z", want},
		{"2024-03-01T14:30:15+02:00", want},
		{"2024-03-01T12:30:15.250", want.Add(250 * time.Millisecond)},
		{"2024/03/01 12:30:15 +0000", want},
		{"2024-03-01 12:30:15", want},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseTime("yesterday")
	assert.Error(t, err)
}

func TestAlertUnmarshalFlexibleFields(t *testing.T) {
	var a Alert
	err := json.Unmarshal([]byte(`{
		"id": 5, "location_title": "x", "started_at": "2024-01-01T00:00:00Z",
		"updated_at": "2024-01-01T00:00:00Z", "finished_at": "",
		"location_uid": "", "location_oblast_uid": null, "alert_type": "nuclear"
	}`), &a)
	require.NoError(t, err)
	assert.Equal(t, LocationUnknown, a.LocationType)
	assert.Nil(t, a.FinishedAt)
	assert.Zero(t, a.LocationUID)
	assert.Zero(t, a.LocationOblastUID)
	assert.Equal(t, AlertNuclear, a.AlertType)

	err = json.Unmarshal([]byte(`{"started_at": "soon"}`), &a)
	assert.ErrorContains(t, err, "started_at")

	err = json.Unmarshal([]byte(`{"location_uid": "abc"}`), &a)
	assert.ErrorContains(t, err, "location_uid")
}

func TestAlertsRoundTrip(t *testing.T) {
	finished := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	src := NewAlerts([]Alert{
		{ID: 1, LocationTitle: "м. Київ", LocationType: LocationCity, AlertType: AlertAirRaid,
			StartedAt: time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC), FinishedAt: &finished, LocationUID: 31},
		{ID: 2, LocationTitle: "Одеська область", LocationType: LocationOblast, AlertType: AlertChemical,
			StartedAt: time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), LocationUID: 18, Calculated: true},
	}, time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC), "note")

	b, err := json.Marshal(src)
	require.NoError(t, err)

	var got Alerts
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, src.Slice(), got.Slice())
	assert.True(t, src.LastUpdatedAt().Equal(got.LastUpdatedAt()))
	assert.Equal(t, "note", got.Disclaimer())

	empty, err := json.Marshal(Alerts{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"alerts":[],"meta":{}}`, string(empty))
}

func TestAlertsImmutable(t *testing.T) {
	items := []Alert{
		{ID: 1, LocationType: LocationOblast, AlertType: AlertAirRaid, LocationUID: 14},
		{ID: 2, LocationType: LocationHromada, AlertType: AlertUrbanFights, LocationUID: 500},
	}
	a := NewAlerts(items, time.Time{}, "d")
	items[0].ID = 99
	assert.Equal(t, 1, a.At(0).ID)

	s := a.Slice()
	s[0].ID = 42
	assert.Equal(t, 1, a.At(0).ID)

	h := a.Hromadas()
	require.Equal(t, 1, h.Len())
	assert.Equal(t, "d", h.Disclaimer())
	assert.Equal(t, 2, a.Len())

	assert.Equal(t, 1, a.UrbanFights().Len())
	assert.Equal(t, 1, a.AirRaid().Len())
	assert.Equal(t, 0, a.Nuclear().Len())
	assert.Equal(t, 0, a.Chemical().Len())

	var ids []int
	for _, al := range a.All() {
		ids = append(ids, al.ID)
		break
	}
	assert.Equal(t, []int{1}, ids)
}

func TestAlertsImmutableFinishedAt(t *testing.T) {
	finished := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []Alert{{ID: 1, LocationType: LocationOblast, FinishedAt: &finished}}
	a := NewAlerts(items, time.Time{}, "")

	*items[0].FinishedAt = time.Time{}
	require.NotNil(t, a.At(0).FinishedAt)
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())

	*a.At(0).FinishedAt = time.Time{}
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())

	*a.Slice()[0].FinishedAt = time.Time{}
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())

	for _, al := range a.All() {
		*al.FinishedAt = time.Time{}
	}
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())

	_ = a.Filter(func(al Alert) bool {
		*al.FinishedAt = time.Time{}
		return true
	})
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())

	o := a.Oblasts()
	*o.At(0).FinishedAt = time.Time{}
	assert.Equal(t, 2024, o.At(0).FinishedAt.Year())
	assert.Equal(t, 2024, a.At(0).FinishedAt.Year())
}

func TestPeriodValid(t *testing.T) {
	assert.True(t, PeriodMonthAgo.valid())
	assert.True(t, PeriodWeekAgo.valid())
	assert.False(t, Period("day_ago").valid())
}
