package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/briangreenhill/alertsua/cache"
	"github.com/briangreenhill/alertsua/status"
)

const (
	pathActiveAlerts       = "/v1/alerts/active.json"
	pathAlertsHistory      = "/v1/regions/%d/alerts/%s.json"
	pathAirRaidStatus      = "/v1/iot/active_air_raid_alerts/%d.json"
	pathAirRaidByOblast    = "/v1/iot/active_air_raid_alerts_by_oblast.json"
	pathAirRaidAllStatuses = "/v1/iot/active_air_raid_alerts.json"
)

func decodeAlerts(b []byte) (Alerts, error) {
	var a Alerts
	err := json.Unmarshal(b, &a)
	return a, err
}

// decodeStatusString reads the JSON string body of the IoT endpoints
func decodeStatusString(b []byte) (string, error) {
	var s string
	err := json.Unmarshal(b, &s)
	return s, err
}

// GetActiveAlerts returns every alert currently in effect
func (c *Client) GetActiveAlerts(ctx context.Context, opts ...CallOption) (Alerts, error) {
	return fetch(ctx, c, pathActiveAlerts, cache.TypeActiveAlerts, c.callOptions(opts), decodeAlerts)
}

// GetAlertsHistory returns the alerts of one oblast over period. loc is a
// UID or a display name; an empty period means PeriodMonthAgo.
func (c *Client) GetAlertsHistory(ctx context.Context, loc string, period Period, opts ...CallOption) (Alerts, error) {
	if period == "" {
		period = PeriodMonthAgo
	}
	if !period.valid() {
		return Alerts{}, invalidParameter(nil, "period %q", period)
	}
	co := c.callOptions(opts)
	uid, err := c.resolve(ctx, loc, co)
	if err != nil {
		return Alerts{}, err
	}
	p := fmt.Sprintf(pathAlertsHistory, uid, period)
	return fetch(ctx, c, p, cache.TypeAlertsHistory, co, decodeAlerts)
}

// GetAirRaidAlertStatus returns the air raid state of one location
func (c *Client) GetAirRaidAlertStatus(ctx context.Context, loc string, opts ...CallOption) (AirRaidAlertStatus, error) {
	co := c.callOptions(opts)
	uid, err := c.resolve(ctx, loc, co)
	if err != nil {
		return AirRaidAlertStatus{}, err
	}
	title, err := c.resolver.Name(uid)
	if err != nil {
		return AirRaidAlertStatus{}, invalidParameter(err, "location uid %d", uid)
	}

	p := fmt.Sprintf(pathAirRaidStatus, uid)
	return fetch(ctx, c, p, cache.TypeAirRaidAlertStatus, co, func(b []byte) (AirRaidAlertStatus, error) {
		s, err := decodeStatusString(b)
		if err != nil {
			return AirRaidAlertStatus{}, err
		}
		return AirRaidAlertStatus{LocationUID: uid, LocationTitle: title, Status: status.Decode(s)}, nil
	})
}

// GetAirRaidAlertStatusesByOblast returns the state of the 27 oblast-level
// regions in canonical order. With oblastLevelOnly only regions under a
// full oblast alert are kept.
func (c *Client) GetAirRaidAlertStatusesByOblast(ctx context.Context, oblastLevelOnly bool, opts ...CallOption) (status.Statuses, error) {
	all, err := fetch(ctx, c, pathAirRaidByOblast, cache.TypeAirRaidAlertStatusesByOblast, c.callOptions(opts), func(b []byte) (status.Statuses, error) {
		s, err := decodeStatusString(b)
		if err != nil {
			return status.Statuses{}, err
		}
		return c.withUIDs(status.DecodeOblasts(s, false)), nil
	})
	if err != nil {
		return status.Statuses{}, err
	}
	if oblastLevelOnly {
		return all.Active(), nil
	}
	return all, nil
}

// GetAirRaidAlertStatuses returns the state of every location the resolver
// knows, read from the UID-indexed status string
func (c *Client) GetAirRaidAlertStatuses(ctx context.Context, opts ...CallOption) (status.Statuses, error) {
	return fetch(ctx, c, pathAirRaidAllStatuses, cache.TypeAirRaidAlertStatuses, c.callOptions(opts), func(b []byte) (status.Statuses, error) {
		s, err := decodeStatusString(b)
		if err != nil {
			return status.Statuses{}, err
		}
		return status.DecodeByUID(s, c.resolver.Lookup), nil
	})
}

// withUIDs fills RegionStatus.UID from the resolver where the name is known
func (c *Client) withUIDs(s status.Statuses) status.Statuses {
	items := s.Slice()
	for i := range items {
		if uid, err := c.resolver.UID(items[i].Name); err == nil {
			items[i].UID = uid
		}
	}
	return status.NewStatuses(items...)
}
