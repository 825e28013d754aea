package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		params map[string]string
		want   string
	}{
		{"plain", "/v1/alerts/active.json", nil, "/v1/alerts/active.json"},
		{"no leading slash", "v1/alerts/active.json", nil, "/v1/alerts/active.json"},
		{"trailing slash", "/v1/alerts/", nil, "/v1/alerts"},
		{"sorted params", "/v1/regions/31/alerts/week_ago.json", map[string]string{"b": "2", "a": "1"}, "/v1/regions/31/alerts/week_ago.json?a=1&b=2"},
		{"empty params", "/v1/iot/active_air_raid_alerts.json", map[string]string{}, "/v1/iot/active_air_raid_alerts.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyFor(tt.path, tt.params))
		})
	}
}

func TestSideEntryKeys(t *testing.T) {
	key := KeyFor("/v1/alerts/active.json", nil)
	assert.Equal(t, "/v1/alerts/active.json.last_modified", LastModifiedKey(key))
	assert.Equal(t, "/v1/alerts/active.json.processed", ProcessedKey(key))
	assert.NotEqual(t, LastModifiedKey(key), ProcessedKey(key))
}
