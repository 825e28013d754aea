package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/alertsua/status"
)

func TestOblastsCoverCanonicalRegions(t *testing.T) {
	r := Oblasts()
	require.Len(t, r.All(), status.RegionCount)

	for _, name := range status.Oblasts {
		uid, err := r.UID(name)
		require.NoError(t, err, name)

		back, err := r.Name(uid)
		require.NoError(t, err)
		assert.Equal(t, name, back)
	}
}

func TestStaticResolverUID(t *testing.T) {
	r := Oblasts()

	uid, err := r.UID("м. Київ")
	require.NoError(t, err)
	assert.Equal(t, 31, uid)

	uid, err = r.UID("  львівська ОБЛАСТЬ ")
	require.NoError(t, err)
	assert.Equal(t, 27, uid)

	_, err = r.UID("Атлантида")
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestStaticResolverName(t *testing.T) {
	r := Oblasts()

	name, err := r.Name(14)
	require.NoError(t, err)
	assert.Equal(t, "Київська область", name)

	_, err = r.Name(1)
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, ok := r.Lookup(1)
	assert.False(t, ok)
}

func TestStaticResolverAllOrdered(t *testing.T) {
	all := Oblasts().All()
	require.NotEmpty(t, all)
	assert.Equal(t, Location{UID: 3, Name: "Хмельницька область"}, all[0])
	assert.Equal(t, Location{UID: 31, Name: "м. Київ"}, all[len(all)-1])
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].UID, all[i].UID)
	}
}

func TestResolve(t *testing.T) {
	r := Oblasts()
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"31", 31, false},
		{" 22 ", 22, false},
		{"Харківська область", 22, false},
		{"999", 0, true},
		{"", 0, true},
		{"nowhere", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Resolve(r, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticResolverCustomTable(t *testing.T) {
	r := NewStaticResolver(map[int]string{1: "Alpha", 2: "Beta"})
	uid, err := r.UID("beta")
	require.NoError(t, err)
	assert.Equal(t, 2, uid)
	assert.Len(t, r.All(), 2)
}
