// Package location maps location display names to the numeric UIDs used by
// the alerts.in.ua API.
package location

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownLocation is returned for names or UIDs missing from the table
var ErrUnknownLocation = errors.New("unknown location")

// Location is one row of the reference table
type Location struct {
	UID  int    `json:"uid" yaml:"uid"`
	Name string `json:"name" yaml:"name"`
}

// Resolver maps names to UIDs and back
type Resolver interface {
	UID(name string) (int, error)
	Name(uid int) (string, error)
	Lookup(uid int) (string, bool)
}

// StaticResolver is a Resolver over a fixed in-memory table. It is safe for
// concurrent use.
type StaticResolver struct {
	byUID  map[int]string
	byName map[string]int
}

var _ Resolver = (*StaticResolver)(nil)

// NewStaticResolver builds a resolver over table. Names are matched ignoring
// case and surrounding whitespace.
func NewStaticResolver(table map[int]string) *StaticResolver {
	r := &StaticResolver{
		byUID:  make(map[int]string, len(table)),
		byName: make(map[string]int, len(table)),
	}
	for uid, name := range table {
		r.byUID[uid] = name
		r.byName[normalize(name)] = uid
	}
	return r
}

// Oblasts returns a resolver over the 27 oblast-level locations
func Oblasts() *StaticResolver {
	return NewStaticResolver(oblastUIDs)
}

// UID returns the UID for name
func (r *StaticResolver) UID(name string) (int, error) {
	uid, ok := r.byName[normalize(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	return uid, nil
}

// Name returns the display name for uid
func (r *StaticResolver) Name(uid int) (string, error) {
	name, ok := r.byUID[uid]
	if !ok {
		return "", fmt.Errorf("%w: uid %d", ErrUnknownLocation, uid)
	}
	return name, nil
}

// Lookup is Name without the error
func (r *StaticResolver) Lookup(uid int) (string, bool) {
	name, ok := r.byUID[uid]
	return name, ok
}

// All returns the table ordered by UID
func (r *StaticResolver) All() []Location {
	out := make([]Location, 0, len(r.byUID))
	for _, uid := range slices.Sorted(maps.Keys(r.byUID)) {
		out = append(out, Location{UID: uid, Name: r.byUID[uid]})
	}
	return out
}

// Resolve accepts either a numeric UID or a display name and returns the UID.
// Numeric input must still be present in the table.
func Resolve(r Resolver, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, fmt.Errorf("%w: empty identifier", ErrUnknownLocation)
	}
	if uid, err := strconv.Atoi(id); err == nil {
		if _, err := r.Name(uid); err != nil {
			return 0, err
		}
		return uid, nil
	}
	return r.UID(id)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
