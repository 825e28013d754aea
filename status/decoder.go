// Package status decodes the compact positional status strings served by the
// air-raid alert IoT endpoints into per-region status records.
package status

import (
	"encoding/json"
	"iter"
	"unicode/utf8"
)

// Status is the resolved alert state of a region
type Status string

const (
	Active  Status = "active"
	Partly  Status = "partly"
	NoAlert Status = "no_alert"
)

// Undefined marks a position the API has no data for. It is dropped from
// decoded output instead of being coerced to NoAlert.
const Undefined = ' '

// RegionStatus is the decoded status of one region
type RegionStatus struct {
	Index  int    `json:"index"`
	UID    int    `json:"uid,omitempty"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Status Status `json:"status"`
}

// Resolve maps a status character to its Status. Anything other than
// 'A' or 'P' resolves to NoAlert.
func Resolve(c rune) Status {
	switch c {
	case 'A':
		return Active
	case 'P':
		return Partly
	default:
		return NoAlert
	}
}

// Decode resolves a single-location status string. Only the first character
// is significant; an empty or undefined string is NoAlert.
func Decode(s string) Status {
	if s == "" {
		return NoAlert
	}
	c, _ := utf8.DecodeRuneInString(s)
	return Resolve(c)
}

// DecodeOblasts decodes s against the canonical oblast order
func DecodeOblasts(s string, oblastLevelOnly bool) Statuses {
	return DecodeWith(s, Oblasts[:], oblastLevelOnly)
}

// DecodeWith decodes s against an arbitrary ordered region list.
//
// Characters past len(regions) are ignored and regions past len(s) produce no
// record. With oblastLevelOnly, Partly collapses to NoAlert and only Active
// records are kept.
func DecodeWith(s string, regions []string, oblastLevelOnly bool) Statuses {
	out := make([]RegionStatus, 0, min(len(s), len(regions)))
	i := 0
	for _, c := range s {
		if i >= len(regions) {
			break
		}
		idx := i
		i++
		if c == Undefined {
			continue
		}
		st := Resolve(c)
		if oblastLevelOnly {
			if st == Partly {
				st = NoAlert
			}
			if st != Active {
				continue
			}
		}
		out = append(out, RegionStatus{
			Index:  idx,
			Name:   regions[idx],
			Code:   string(c),
			Status: st,
		})
	}
	return Statuses{items: out}
}

// DecodeByUID decodes a string where position i holds the status of the
// location with UID i. Positions lookup does not know are dropped.
func DecodeByUID(s string, lookup func(uid int) (string, bool)) Statuses {
	var out []RegionStatus
	uid := -1
	for _, c := range s {
		uid++
		if c == Undefined {
			continue
		}
		name, ok := lookup(uid)
		if !ok {
			continue
		}
		out = append(out, RegionStatus{
			Index:  uid,
			UID:    uid,
			Name:   name,
			Code:   string(c),
			Status: Resolve(c),
		})
	}
	return Statuses{items: out}
}

// Statuses is a read-only, ordered sequence of RegionStatus
type Statuses struct {
	items []RegionStatus
}

// NewStatuses copies items into a new sequence
func NewStatuses(items ...RegionStatus) Statuses {
	return Statuses{items: append([]RegionStatus(nil), items...)}
}

func (s Statuses) Len() int { return len(s.items) }

// At returns the i-th record. It panics if i is out of range.
func (s Statuses) At(i int) RegionStatus { return s.items[i] }

// All iterates the records in order
func (s Statuses) All() iter.Seq2[int, RegionStatus] {
	return func(yield func(int, RegionStatus) bool) {
		for i, r := range s.items {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Slice returns a copy of the records
func (s Statuses) Slice() []RegionStatus {
	return append([]RegionStatus(nil), s.items...)
}

// Find returns the record for the region with the given name
func (s Statuses) Find(name string) (RegionStatus, bool) {
	for _, r := range s.items {
		if r.Name == name {
			return r, true
		}
	}
	return RegionStatus{}, false
}

// Filter returns the records matching st
func (s Statuses) Filter(st Status) Statuses {
	var out []RegionStatus
	for _, r := range s.items {
		if r.Status == st {
			out = append(out, r)
		}
	}
	return Statuses{items: out}
}

// Active returns the records with an active alert
func (s Statuses) Active() Statuses { return s.Filter(Active) }

func (s Statuses) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *Statuses) UnmarshalJSON(b []byte) error {
	var items []RegionStatus
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	s.items = items
	return nil
}
