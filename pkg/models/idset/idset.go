// Package idset holds the set of server-assigned message identifiers observed
// in one mailbox at one poll.
package idset

import (
	"sort"
	"strconv"
)

// Set is an unordered collection of opaque message identifiers.
type Set map[string]struct{}

func New(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// FromUIDs converts the result of a UID SEARCH into a Set.
func FromUIDs(uids []uint32) Set {
	s := make(Set, len(uids))
	for _, uid := range uids {
		s.Add(strconv.FormatUint(uint64(uid), 10))
	}
	return s
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Difference returns the identifiers in s that are absent from other.
// It does not report identifiers that disappeared from s.
func (s Set) Difference(other Set) Set {
	out := Set{}
	for id := range s {
		if !other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

func (s Set) Intersect(other Set) Set {
	out := Set{}
	for id := range s {
		if other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Slice returns the members sorted. The order is only for stable logs and
// tests; identifiers carry no ordering.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UID parses id back into an IMAP UID.
func UID(id string) (uint32, error) {
	v, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
