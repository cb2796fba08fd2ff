// Package idset holds the candidate-set value threaded through the search
// pipeline. A Set is Unconstrained (no restriction applied yet), Empty (no
// candidate can match) or Explicit (exactly these ids).
package idset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type kind uint8

const (
	kindUnconstrained kind = iota
	kindEmpty
	kindExplicit
)

// Set is immutable; every operation returns a new value.
type Set struct {
	kind kind
	ids  map[int64]struct{}
}

// Unconstrained means every identifier is still a candidate.
func Unconstrained() Set { return Set{kind: kindUnconstrained} }

// Empty means no identifier can be a candidate.
func Empty() Set { return Set{kind: kindEmpty} }

// Of returns Explicit(ids), or Empty when ids is empty.
func Of(ids ...int64) Set {
	if len(ids) == 0 {
		return Empty()
	}
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{kind: kindExplicit, ids: m}
}

func (s Set) IsUnconstrained() bool { return s.kind == kindUnconstrained }

func (s Set) IsEmpty() bool { return s.kind == kindEmpty }

func (s Set) IsExplicit() bool { return s.kind == kindExplicit }

// Len is the number of candidates of an Explicit set; -1 for Unconstrained.
func (s Set) Len() int {
	switch s.kind {
	case kindUnconstrained:
		return -1
	case kindExplicit:
		return len(s.ids)
	}
	return 0
}

// Contains reports whether id is a candidate.
func (s Set) Contains(id int64) bool {
	switch s.kind {
	case kindUnconstrained:
		return true
	case kindExplicit:
		_, ok := s.ids[id]
		return ok
	}
	return false
}

// IDs returns the candidates in ascending order. It is nil for Unconstrained
// and Empty; use IsUnconstrained/IsEmpty to tell them apart.
func (s Set) IDs() []int64 {
	if s.kind != kindExplicit {
		return nil
	}
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Intersect narrows s by a freshly queried id list.
func (s Set) Intersect(queried []int64) Set {
	switch s.kind {
	case kindEmpty:
		return Empty()
	case kindUnconstrained:
		return Of(queried...)
	}
	keep := make([]int64, 0, min(len(queried), len(s.ids)))
	for _, id := range queried {
		if _, ok := s.ids[id]; ok {
			keep = append(keep, id)
		}
	}
	return Of(keep...)
}

// IntersectSet is Intersect against another Set value.
func (s Set) IntersectSet(o Set) Set {
	switch {
	case s.IsEmpty() || o.IsEmpty():
		return Empty()
	case o.IsUnconstrained():
		return s
	}
	return s.Intersect(o.IDs())
}

func (s Set) Equal(o Set) bool {
	if s.kind != o.kind {
		return false
	}
	if s.kind != kindExplicit {
		return true
	}
	if len(s.ids) != len(o.ids) {
		return false
	}
	for id := range s.ids {
		if _, ok := o.ids[id]; !ok {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	switch s.kind {
	case kindUnconstrained:
		return "Unconstrained"
	case kindEmpty:
		return "Empty"
	}
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "Explicit{" + strings.Join(parts, ",") + "}"
}

// wire form: {"kind":"explicit","ids":[...]}
type wireSet struct {
	Kind string  `json:"kind"`
	IDs  []int64 `json:"ids,omitempty"`
}

func (s Set) MarshalJSON() ([]byte, error) {
	w := wireSet{Kind: "unconstrained"}
	switch s.kind {
	case kindEmpty:
		w.Kind = "empty"
	case kindExplicit:
		w.Kind = "explicit"
		w.IDs = s.IDs()
	}
	return json.Marshal(w)
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var w wireSet
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "unconstrained":
		*s = Unconstrained()
	case "empty":
		*s = Empty()
	case "explicit":
		*s = Of(w.IDs...)
	default:
		return fmt.Errorf("idset: unknown kind %q", w.Kind)
	}
	return nil
}
