/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package ppgrid

import (
	"fmt"
	"sort"
	"sync"
)

// ParameterStore is a mapping from Location to a sequence of
// Parameters indexed by lead-time, with a max-lead-time high-water
// mark, a time-dependence flag, and a spatial index over the stored
// locations for nearest-neighbour fallback.
type ParameterStore struct {
	mu            sync.RWMutex
	byLoc         map[locationKey][]Parameters
	locOf         map[locationKey]Location
	maxTime       int
	timeDependent bool

	treeDirty bool
	tree      *VPTree
	treeOrder []Location
}

// NewParameterStore returns an empty store.
func NewParameterStore() *ParameterStore {
	return &ParameterStore{
		byLoc: make(map[locationKey][]Parameters),
		locOf: make(map[locationKey]Location),
	}
}

// IsTimeDependent reports whether this store has ever been given
// parameters for a positive lead-time.
func (s *ParameterStore) IsTimeDependent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeDependent
}

// IsLocationDependent reports whether this store holds parameters for
// more than one location.
func (s *ParameterStore) IsLocationDependent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byLoc) > 1
}

// GetNumParameters returns the number of parameters stored per cell,
// or int(MV) if populated cells disagree on vector length. A store
// with no populated cell reports -1.
func (s *ParameterStore) GetNumParameters() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	size := -1
	for _, seq := range s.byLoc {
		for _, p := range seq {
			if p.Empty() {
				continue
			}
			if size != -1 && len(p) != size {
				return int(MV)
			}
			size = len(p)
		}
	}
	return size
}

func (s *ParameterStore) resolveTime(t int) (int, error) {
	if t < 0 {
		return 0, &DomainError{Msg: fmt.Sprintf("negative lead-time %d", t)}
	}
	rt := t
	if !s.timeDependent {
		rt = 0
	}
	if rt > s.maxTime {
		return 0, &DomainError{Msg: fmt.Sprintf("lead-time %d beyond maximum %d", rt, s.maxTime)}
	}
	return rt, nil
}

// Get returns the parameters for time, valid only when the store is
// location-independent (holds at most one location). It is a
// DomainError to call this on a location-dependent store.
func (s *ParameterStore) Get(time int) (Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.byLoc) > 1 {
		return nil, &DomainError{Msg: "cannot retrieve location-independent parameters from a location-dependent store"}
	}
	rt, err := s.resolveTime(time)
	if err != nil {
		return nil, err
	}
	for _, seq := range s.byLoc {
		if rt < len(seq) {
			return seq[rt], nil
		}
		return nil, nil
	}
	return nil, nil
}

// GetAt returns the parameters at time for loc. If allowNearest is
// true and loc has no entry (or none with a non-empty vector at
// time), the stored location minimizing great-circle distance that
// actually has a non-empty vector at time is substituted; if no such
// location exists, an empty Parameters is returned (spec invariant 6).
func (s *ParameterStore) GetAt(time int, loc Location, allowNearest bool) (Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, err := s.resolveTime(time)
	if err != nil {
		return nil, err
	}
	if len(s.byLoc) == 0 {
		return nil, nil
	}

	target := loc
	if allowNearest {
		nearest, ok := s.nearestWithDataLocked(rt, loc)
		if !ok {
			return nil, nil
		}
		target = nearest
	}

	seq, ok := s.byLoc[target.key()]
	if !ok || rt >= len(seq) {
		return nil, nil
	}
	return seq[rt], nil
}

// nearestWithDataLocked finds the stored location closest to loc that
// has a non-empty parameter vector at time rt. The caller must hold
// at least a read lock.
func (s *ParameterStore) nearestWithDataLocked(rt int, loc Location) (Location, bool) {
	if len(s.byLoc) == 1 {
		for k := range s.byLoc {
			l := s.locOf[k]
			seq := s.byLoc[k]
			if rt < len(seq) && !seq[rt].Empty() {
				return l, true
			}
			return Location{}, false
		}
	}

	// Exact match first.
	if seq, ok := s.byLoc[loc.key()]; ok && rt < len(seq) && !seq[rt].Empty() {
		return loc, true
	}

	s.ensureTreeLocked()
	if s.tree != nil {
		i, _ := s.tree.Nearest(loc.Lat, loc.Lon)
		if i != int(MV) {
			cand := s.treeOrder[i]
			seq := s.byLoc[cand.key()]
			if rt < len(seq) && !seq[rt].Empty() {
				return cand, true
			}
		}
	}

	// Secondary linear fallback: the VP-tree candidate lacked data at
	// this lead-time, so scan every location for the closest one that
	// actually has it.
	var best Location
	bestDist := -1.0
	found := false
	for k, seq := range s.byLoc {
		if rt >= len(seq) || seq[rt].Empty() {
			continue
		}
		l := s.locOf[k]
		d := loc.Distance(l)
		if !found || d < bestDist {
			found = true
			bestDist = d
			best = l
		}
	}
	return best, found
}

func (s *ParameterStore) ensureTreeLocked() {
	if s.tree != nil && !s.treeDirty {
		return
	}
	order := make([]Location, 0, len(s.byLoc))
	for k := range s.byLoc {
		order = append(order, s.locOf[k])
	}
	sort.Slice(order, func(a, b int) bool { return order[a].Less(order[b]) })
	lats := make([][]float64, len(order))
	lons := make([][]float64, len(order))
	for i, l := range order {
		lats[i] = []float64{l.Lat}
		lons[i] = []float64{l.Lon}
	}
	s.treeOrder = order
	if len(order) > 0 {
		s.tree = NewVPTree(lats, lons)
	} else {
		s.tree = nil
	}
	s.treeDirty = false
}

// Set stores params for time and loc, updating the time-dependence and
// max-lead-time invariants, and invalidating the nearest-neighbour
// index so the next NN query rebuilds it.
func (s *ParameterStore) Set(params Parameters, time int, loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time > s.maxTime {
		s.maxTime = time
	}
	if time > 0 {
		s.timeDependent = true
	}

	k := loc.key()
	s.locOf[k] = loc
	seq := s.byLoc[k]
	if len(seq) <= time {
		grown := make([]Parameters, time+1)
		copy(grown, seq)
		seq = grown
	}
	seq[time] = params
	s.byLoc[k] = seq
	s.treeDirty = true
}

// MaxTime returns the max-lead-time high-water mark.
func (s *ParameterStore) MaxTime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxTime
}
