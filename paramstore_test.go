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

import "testing"

func TestParameterStoreGetRejectsLocationDependentStore(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 0, Location{Lat: 1, Lon: 1})
	s.Set(Parameters{2}, 0, Location{Lat: 2, Lon: 2})

	if _, err := s.Get(0); err == nil {
		t.Fatal("expected a DomainError calling Get on a location-dependent store")
	} else if _, ok := err.(*DomainError); !ok {
		t.Errorf("got %T, want *DomainError", err)
	}
}

func TestParameterStoreGetLocationIndependent(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1, 2}, 0, Location{Lat: 1, Lon: 1})

	p, err := s.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 2 || p[0] != 1 || p[1] != 2 {
		t.Errorf("Get(0) = %v", p)
	}
}

func TestParameterStoreTimeDependenceAndMaxTime(t *testing.T) {
	s := NewParameterStore()
	if s.IsTimeDependent() {
		t.Error("a freshly created store should not be time-dependent")
	}
	s.Set(Parameters{1}, 0, Location{Lat: 1, Lon: 1})
	if s.IsTimeDependent() {
		t.Error("setting only lead-time 0 should not mark the store time-dependent")
	}
	s.Set(Parameters{2}, 3, Location{Lat: 1, Lon: 1})
	if !s.IsTimeDependent() {
		t.Error("setting a positive lead-time should mark the store time-dependent")
	}
	if s.MaxTime() != 3 {
		t.Errorf("MaxTime() = %d, want 3", s.MaxTime())
	}
}

func TestParameterStoreResolveTimeCollapsesWhenNotTimeDependent(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{9}, 0, Location{Lat: 1, Lon: 1})

	// not time-dependent: any requested lead-time resolves to 0
	p, err := s.GetAt(5, Location{Lat: 1, Lon: 1}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 1 || p[0] != 9 {
		t.Errorf("GetAt(5, ...) = %v, want the lead-time-0 vector", p)
	}
}

func TestParameterStoreGetAtRejectsNegativeTime(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 0, Location{Lat: 1, Lon: 1})
	if _, err := s.GetAt(-1, Location{Lat: 1, Lon: 1}, false); err == nil {
		t.Fatal("expected a DomainError for a negative lead-time")
	}
}

func TestParameterStoreGetAtRejectsTimeBeyondMax(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 2, Location{Lat: 1, Lon: 1})
	if _, err := s.GetAt(5, Location{Lat: 1, Lon: 1}, false); err == nil {
		t.Fatal("expected a DomainError for a lead-time beyond the store's maximum")
	}
}

func TestParameterStoreGetAtNearestFallback(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 0, Location{Lat: 0, Lon: 0})
	s.Set(Parameters{2}, 0, Location{Lat: 10, Lon: 10})

	// a location with no exact entry must fall back to the nearest
	// populated one when allowNearest is true
	p, err := s.GetAt(0, Location{Lat: 0.1, Lon: 0.1}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 1 || p[0] != 1 {
		t.Errorf("GetAt nearest fallback = %v, want the (0,0) vector", p)
	}
}

func TestParameterStoreGetAtNoNearestWithoutAllowNearest(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 0, Location{Lat: 0, Lon: 0})

	p, err := s.GetAt(0, Location{Lat: 5, Lon: 5}, false)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("GetAt without allowNearest at an unpopulated location = %v, want nil", p)
	}
}

func TestParameterStoreIsLocationDependent(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1}, 0, Location{Lat: 0, Lon: 0})
	if s.IsLocationDependent() {
		t.Error("a store with one location should not be location-dependent")
	}
	s.Set(Parameters{2}, 0, Location{Lat: 1, Lon: 1})
	if !s.IsLocationDependent() {
		t.Error("a store with two locations should be location-dependent")
	}
}

func TestParameterStoreGetNumParametersDisagreement(t *testing.T) {
	s := NewParameterStore()
	s.Set(Parameters{1, 2}, 0, Location{Lat: 0, Lon: 0})
	if n := s.GetNumParameters(); n != 2 {
		t.Errorf("GetNumParameters() = %d, want 2", n)
	}
	s.Set(Parameters{1, 2, 3}, 0, Location{Lat: 1, Lon: 1})
	if n := s.GetNumParameters(); n != int(MV) {
		t.Errorf("GetNumParameters() = %d, want int(MV) on disagreement", n)
	}
}
