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
	"testing"

	"github.com/metno/ppgrid/internal/hash"
)

// TestGridsWithEqualTagHashIdentically asserts the invariant documented
// on Grid: two grids that share a Tag carry bit-identical lat/lon/elev
// arrays. hash.Hash is the tool used to check "bit-identical" without a
// field-by-field walk, since it gob-encodes the full array contents.
func TestGridsWithEqualTagHashIdentically(t *testing.T) {
	lats := [][]float64{{10, 11}, {20, 21}}
	lons := [][]float64{{100, 101}, {110, 111}}
	elevs := [][]float64{{1, 2}, {3, 4}}

	a := NewGrid(copyGrid(lats), copyGrid(lons), copyGrid(elevs), nil)
	b := NewGrid(copyGrid(lats), copyGrid(lons), copyGrid(elevs), nil)
	b.Tag = a.Tag // same tag must mean the same underlying data.

	if a.Tag != b.Tag {
		t.Fatalf("test setup: tags not equal")
	}
	if hash.Hash(a.Lats()) != hash.Hash(b.Lats()) {
		t.Errorf("grids sharing a tag hashed different lats arrays")
	}
	if hash.Hash(a.Lons()) != hash.Hash(b.Lons()) {
		t.Errorf("grids sharing a tag hashed different lons arrays")
	}
	if hash.Hash(a.Elevations()) != hash.Hash(b.Elevations()) {
		t.Errorf("grids sharing a tag hashed different elevation arrays")
	}
}

// TestGridsWithDifferentDataHashDifferently confirms hash.Hash actually
// distinguishes the arrays the invariant above relies on; otherwise the
// equal-tag check would pass vacuously.
func TestGridsWithDifferentDataHashDifferently(t *testing.T) {
	a := NewGrid([][]float64{{10, 11}}, [][]float64{{100, 101}}, nil, nil)
	b := NewGrid([][]float64{{10, 12}}, [][]float64{{100, 101}}, nil, nil)

	if hash.Hash(a.Lats()) == hash.Hash(b.Lats()) {
		t.Errorf("differing lats arrays hashed identically")
	}
}

// TestFakeGridTagsAreUniquePerInstance exercises the GriddedFile test
// double used elsewhere in this package: two fake grids built with the
// same shape get distinct tags even though their lat arrays hash
// identically, so tags identify instances, not content.
func TestFakeGridTagsAreUniquePerInstance(t *testing.T) {
	g1 := newFakeGrid(1, 1, 2, 2)
	g2 := newFakeGrid(1, 1, 2, 2)

	if g1.UniqueTag() == g2.UniqueTag() {
		t.Fatalf("independently constructed fake grids must not share a tag")
	}
	if hash.Hash(g1.Lats()) != hash.Hash(g2.Lats()) {
		t.Errorf("fake grids built with the same shape produced different lats hashes")
	}
}

func copyGrid(src [][]float64) [][]float64 {
	dst := make([][]float64, len(src))
	for i, row := range src {
		dst[i] = append([]float64(nil), row...)
	}
	return dst
}
