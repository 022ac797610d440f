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

func TestVPTreeNearestFindsClosestPoint(t *testing.T) {
	lats := [][]float64{{0, 10, 20}}
	lons := [][]float64{{0, 10, 20}}
	tree := NewVPTree(lats, lons)

	i, j := tree.Nearest(9, 9)
	if i != 0 || j != 1 {
		t.Errorf("Nearest(9,9) = (%d,%d), want (0,1)", i, j)
	}

	i, j = tree.Nearest(0.1, 0.1)
	if i != 0 || j != 0 {
		t.Errorf("Nearest(0.1,0.1) = (%d,%d), want (0,0)", i, j)
	}
}

func TestVPTreeNearestEmptyTree(t *testing.T) {
	tree := NewVPTree(nil, nil)
	i, j := tree.Nearest(0, 0)
	if i != int(MV) || j != int(MV) {
		t.Errorf("Nearest on an empty tree = (%d,%d), want (MV,MV)", i, j)
	}
}

func TestVPTreeBulkNearestMatchesPerCellNearest(t *testing.T) {
	srcLats := [][]float64{{0, 0}, {10, 10}}
	srcLons := [][]float64{{0, 10}, {0, 10}}
	tree := NewVPTree(srcLats, srcLons)

	tgtLats := [][]float64{{1, 9}}
	tgtLons := [][]float64{{1, 9}}

	bulk := tree.BulkNearest(tgtLats, tgtLons)
	for j := range tgtLats[0] {
		wantI, wantJ := tree.Nearest(tgtLats[0][j], tgtLons[0][j])
		if bulk.I[0][j] != wantI || bulk.J[0][j] != wantJ {
			t.Errorf("cell %d: bulk = (%d,%d), per-cell = (%d,%d)", j, bulk.I[0][j], bulk.J[0][j], wantI, wantJ)
		}
	}
}

func TestVPTreeBulkNearestPropagatesMissingCoordinate(t *testing.T) {
	srcLats := [][]float64{{0, 10}}
	srcLons := [][]float64{{0, 10}}
	tree := NewVPTree(srcLats, srcLons)

	tgtLats := [][]float64{{float64(MV), 5}}
	tgtLons := [][]float64{{0, 5}}

	bulk := tree.BulkNearest(tgtLats, tgtLons)
	if bulk.I[0][0] != int(MV) || bulk.J[0][0] != int(MV) {
		t.Errorf("missing target coordinate should map to (MV,MV), got (%d,%d)", bulk.I[0][0], bulk.J[0][0])
	}
	if bulk.I[0][1] == int(MV) {
		t.Error("a valid target coordinate should not map to MV")
	}
}

func TestGridsEqual(t *testing.T) {
	a := [][]float64{{1, 2}, {3, 4}}
	b := [][]float64{{1, 2}, {3, 4}}
	c := [][]float64{{1, 2}, {3, 5}}

	if !gridsEqual(a, b) {
		t.Error("identical grids reported unequal")
	}
	if gridsEqual(a, c) {
		t.Error("different grids reported equal")
	}
}

func TestIdentityIndexMap(t *testing.T) {
	lats := [][]float64{{1, 2}, {3, 4}}
	im := IdentityIndexMap(lats)
	for i := range lats {
		for j := range lats[i] {
			if im.I[i][j] != i || im.J[i][j] != j {
				t.Errorf("IdentityIndexMap[%d][%d] = (%d,%d), want (%d,%d)", i, j, im.I[i][j], im.J[i][j], i, j)
			}
		}
	}
}
