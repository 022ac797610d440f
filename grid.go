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

// Grid holds a rectangular lat/lon mesh plus optional elevation and
// land-fraction fields. It carries a Tag, a process-lifetime-stable
// opaque identity assigned on construction; two grids with equal
// tags must have identical lat/lon/elev arrays (Design Notes §9).
type Grid struct {
	Tag                            GridTag
	lats, lons                     [][]float64
	elevations, landFractions      [][]float64
}

// NewGrid constructs a Grid and assigns it a fresh tag. lats and lons
// must be rectangular and the same shape; elevations and
// landFractions may be nil.
func NewGrid(lats, lons, elevations, landFractions [][]float64) *Grid {
	return &Grid{
		Tag:           NextGridTag(),
		lats:          lats,
		lons:          lons,
		elevations:    elevations,
		landFractions: landFractions,
	}
}

func (g *Grid) Lats() [][]float64           { return g.lats }
func (g *Grid) Lons() [][]float64           { return g.lons }
func (g *Grid) Elevations() [][]float64     { return g.elevations }
func (g *Grid) LandFractions() [][]float64  { return g.landFractions }

func (g *Grid) NumLat() int {
	return len(g.lats)
}

func (g *Grid) NumLon() int {
	if len(g.lats) == 0 {
		return 0
	}
	return len(g.lats[0])
}

// HasElevation reports whether this grid carries an elevation field.
func (g *Grid) HasElevation() bool { return g.elevations != nil }
