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

// fakeGrid is an in-memory GriddedFile used by the core package's own
// tests, standing in for a netcdfgrid.File without any file I/O.
type fakeGrid struct {
	nLat, nLon, nEns int
	lats, lons       [][]float64
	elevs, landFrac  [][]float64
	tag              GridTag
	fields           map[string]map[int]*Field
	flushed          bool

	// numTimeOverride fixes NumTime() to a value known up front (as a
	// netcdfgrid.File's time dimension is, when opened against a
	// gridfile template), rather than deriving it from fields written
	// so far. -1 means "derive from fields".
	numTimeOverride int
}

func newFakeGrid(nTime, nEns, nLat, nLon int) *fakeGrid {
	lats := make([][]float64, nLat)
	lons := make([][]float64, nLat)
	for i := range lats {
		lats[i] = make([]float64, nLon)
		lons[i] = make([]float64, nLon)
		for j := range lats[i] {
			lats[i][j] = float64(i)
			lons[i][j] = float64(j)
		}
	}
	g := &fakeGrid{
		nLat: nLat, nLon: nLon, nEns: nEns,
		lats: lats, lons: lons,
		tag:             NextGridTag(),
		fields:          make(map[string]map[int]*Field),
		numTimeOverride: nTime,
	}
	return g
}

func (g *fakeGrid) NumTime() int {
	if g.numTimeOverride >= 0 {
		return g.numTimeOverride
	}
	max := 0
	for _, byTime := range g.fields {
		for t := range byTime {
			if t+1 > max {
				max = t + 1
			}
		}
	}
	return max
}
func (g *fakeGrid) NumEns() int                    { return g.nEns }
func (g *fakeGrid) NumLat() int                    { return g.nLat }
func (g *fakeGrid) NumLon() int                     { return g.nLon }
func (g *fakeGrid) Lats() [][]float64              { return g.lats }
func (g *fakeGrid) Lons() [][]float64              { return g.lons }
func (g *fakeGrid) Elevs() [][]float64             { return g.elevs }
func (g *fakeGrid) LandFractions() [][]float64     { return g.landFrac }
func (g *fakeGrid) UniqueTag() GridTag             { return g.tag }

func (g *fakeGrid) HasVariable(variable string) bool {
	_, ok := g.fields[variable]
	return ok
}

func (g *fakeGrid) GetField(variable string, time int) (*Field, error) {
	byTime, ok := g.fields[variable]
	if !ok {
		return nil, &DataError{Variable: variable, Msg: "variable not found"}
	}
	f, ok := byTime[time]
	if !ok {
		return nil, &DataError{Variable: variable, Msg: "time index not found"}
	}
	return f, nil
}

func (g *fakeGrid) AddField(variable string, time int, field *Field) error {
	byTime, ok := g.fields[variable]
	if !ok {
		byTime = make(map[int]*Field)
		g.fields[variable] = byTime
	}
	byTime[time] = field
	return nil
}

func (g *fakeGrid) Flush() error {
	g.flushed = true
	return nil
}

// setElevs assigns a rectangular elevation grid of the receiver's shape.
func (g *fakeGrid) setElevs(fn func(i, j int) float64) {
	g.elevs = make([][]float64, g.nLat)
	for i := range g.elevs {
		g.elevs[i] = make([]float64, g.nLon)
		for j := range g.elevs[i] {
			g.elevs[i][j] = fn(i, j)
		}
	}
}

// setSeries stores a field at every time index 0..n-1 for variable,
// all initialized from the same per-cell member vectors.
func (g *fakeGrid) setSeries(variable string, n int, init func(i, j int) []float32) {
	for t := 0; t < n; t++ {
		f := NewField(g.nLat, g.nLon, g.nEns)
		for i := 0; i < g.nLat; i++ {
			for j := 0; j < g.nLon; j++ {
				f.SetMembers(i, j, init(i, j))
			}
		}
		g.AddField(variable, t, f)
	}
}
