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

// GriddedFile is the capability the core consumes from a concrete
// gridded-file backend (NetCDF, GRIB, or a multi-format reader). Those
// backends are out of core scope; the core only ever talks to this
// interface.
type GriddedFile interface {
	NumTime() int
	NumEns() int
	NumLat() int
	NumLon() int

	Lats() [][]float64
	Lons() [][]float64
	Elevs() [][]float64
	LandFractions() [][]float64

	// UniqueTag returns an opaque identity, stable for the file's
	// lifetime, used as a neighbour-cache key. Two files with equal
	// tags must have identical Lats/Lons/Elevs.
	UniqueTag() GridTag

	// HasVariable reports whether the file's definition set already
	// contains variable.
	HasVariable(variable string) bool

	// GetField returns the field for variable at the given time
	// index, on this file's grid.
	GetField(variable string, time int) (*Field, error)

	// AddField writes field for variable at the given time index,
	// adding variable to the file's definition set if necessary.
	AddField(variable string, time int, field *Field) error

	// Flush persists any buffered writes to the backing store.
	Flush() error
}
