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

// Location is a (lat, lon, elev) triple. Equality for parameter
// lookup purposes ignores elevation; see Equal.
type Location struct {
	Lat, Lon, Elev float64
}

// Equal reports location equality ignoring elevation, as used for
// parameter-store keys.
func (l Location) Equal(o Location) bool {
	return l.Lat == o.Lat && l.Lon == o.Lon
}

// Less orders locations lexicographically on (lat, lon), so they may
// key an ordered mapping.
func (l Location) Less(o Location) bool {
	if l.Lat != o.Lat {
		return l.Lat < o.Lat
	}
	return l.Lon < o.Lon
}

// Distance returns the great-circle distance in meters to o.
func (l Location) Distance(o Location) float64 {
	return GreatCircleDistance(l.Lat, l.Lon, o.Lat, o.Lon)
}

// locationKey is the map key for Location that ignores elevation,
// since Go map keys compare all struct fields.
type locationKey struct {
	Lat, Lon float64
}

func (l Location) key() locationKey { return locationKey{Lat: l.Lat, Lon: l.Lon} }
