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

package paramfile

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/metno/ppgrid"
)

// NetCDF loads a parameter cube from a NetCDF file with the
// dimensions "location" and "time" and variables:
//
//	lat(location), lon(location), elev(location) [optional]
//	params(location, time, parameter)
//
// grounded on the teacher's sr.Reader.readFullVar64 pattern for
// reading a full variable into a flat slice via cdf.File.Reader.
func NetCDF(path string, opts *ppgrid.Options) (*ppgrid.ParameterStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ppgrid.ExternalError{Msg: fmt.Sprintf("opening parameter file '%s'", path), Err: err}
	}
	defer f.Close()

	cf, err := cdf.Open(f)
	if err != nil {
		return nil, &ppgrid.ExternalError{Msg: fmt.Sprintf("reading NetCDF header for '%s'", path), Err: err}
	}

	lat, err := readFullVar64(cf, "lat")
	if err != nil {
		return nil, &ppgrid.DataError{File: path, Variable: "lat", Msg: err.Error()}
	}
	lon, err := readFullVar64(cf, "lon")
	if err != nil {
		return nil, &ppgrid.DataError{File: path, Variable: "lon", Msg: err.Error()}
	}
	var elev []float64
	if hasVariable(cf, "elev") {
		elev, err = readFullVar64(cf, "elev")
		if err != nil {
			return nil, &ppgrid.DataError{File: path, Variable: "elev", Msg: err.Error()}
		}
	}

	dims := cf.Header.Lengths("params")
	if len(dims) != 3 {
		return nil, &ppgrid.DataError{File: path, Variable: "params", Msg: "expected a (location, time, parameter) cube"}
	}
	nLoc, nTime, nParam := dims[0], dims[1], dims[2]
	if nLoc != len(lat) || nLoc != len(lon) {
		return nil, &ppgrid.DataError{File: path, Msg: "lat/lon length does not match params location dimension"}
	}

	flat, err := readFullVar64(cf, "params")
	if err != nil {
		return nil, &ppgrid.DataError{File: path, Variable: "params", Msg: err.Error()}
	}

	store := ppgrid.NewParameterStore()
	for i := 0; i < nLoc; i++ {
		e := 0.0
		if elev != nil {
			e = elev[i]
		}
		loc := ppgrid.Location{Lat: lat[i], Lon: lon[i], Elev: e}
		for t := 0; t < nTime; t++ {
			params := make(ppgrid.Parameters, nParam)
			base := (i*nTime + t) * nParam
			for p := 0; p < nParam; p++ {
				params[p] = float32(flat[base+p])
			}
			store.Set(params, t, loc)
		}
	}
	return store, nil
}

func hasVariable(cf *cdf.File, name string) bool {
	for _, v := range cf.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func readFullVar64(cf *cdf.File, name string) ([]float64, error) {
	r := cf.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	out, ok := buf.([]float64)
	if !ok {
		return nil, fmt.Errorf("variable '%s' is not a float64 array", name)
	}
	return out, nil
}
