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

// Package paramfile provides reference ParameterStore loaders for the
// on-disk parameter file formats a pipeline's -p flag may name: a
// plain whitespace-delimited text grammar, a NetCDF parameter cube,
// and the MET Norway Kalman-filter state file shape.
package paramfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/metno/ppgrid"
)

// Text loads a whitespace-delimited parameter file where each line is
//
//	lat lon elev time p0 p1 ... pn
//
// One line is one (location, lead-time) sample. Blank lines and lines
// starting with '#' are skipped.
func Text(path string, opts *ppgrid.Options) (*ppgrid.ParameterStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ppgrid.ExternalError{Msg: fmt.Sprintf("opening parameter file '%s'", path), Err: err}
	}
	defer f.Close()
	return loadDelimited(path, f, 0)
}

// Kalman loads the MET Norway Kalman filter state file shape: the
// same grammar as Text, with an extra leading bias-term column before
// lat:
//
//	bias lat lon elev time p0 p1 ... pn
func Kalman(path string, opts *ppgrid.Options) (*ppgrid.ParameterStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ppgrid.ExternalError{Msg: fmt.Sprintf("opening parameter file '%s'", path), Err: err}
	}
	defer f.Close()
	return loadDelimited(path, f, 1)
}

func loadDelimited(path string, f *os.File, skip int) (*ppgrid.ParameterStore, error) {
	store := ppgrid.NewParameterStore()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < skip+4 {
			return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: too few fields", lineNo)}
		}
		fields = fields[skip:]

		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: invalid lat: %v", lineNo, err)}
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: invalid lon: %v", lineNo, err)}
		}
		elev, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: invalid elev: %v", lineNo, err)}
		}
		t, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: invalid time: %v", lineNo, err)}
		}

		params := make(ppgrid.Parameters, len(fields)-4)
		for i, s := range fields[4:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, &ppgrid.DataError{File: path, Msg: fmt.Sprintf("line %d: invalid parameter %d: %v", lineNo, i, err)}
			}
			params[i] = float32(v)
		}

		store.Set(params, t, ppgrid.Location{Lat: lat, Lon: lon, Elev: elev})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ppgrid.ExternalError{Msg: fmt.Sprintf("reading parameter file '%s'", path), Err: err}
	}
	return store, nil
}
