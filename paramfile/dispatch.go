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
	"path/filepath"
	"strings"

	"github.com/metno/ppgrid"
)

// Dispatch loads path with the loader selected by its extension:
// ".nc"/".ncf" for NetCDF, ".kalman" for the Kalman state file shape,
// anything else falls back to the plain text grammar. Callers wire
// this into ppgrid.ParameterFileLoader (see ppgridutil.InitializeConfig).
func Dispatch(path string, opts *ppgrid.Options) (*ppgrid.ParameterStore, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc", ".ncf":
		return NetCDF(path, opts)
	case ".kalman":
		return Kalman(path, opts)
	default:
		return Text(path, opts)
	}
}
