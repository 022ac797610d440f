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

// Package netcdfgrid is the reference ppgrid.GriddedFile backend: a
// file holding dimensions time, ens, lat_index, lon_index, coordinate
// variables lat(lat_index,lon_index)/lon(lat_index,lon_index) and
// optional elev/landfrac on the same grid, and one 4-D
// (time, ens, lat_index, lon_index) variable per forecast
// field. It is grounded on the header-construction and
// strider-read/write pattern the teacher uses in sr.go's
// createOrOpenOutputFile.
package netcdfgrid

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/metno/ppgrid"
)

const (
	dimTime = "time"
	dimEns  = "ens"
	dimLat  = "lat_index"
	dimLon  = "lon_index"
)

// File is a ppgrid.GriddedFile backed by a single NetCDF file.
//
// NetCDF classic's header is fixed once Define'd, so a fresh output
// file cannot grow new variables as the pipeline discovers them. A
// file being written therefore buffers every AddField call in
// pending and only defines its header and writes real data in
// Flush, once every variable configuration for this output has run
// and the full variable set is known.
type File struct {
	f        *os.File
	cf       *cdf.File
	path     string
	readOnly bool

	nTime, nEns, nLat, nLon int
	lats, lons              [][]float64
	elevs, landFracs        [][]float64
	tag                     ppgrid.GridTag

	pending map[string]map[int]*ppgrid.Field
}

// Open opens path as a gridded NetCDF file. When forRead is false and
// path does not already exist, opts must carry a "gridfile" key
// naming an existing NetCDF file to copy the output grid
// (lat/lon/elev/landfrac) from, since a target grid has to be known
// before a downscaler can write to it.
func Open(path string, opts *ppgrid.Options, forRead bool) (ppgrid.GriddedFile, error) {
	if forRead {
		return openExisting(path, true)
	}
	if _, err := os.Stat(path); err == nil {
		return openExisting(path, false)
	}
	return createFresh(path, opts)
}

func createFresh(path string, opts *ppgrid.Options) (*File, error) {
	gridPath, ok := opts.GetString("gridfile")
	if !ok || gridPath == "" {
		return nil, &ppgrid.ConfigError{Msg: fmt.Sprintf("creating '%s': no 'gridfile' option naming a template grid", path)}
	}
	tmpl, err := openExisting(gridPath, true)
	if err != nil {
		return nil, err
	}
	defer tmpl.f.Close()

	osf, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating '%s': %w", path, err)
	}
	return &File{
		f: osf, path: path,
		nLat: tmpl.nLat, nLon: tmpl.nLon,
		lats: tmpl.lats, lons: tmpl.lons, elevs: tmpl.elevs, landFracs: tmpl.landFracs,
		tag:     ppgrid.NextGridTag(),
		pending: make(map[string]map[int]*ppgrid.Field),
	}, nil
}

func openExisting(path string, readOnly bool) (*File, error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR
	}
	osf, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening '%s': %w", path, err)
	}
	cf, err := cdf.Open(osf)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("reading NetCDF header for '%s': %w", path, err)
	}
	nf := &File{f: osf, cf: cf, path: path, readOnly: readOnly, tag: ppgrid.NextGridTag()}
	if err := nf.loadGrid(); err != nil {
		osf.Close()
		return nil, err
	}
	return nf, nil
}

func (nf *File) loadGrid() error {
	dims := nf.cf.Header.Lengths("lat")
	if len(dims) != 2 {
		return &ppgrid.DataError{File: nf.path, Variable: "lat", Msg: "expected a (lat_index, lon_index) grid"}
	}
	nf.nLat, nf.nLon = dims[0], dims[1]
	nf.nTime = dimLenOr(nf.cf, dimTime, 1)
	nf.nEns = dimLenOr(nf.cf, dimEns, 1)

	var err error
	nf.lats, err = nf.read2D("lat")
	if err != nil {
		return err
	}
	nf.lons, err = nf.read2D("lon")
	if err != nil {
		return err
	}
	if nf.hasVariable("elev") {
		if nf.elevs, err = nf.read2D("elev"); err != nil {
			return err
		}
	}
	if nf.hasVariable("landfrac") {
		if nf.landFracs, err = nf.read2D("landfrac"); err != nil {
			return err
		}
	}
	return nil
}

func dimLenOr(cf *cdf.File, name string, fallback int) int {
	for _, v := range cf.Header.Variables() {
		if v == name {
			l := cf.Header.Lengths(name)
			if len(l) == 1 {
				return l[0]
			}
		}
	}
	return fallback
}

func (nf *File) hasVariable(name string) bool {
	for _, v := range nf.cf.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func (nf *File) read2D(name string) ([][]float64, error) {
	r := nf.cf.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, &ppgrid.DataError{File: nf.path, Variable: name, Msg: err.Error()}
	}
	flat, ok := buf.([]float64)
	if !ok {
		return nil, &ppgrid.DataError{File: nf.path, Variable: name, Msg: "not a float64 array"}
	}
	out := make([][]float64, nf.nLat)
	for i := range out {
		out[i] = flat[i*nf.nLon : (i+1)*nf.nLon]
	}
	return out, nil
}

func (nf *File) NumTime() int { return nf.nTime }
func (nf *File) NumEns() int  { return nf.nEns }
func (nf *File) NumLat() int  { return nf.nLat }
func (nf *File) NumLon() int  { return nf.nLon }

func (nf *File) Lats() [][]float64          { return nf.lats }
func (nf *File) Lons() [][]float64          { return nf.lons }
func (nf *File) Elevs() [][]float64         { return nf.elevs }
func (nf *File) LandFractions() [][]float64 { return nf.landFracs }

func (nf *File) UniqueTag() ppgrid.GridTag { return nf.tag }

func (nf *File) HasVariable(variable string) bool {
	if nf.cf != nil {
		return nf.hasVariable(variable)
	}
	_, ok := nf.pending[variable]
	return ok
}

// GetField reads variable at time into a dense Field. A field still
// buffered in pending (written by an earlier step this run, on a file
// not yet Flush'd) is returned as-is, since the calibrator chain reads
// back what the downscaler (or an earlier calibrator) just wrote.
func (nf *File) GetField(variable string, time int) (*ppgrid.Field, error) {
	if nf.cf == nil {
		if byTime, ok := nf.pending[variable]; ok {
			if field, ok := byTime[time]; ok {
				return field, nil
			}
		}
		return nil, &ppgrid.DataError{File: nf.path, Variable: variable, Msg: "variable not present"}
	}
	if !nf.hasVariable(variable) {
		return nil, &ppgrid.DataError{File: nf.path, Variable: variable, Msg: "variable not present"}
	}
	begin := []int{time, 0, 0, 0}
	end := []int{time + 1, nf.nEns, nf.nLat, nf.nLon}
	r := nf.cf.Reader(variable, begin, end)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, &ppgrid.DataError{File: nf.path, Variable: variable, Msg: err.Error()}
	}
	flat, ok := buf.([]float32)
	if !ok {
		return nil, &ppgrid.DataError{File: nf.path, Variable: variable, Msg: "not a float32 array"}
	}
	field := ppgrid.NewField(nf.nLat, nf.nLon, nf.nEns)
	for i := 0; i < nf.nLat; i++ {
		for j := 0; j < nf.nLon; j++ {
			for e := 0; e < nf.nEns; e++ {
				idx := (e*nf.nLat+i)*nf.nLon + j
				field.Set(i, j, e, flat[idx])
			}
		}
	}
	return field, nil
}

// AddField stages field for variable at time. If nf's underlying
// NetCDF file already has a defined header (an existing file opened
// for append), it is written through immediately; otherwise it is
// buffered until Flush, once every variable this output will ever
// hold is known.
func (nf *File) AddField(variable string, time int, field *ppgrid.Field) error {
	if nf.readOnly {
		return &ppgrid.ConfigError{Msg: fmt.Sprintf("'%s' was opened read-only", nf.path)}
	}
	if time+1 > nf.nTime {
		nf.nTime = time + 1
	}
	if field.NEns > nf.nEns {
		nf.nEns = field.NEns
	}
	if nf.cf != nil {
		if !nf.hasVariable(variable) {
			return &ppgrid.ConfigError{Msg: fmt.Sprintf("'%s' is not among the variables '%s' was created with", variable, nf.path)}
		}
		return nf.writeField(variable, time, field)
	}
	if nf.pending[variable] == nil {
		nf.pending[variable] = make(map[int]*ppgrid.Field)
	}
	nf.pending[variable][time] = field
	return nil
}

func (nf *File) writeField(variable string, time int, field *ppgrid.Field) error {
	flat := make([]float32, field.NLat*field.NLon*field.NEns)
	for i := 0; i < field.NLat; i++ {
		for j := 0; j < field.NLon; j++ {
			for e := 0; e < field.NEns; e++ {
				flat[(e*field.NLat+i)*field.NLon+j] = field.At(i, j, e)
			}
		}
	}
	begin := []int{time, 0, 0, 0}
	end := []int{time + 1, field.NEns, field.NLat, field.NLon}
	w := nf.cf.Writer(variable, begin, end)
	if _, err := w.Write(flat); err != nil {
		return &ppgrid.DataError{File: nf.path, Variable: variable, Msg: err.Error()}
	}
	return nil
}

// define lays out a fresh file's header: dimensions, coordinate
// variables copied from its grid template, and one (time, ens, lat,
// lon) variable per name in pending. Grounded on the teacher's
// sr.go createOrOpenOutputFile header-construction sequence
// (NewHeader/AddVariable/AddAttribute/Define/Check/Create).
func (nf *File) define() error {
	h := cdf.NewHeader(
		[]string{dimTime, dimEns, dimLat, dimLon},
		[]int{0, nf.nEns, nf.nLat, nf.nLon},
	)
	h.AddVariable("lat", []string{dimLat, dimLon}, []float64{0})
	h.AddAttribute("lat", "description", "grid cell center latitude")
	h.AddVariable("lon", []string{dimLat, dimLon}, []float64{0})
	h.AddAttribute("lon", "description", "grid cell center longitude")
	if nf.elevs != nil {
		h.AddVariable("elev", []string{dimLat, dimLon}, []float64{0})
		h.AddAttribute("elev", "description", "grid cell elevation")
	}
	if nf.landFracs != nil {
		h.AddVariable("landfrac", []string{dimLat, dimLon}, []float64{0})
		h.AddAttribute("landfrac", "description", "grid cell land fraction")
	}
	for variable := range nf.pending {
		h.AddVariable(variable, []string{dimTime, dimEns, dimLat, dimLon}, []float32{0})
	}

	h.Define()
	for _, err := range h.Check() {
		return &ppgrid.ConfigError{Msg: fmt.Sprintf("defining '%s': %v", nf.path, err)}
	}

	cf, err := cdf.Create(nf.f, h)
	if err != nil {
		return &ppgrid.ExternalError{Msg: fmt.Sprintf("creating '%s'", nf.path), Err: err}
	}
	nf.cf = cf

	if err := nf.writeFlat2D("lat", nf.lats); err != nil {
		return err
	}
	if err := nf.writeFlat2D("lon", nf.lons); err != nil {
		return err
	}
	if nf.elevs != nil {
		if err := nf.writeFlat2D("elev", nf.elevs); err != nil {
			return err
		}
	}
	if nf.landFracs != nil {
		if err := nf.writeFlat2D("landfrac", nf.landFracs); err != nil {
			return err
		}
	}
	for variable, byTime := range nf.pending {
		for time, field := range byTime {
			if err := nf.writeField(variable, time, field); err != nil {
				return err
			}
		}
	}
	nf.pending = nil
	return nil
}

func (nf *File) writeFlat2D(name string, grid [][]float64) error {
	flat := make([]float64, nf.nLat*nf.nLon)
	for i, row := range grid {
		copy(flat[i*nf.nLon:(i+1)*nf.nLon], row)
	}
	w := nf.cf.Writer(name, nil, nil)
	_, err := w.Write(flat)
	if err != nil {
		return &ppgrid.DataError{File: nf.path, Variable: name, Msg: err.Error()}
	}
	return nil
}

// Flush defines and writes a freshly created file's header and
// buffered fields, if it hasn't been defined yet, then fixes up the
// NetCDF record-count header entry the cdf library leaves stale after
// strider writes.
func (nf *File) Flush() error {
	if !nf.readOnly && nf.cf == nil && len(nf.pending) > 0 {
		if err := nf.define(); err != nil {
			return err
		}
	}
	if nf.readOnly || nf.f == nil {
		return nil
	}
	if err := cdf.UpdateNumRecs(nf.f); err != nil {
		return &ppgrid.ExternalError{Msg: fmt.Sprintf("flushing '%s'", nf.path), Err: err}
	}
	return nf.f.Sync()
}
