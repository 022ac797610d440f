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

import "fmt"

// FileOpener resolves a path plus options into an open GriddedFile,
// read-only when forRead is true. The core ships no concrete file
// backend; the driver is handed one by its caller (see ppgridutil),
// matching the original's File::getScheme indirection.
type FileOpener func(path string, opts *Options, forRead bool) (GriddedFile, error)

// Progress reports completion of one (file pair, variable) unit of
// work, for callers running long batch invocations (see the
// webstatus package).
type Progress struct {
	InputFile, OutputFile string
	Variable              string
	Err                   error
}

// ProgressFunc is notified after each variable configuration is
// applied to a file pair, whether it succeeded or failed. A nil func
// disables reporting.
type ProgressFunc func(Progress)

// Driver executes a Pipeline's variable configurations against every
// (input, output) file pair in order. It never retries: any scheme
// failure is fatal to the whole run (spec §4.J).
type Driver struct {
	Open     FileOpener
	Cache    *NeighbourCache
	OnProgress ProgressFunc
}

// NewDriver returns a Driver backed by open and a fresh neighbour
// cache shared across every file pair it runs.
func NewDriver(open FileOpener) *Driver {
	return &Driver{Open: open, Cache: NewNeighbourCache()}
}

// Run opens every file pair named by p and applies every variable
// configuration to it, in the order given.
func (drv *Driver) Run(p *Pipeline) error {
	fileCache := make(map[string]GriddedFile)

	openCached := func(path string, opts *Options, forRead bool) (GriddedFile, error) {
		if f, ok := fileCache[path]; ok {
			return f, nil
		}
		f, err := drv.Open(path, opts, forRead)
		if err != nil {
			return nil, &ExternalError{Msg: fmt.Sprintf("opening '%s'", path), Err: err}
		}
		fileCache[path] = f
		return f, nil
	}

	for i := range p.InputFiles {
		inPath, outPath := p.InputFiles[i], p.OutputFiles[i]

		in, err := openCached(inPath, p.InputOptions, true)
		if err != nil {
			return err
		}
		out, err := openCached(outPath, p.OutputOptions, false)
		if err != nil {
			return err
		}

		for _, vc := range p.VariableConfigurations {
			err := drv.runVariable(in, out, inPath, outPath, vc)
			if drv.OnProgress != nil {
				drv.OnProgress(Progress{InputFile: inPath, OutputFile: outPath, Variable: vc.Variable, Err: err})
			}
			if err != nil {
				return err
			}
		}

		if err := out.Flush(); err != nil {
			return &ExternalError{Msg: fmt.Sprintf("flushing '%s'", outPath), Err: err}
		}
	}
	return nil
}

func (drv *Driver) runVariable(in, out GriddedFile, inPath, outPath string, vc VariableConfiguration) error {
	ok, err := vc.Downscaler.Downscale(in, out, drv.Cache)
	if err != nil {
		return err
	}
	if !ok {
		return &DataError{
			File:     fmt.Sprintf("%s -> %s", inPath, outPath),
			Variable: vc.Variable,
			Msg:      fmt.Sprintf("downscaler '%s' failed", vc.Downscaler.Name()),
		}
	}

	for _, step := range vc.Calibrators {
		if step.Calibrator.RequiresParameterFile() && step.Params == nil {
			return &ConfigError{Msg: fmt.Sprintf("calibrator '%s' for variable '%s' requires a parameter file", step.Calibrator.Name(), vc.Variable)}
		}
		ok, err := step.Calibrator.Calibrate(out, step.Params)
		if err != nil {
			return err
		}
		if !ok {
			return &DataError{
				File:     outPath,
				Variable: vc.Variable,
				Msg:      fmt.Sprintf("calibrator '%s' failed", step.Calibrator.Name()),
			}
		}
	}
	return nil
}
