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

// Package ppgrid is the core of a post-processing engine for gridded
// ensemble weather forecasts. It implements the pipeline
// configuration machine, the spatial neighbour engine, the parameter
// store, and the calibration/downscaling dispatch layer described by
// the project's design document; concrete file backends and
// individual scheme bodies beyond their contract shape are supplied
// by callers.
package ppgrid

import "fmt"

// Scheme is the capability shared by every downscaler and calibrator:
// a name for dispatch, a static description for help text, and
// whether it needs a parameter file at run time.
type Scheme interface {
	Name() string
	Description() string
	RequiresParameterFile() bool
}

// Downscaler populates a variable in the target file for every time
// step from the source file's values. Schemes are a closed set,
// registered in downscalerFactories; new schemes are added there.
type Downscaler interface {
	Scheme
	// Downscale populates target from source for the configured
	// variable. It returns false if the two files' time counts do not
	// match (the driver turns false into a fatal error referencing
	// the file pair and variable).
	Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error)
}

// Calibrator operates in-place on a target file's fields for the
// configured variable across all time steps. Schemes are a closed
// set, registered in calibratorFactories.
type Calibrator interface {
	Scheme
	// Calibrate transforms target in place, optionally consulting
	// params. It is a ConfigError for the caller to invoke Calibrate
	// without params when RequiresParameterFile is true; the
	// Calibrate method itself enforces this (see calibratorBase).
	Calibrate(target GriddedFile, params *ParameterStore) (bool, error)

	// Train produces a parameter vector from a list of
	// (observation, ensemble) pairs. The base implementation reports
	// "unimplemented"; concrete schemes may override.
	Train(data []ObsEns) (Parameters, error)
}

// ObsEns is one (observation, ensemble) training pair.
type ObsEns struct {
	Obs float32
	Ens []float32
}

// downscalerFactories maps scheme name to constructor. The registry
// is closed-world: unknown names are a ConfigError.
var downscalerFactories = map[string]func(variable string, opts *Options) (Downscaler, error){
	"nearestNeighbour": newNearestNeighbourDownscaler,
	"bypass":           newBypassDownscaler,
	"gradient":         newGradientDownscaler,
	"smart":            newSmartDownscaler,
	"pressure":         newPressureDownscaler,
}

// DefaultDownscaler is used when a variable configuration supplies no
// -d flag (spec §4.I Defaults).
const DefaultDownscaler = "nearestNeighbour"

// NewDownscaler constructs the named downscaler for variable with the
// given options. Every scheme requires a non-empty variable name; an
// empty one is a ConfigError naming the scheme.
func NewDownscaler(name, variable string, opts *Options) (Downscaler, error) {
	factory, ok := downscalerFactories[name]
	if !ok {
		return nil, &ConfigError{Msg: fmt.Sprintf("could not instantiate downscaler of type '%s'", name)}
	}
	if variable == "" {
		return nil, &ConfigError{Msg: fmt.Sprintf("downscaler '%s' needs variable", name)}
	}
	return factory(variable, opts)
}

// calibratorFactories maps scheme name to constructor.
var calibratorFactories = map[string]func(variable string, opts *Options) (Calibrator, error){
	"zaga":          newAffineCalibrator("zaga", true),
	"bct":           newAffineCalibrator("bct", true),
	"regression":    newAffineCalibrator("regression", true),
	"qq":            newAffineCalibrator("qq", true),
	"gaussian":      newAffineCalibrator("gaussian", true),
	"kriging":       newAffineCalibrator("kriging", true),
	"cloud":         newAffineCalibrator("cloud", true),
	"windDirection": newAffineCalibrator("windDirection", true),
	"accumulate":    newAccumulateCalibrator,
	"neighbourhood": newNeighbourhoodCalibrator,
	"window":        newNeighbourhoodCalibrator,
	"sort":          newSortCalibrator,
	"qc":            newQcCalibrator,
	"phase":         newPhaseCalibrator,
	"diagnose":      newDiagnoseCalibrator,
	"altitude":      newAltitudeCalibrator,
	"qnh":           newQnhCalibrator,
}

// calibratorsWithoutVariable names the calibrators (qnh, altitude,
// phase) that operate across variables and do not require a
// "variable" option, matching the original's getScheme dispatch; for
// every other calibrator a missing one is a ConfigError.
var calibratorsWithoutVariable = map[string]bool{
	"qnh":      true,
	"altitude": true,
	"phase":    true,
}

// NewCalibrator constructs the named calibrator for variable with the
// given options.
func NewCalibrator(name, variable string, opts *Options) (Calibrator, error) {
	factory, ok := calibratorFactories[name]
	if !ok {
		return nil, &ConfigError{Msg: fmt.Sprintf("could not instantiate calibrator with name '%s'", name)}
	}
	if variable == "" && !calibratorsWithoutVariable[name] {
		return nil, &ConfigError{Msg: fmt.Sprintf("calibrator '%s' needs variable", name)}
	}
	return factory(variable, opts)
}
