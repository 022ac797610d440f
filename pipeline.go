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

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CalibratorStep is one entry in a variable's calibrator chain: a
// scheme paired with the parameter store it was configured with, if
// any.
type CalibratorStep struct {
	Calibrator Calibrator
	Params     *ParameterStore
}

// VariableConfiguration is the parsed, validated configuration for one
// -v block: the downscaler plus its parameter store (if any), and the
// ordered calibrator chain.
type VariableConfiguration struct {
	Variable         string
	Downscaler       Downscaler
	DownscalerParams *ParameterStore
	Calibrators      []CalibratorStep
	Options          *Options
}

// Pipeline is the fully-parsed, validated result of ParseArgv: the
// globbed input/output file lists (equal length, paired by index) and
// the per-variable configurations applied to every pair.
type Pipeline struct {
	InputFiles              []string
	OutputFiles             []string
	InputOptions            *Options
	OutputOptions           *Options
	VariableConfigurations  []VariableConfiguration
}

// ParameterFileLoader loads a parameter store from a file path. The
// core ships no concrete backend; callers register one (see the
// paramfile package) by assigning ParameterFileLoader before calling
// ParseArgv. The zero value reports a ConfigError, so that using -p
// without wiring a backend fails loudly rather than silently
// skipping calibration.
var ParameterFileLoader = func(path string, opts *Options) (*ParameterStore, error) {
	return nil, &ConfigError{Msg: fmt.Sprintf("no parameter file backend registered; cannot load '%s'", path)}
}

type pipelineState int

const (
	stateStart pipelineState = iota
	stateVar
	stateVarOpt
	stateNewVar
	stateDown
	stateDownOpt
	stateParDown
	stateParOptDown
	stateCal
	stateCalOpt
	stateNewCal
	stateParCal
	stateParOptCal
	stateEnd
	stateError
)

// ParseArgv runs the pipeline-builder state machine over a token
// stream laid out as:
//
//	<in> <out> <fileOpt...>
//	(-v <var> <varOpt...>
//	   [-d <downscaler> <dOpt...> [-p <paramFile> <pOpt...>]]
//	   (-c <calibrator> <cOpt...> [-p <paramFile> <pOpt...>])*
//	)+
//
// It returns a fully validated Pipeline or the first ConfigError
// encountered. The state machine mirrors Setup::Setup's states
// exactly: START, VAR, VAROPT, NEWVAR, DOWN, DOWNOPT, PARDOWN,
// PAROPTDOWN, CAL, CALOPT, NEWCAL, PARCAL, PAROPTCAL, END, ERROR.
func ParseArgv(argv []string) (*Pipeline, error) {
	index := 0
	inputFilename, outputFilename := "", ""
	inputOptions, outputOptions := NewOptions(), NewOptions()

	for index < len(argv) {
		arg := argv[index]
		switch {
		case inputFilename == "":
			inputFilename = arg
		case outputFilename == "":
			if HasChar(arg, '=') {
				inputOptions.AddToken(arg)
			} else {
				outputFilename = arg
			}
		default:
			if HasChar(arg, '=') {
				outputOptions.AddToken(arg)
			} else {
				goto doneFiles
			}
		}
		index++
	}
doneFiles:

	inputFiles, err := globFiles(inputFilename)
	if err != nil {
		return nil, err
	}
	outputFiles, err := globFiles(outputFilename)
	if err != nil {
		return nil, err
	}
	if len(inputFiles) != len(outputFiles) {
		return nil, &ConfigError{Msg: fmt.Sprintf("unequal number of input (%d) and output (%d) files", len(inputFiles), len(outputFiles))}
	}
	if len(inputFiles) == 0 {
		return nil, &ConfigError{Msg: "no valid input files"}
	}

	p := &Pipeline{
		InputFiles:    inputFiles,
		OutputFiles:   outputFiles,
		InputOptions:  inputOptions,
		OutputOptions: outputOptions,
	}

	state := stateStart
	errorMessage := ""

	variable := ""
	vOptions, dOptions, cOptions, pOptions := NewOptions(), NewOptions(), NewOptions(), NewOptions()
	downscaler := DefaultDownscaler
	calibrator := ""
	parameterFile := ""

	var downscalerParamFile string
	var downscalerParamOpts *Options
	var calibratorSteps []CalibratorStep
	var pendingCalibratorName string

	resetVariable := func() {
		vOptions.Clear()
		downscaler = DefaultDownscaler
		downscalerParamFile = ""
		downscalerParamOpts = nil
		dOptions.Clear()
		calibratorSteps = nil
	}

	seen := make(map[string]bool)

	for {
		switch state {
		case stateStart:
			if index < len(argv) && argv[index] == "-v" {
				state = stateVar
				index++
			} else {
				errorMessage = "no variables defined"
				state = stateError
			}

		case stateVar:
			if index >= len(argv) {
				errorMessage = "no variable after '-v'"
				state = stateError
				continue
			}
			variable = argv[index]
			index++
			switch {
			case index >= len(argv), argv[index] == "-v":
				state = stateNewVar
			case argv[index] == "-d":
				state = stateDown
				index++
			case argv[index] == "-c":
				state = stateCal
				index++
			case argv[index] == "-p":
				errorMessage = "-p must be after a -d or -c"
				state = stateError
			default:
				state = stateVarOpt
			}

		case stateVarOpt:
			switch {
			case index >= len(argv):
				state = stateNewVar
			case argv[index] == "-d":
				state = stateDown
				index++
			case argv[index] == "-c":
				state = stateCal
				index++
			case argv[index] == "-v":
				state = stateNewVar
			case argv[index] == "-p":
				errorMessage = "-p must be after a -d or -c"
				state = stateError
			default:
				vOptions.AddToken(argv[index])
				index++
			}

		case stateNewVar:
			if seen[variable] {
				// first configuration for a variable wins; later
				// repeats are discarded with a warning on stderr
				fmt.Fprintln(os.Stderr, &Warning{Msg: fmt.Sprintf("variable '%s' is already configured; ignoring the repeated -v block", variable)})
			} else {
				seen[variable] = true
				dOptions.Add("variable", variable)
				d, derr := NewDownscaler(downscaler, variable, dOptions.Clone())
				if derr != nil {
					return nil, derr
				}
				var dParams *ParameterStore
				if downscalerParamFile != "" {
					dParams, err = ParameterFileLoader(downscalerParamFile, downscalerParamOpts)
					if err != nil {
						return nil, &ConfigError{Msg: fmt.Sprintf("could not open parameter file: %v", err)}
					}
				}
				p.VariableConfigurations = append(p.VariableConfigurations, VariableConfiguration{
					Variable:         variable,
					Downscaler:       d,
					DownscalerParams: dParams,
					Calibrators:      calibratorSteps,
					Options:          vOptions.Clone(),
				})
			}
			resetVariable()
			if index >= len(argv) {
				state = stateEnd
			} else {
				state = stateVar
				index++
			}

		case stateDown:
			if index >= len(argv) {
				errorMessage = "no downscaler after '-d'"
				state = stateError
				continue
			}
			downscaler = argv[index]
			index++
			switch {
			case index >= len(argv):
				state = stateNewVar
			case argv[index] == "-c":
				state = stateCal
				index++
			case argv[index] == "-v":
				state = stateNewVar
			case argv[index] == "-d":
				state = stateDown
				index++
			case argv[index] == "-p":
				state = stateParDown
				index++
			default:
				state = stateDownOpt
			}

		case stateDownOpt:
			switch {
			case index >= len(argv):
				state = stateNewVar
			case argv[index] == "-c":
				state = stateCal
				index++
			case argv[index] == "-v":
				state = stateNewVar
			case argv[index] == "-p":
				state = stateParDown
				index++
			default:
				dOptions.AddToken(argv[index])
				index++
			}

		case stateParDown:
			if index >= len(argv) {
				errorMessage = "no parameter file after '-p'"
				state = stateError
				continue
			}
			downscalerParamFile = argv[index]
			index++
			switch {
			case index >= len(argv):
				downscalerParamOpts = NewOptions()
				state = stateNewVar
			case argv[index] == "-c":
				downscalerParamOpts = NewOptions()
				state = stateCal
				index++
			case argv[index] == "-v":
				downscalerParamOpts = NewOptions()
				state = stateNewVar
			case argv[index] == "-d":
				downscalerParamOpts = NewOptions()
				state = stateDown
				index++
			case argv[index] == "-p":
				errorMessage = "two or more -p used for one downscaler"
				state = stateError
			default:
				state = stateParOptDown
			}

		case stateParOptDown:
			switch {
			case index >= len(argv):
				downscalerParamOpts = pOptions.Clone()
				pOptions.Clear()
				state = stateNewVar
			case argv[index] == "-c":
				downscalerParamOpts = pOptions.Clone()
				pOptions.Clear()
				state = stateCal
				index++
			case argv[index] == "-v":
				downscalerParamOpts = pOptions.Clone()
				pOptions.Clear()
				state = stateNewVar
			case argv[index] == "-p":
				errorMessage = "two or more -p used for one downscaler"
				state = stateError
			default:
				pOptions.AddToken(argv[index])
				index++
			}

		case stateCal:
			if index >= len(argv) {
				errorMessage = "no calibrator after '-c'"
				state = stateError
				continue
			}
			calibrator = argv[index]
			index++
			switch {
			case index >= len(argv):
				state = stateNewCal
			case argv[index] == "-v":
				state = stateNewCal
			case argv[index] == "-c":
				state = stateNewCal
			case argv[index] == "-d":
				state = stateNewCal
			case argv[index] == "-p":
				state = stateParCal
				index++
			default:
				state = stateCalOpt
			}
			pendingCalibratorName = calibrator
			parameterFile = ""
			cOptions.Clear()
			pOptions.Clear()

		case stateCalOpt:
			switch {
			case index >= len(argv):
				state = stateNewCal
			case argv[index] == "-c":
				state = stateNewCal
			case argv[index] == "-v":
				state = stateNewCal
			case argv[index] == "-d":
				state = stateNewCal
			case argv[index] == "-p":
				state = stateParCal
				index++
			default:
				cOptions.AddToken(argv[index])
				index++
			}

		case stateParCal:
			if index >= len(argv) {
				errorMessage = "no parameter file after '-p'"
				state = stateError
				continue
			}
			parameterFile = argv[index]
			index++
			switch {
			case index >= len(argv):
				state = stateNewCal
			case argv[index] == "-v":
				state = stateNewCal
			case argv[index] == "-c":
				state = stateNewCal
			case argv[index] == "-d":
				state = stateNewCal
			case argv[index] == "-p":
				errorMessage = "two or more -p used for one calibrator"
				state = stateError
			default:
				state = stateParOptCal
			}

		case stateParOptCal:
			switch {
			case index >= len(argv):
				state = stateNewCal
			case argv[index] == "-c":
				state = stateNewCal
			case argv[index] == "-v":
				state = stateNewCal
			case argv[index] == "-d":
				state = stateNewCal
			case argv[index] == "-p":
				errorMessage = "two or more -p used for one calibrator"
				state = stateError
			default:
				pOptions.AddToken(argv[index])
				index++
			}

		case stateNewCal:
			cOptions.Add("variable", variable)
			c, cerr := NewCalibrator(pendingCalibratorName, variable, cOptions.Clone())
			if cerr != nil {
				return nil, cerr
			}
			step := CalibratorStep{Calibrator: c}
			if parameterFile != "" {
				params, perr := ParameterFileLoader(parameterFile, pOptions.Clone())
				if perr != nil {
					return nil, &ConfigError{Msg: fmt.Sprintf("could not open parameter file: %v", perr)}
				}
				step.Params = params
			}
			calibratorSteps = append(calibratorSteps, step)

			calibrator = ""
			parameterFile = ""
			cOptions.Clear()
			pOptions.Clear()

			switch {
			case index >= len(argv):
				state = stateNewVar
			case argv[index] == "-c":
				state = stateCal
				index++
			case argv[index] == "-v":
				state = stateNewVar
			case argv[index] == "-d":
				state = stateDown
				index++
			default:
				errorMessage = "no recognized option after '-c calibrator'"
				state = stateError
			}

		case stateEnd:
			return p, nil

		case stateError:
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid command line arguments: %s", errorMessage)}
		}
	}
}

// globFiles expands a glob pattern into a sorted file list, so that
// argv ordering is always reproducible regardless of filesystem
// iteration order.
func globFiles(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid glob pattern '%s': %v", pattern, err)}
	}
	sort.Strings(matches)
	return matches, nil
}
