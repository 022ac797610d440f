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

import "math"

// downscalerBase is embedded by every concrete downscaler and
// implements the Downscale precondition check shared by all of them:
// source and target must have equal time counts.
type downscalerBase struct {
	variable string
	opts     *Options
}

func (d *downscalerBase) checkTimes(source, target GriddedFile) bool {
	return source.NumTime() == target.NumTime()
}

// indexMapFor resolves the NN index map for downscaling from source
// to target, consulting cache and taking the identity short-circuit
// when the grids are element-equal (spec invariant 4).
func indexMapFor(source, target GriddedFile, cache *NeighbourCache) *IndexMap {
	if gridsEqual(source.Lats(), target.Lats()) && gridsEqual(source.Lons(), target.Lons()) {
		return IdentityIndexMap(target.Lats())
	}
	return cache.GetNearestNeighbour(source, target)
}

// copyByIndexMap writes target's field for variable at each time step
// by copying the source cell the index map points to, propagating MV
// whenever the source cell is missing.
func copyByIndexMap(source, target GriddedFile, variable string, im *IndexMap) error {
	for t := 0; t < target.NumTime(); t++ {
		src, err := source.GetField(variable, t)
		if err != nil {
			return &ExternalError{Msg: "reading source field", Err: err}
		}
		out := NewField(target.NumLat(), target.NumLon(), src.NEns)
		for i := 0; i < target.NumLat(); i++ {
			for j := 0; j < target.NumLon(); j++ {
				si, sj := im.I[i][j], im.J[i][j]
				if si == int(MV) || sj == int(MV) {
					continue
				}
				for e := 0; e < src.NEns; e++ {
					out.Set(i, j, e, src.At(si, sj, e))
				}
			}
		}
		if err := target.AddField(variable, t, out); err != nil {
			return &ExternalError{Msg: "writing target field", Err: err}
		}
	}
	return nil
}

// --- nearestNeighbour ---

type nearestNeighbourDownscaler struct{ downscalerBase }

func newNearestNeighbourDownscaler(variable string, opts *Options) (Downscaler, error) {
	return &nearestNeighbourDownscaler{downscalerBase{variable: variable, opts: opts}}, nil
}

func (d *nearestNeighbourDownscaler) Name() string        { return "nearestNeighbour" }
func (d *nearestNeighbourDownscaler) Description() string { return "Uses the nearest neighbour to downscale a field." }
func (d *nearestNeighbourDownscaler) RequiresParameterFile() bool { return false }

func (d *nearestNeighbourDownscaler) Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error) {
	if !d.checkTimes(source, target) {
		return false, nil
	}
	im := indexMapFor(source, target, cache)
	if err := copyByIndexMap(source, target, d.variable, im); err != nil {
		return false, err
	}
	return true, nil
}

// --- bypass ---

// bypassDownscaler requires identical grids: if the grids are not
// element-equal it returns a DataError rather than silently
// resampling; otherwise it copies through the identity index map.
type bypassDownscaler struct{ downscalerBase }

func newBypassDownscaler(variable string, opts *Options) (Downscaler, error) {
	return &bypassDownscaler{downscalerBase{variable: variable, opts: opts}}, nil
}

func (d *bypassDownscaler) Name() string        { return "bypass" }
func (d *bypassDownscaler) Description() string { return "Copies a field directly, requiring identical grids." }
func (d *bypassDownscaler) RequiresParameterFile() bool { return false }

func (d *bypassDownscaler) Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error) {
	if !d.checkTimes(source, target) {
		return false, nil
	}
	if !gridsEqual(source.Lats(), target.Lats()) || !gridsEqual(source.Lons(), target.Lons()) {
		return false, &DataError{Msg: "bypass downscaler requires identical source and target grids"}
	}
	im := IdentityIndexMap(target.Lats())
	if err := copyByIndexMap(source, target, d.variable, im); err != nil {
		return false, err
	}
	return true, nil
}

// --- gradient ---

// gradientDownscaler adjusts the nearest-neighbour value by a fixed
// lapse rate applied to the elevation difference between source and
// target. It is pure with respect to (sourceField, targetGrid): no
// hidden state carries between calls.
type gradientDownscaler struct {
	downscalerBase
	lapseRate float64 // degrees per meter (or per-unit for other variables); default a standard atmospheric lapse rate
}

func newGradientDownscaler(variable string, opts *Options) (Downscaler, error) {
	lapse := -0.0065
	if v, ok := opts.GetFloat("lapseRate"); ok {
		lapse = v
	}
	return &gradientDownscaler{downscalerBase{variable: variable, opts: opts}, lapse}, nil
}

func (d *gradientDownscaler) Name() string        { return "gradient" }
func (d *gradientDownscaler) Description() string {
	return "Adjusts the nearest-neighbour value by a fixed lapse rate times the elevation difference."
}
func (d *gradientDownscaler) RequiresParameterFile() bool { return false }

func (d *gradientDownscaler) Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error) {
	if !d.checkTimes(source, target) {
		return false, nil
	}
	if source.Elevs() == nil || target.Elevs() == nil {
		return false, &DataError{Msg: "gradient downscaler requires elevation on both source and target grids"}
	}
	im := indexMapFor(source, target, cache)
	srcElev, tgtElev := source.Elevs(), target.Elevs()
	for t := 0; t < target.NumTime(); t++ {
		src, err := source.GetField(d.variable, t)
		if err != nil {
			return false, &ExternalError{Msg: "reading source field", Err: err}
		}
		out := NewField(target.NumLat(), target.NumLon(), src.NEns)
		for i := 0; i < target.NumLat(); i++ {
			for j := 0; j < target.NumLon(); j++ {
				si, sj := im.I[i][j], im.J[i][j]
				if si == int(MV) || sj == int(MV) {
					continue
				}
				dElev := tgtElev[i][j] - srcElev[si][sj]
				for e := 0; e < src.NEns; e++ {
					v := src.At(si, sj, e)
					if IsMissing(v) {
						continue
					}
					out.Set(i, j, e, v+float32(d.lapseRate*dElev))
				}
			}
		}
		if err := target.AddField(d.variable, t, out); err != nil {
			return false, &ExternalError{Msg: "writing target field", Err: err}
		}
	}
	return true, nil
}

// --- smart ---

// smartDownscaler restricts the elevation-aware candidate search to
// source cells within searchRadius grid-index cells of the
// nearest-neighbour cell (a simplified stand-in for the "SMART"
// neighbour-search contract, which is out of core scope beyond this
// shape: consume the same NN index map, additionally read elevation).
type smartDownscaler struct {
	downscalerBase
	searchRadius int
	minElevDiff  float64
}

func newSmartDownscaler(variable string, opts *Options) (Downscaler, error) {
	d := &smartDownscaler{downscalerBase: downscalerBase{variable: variable, opts: opts}, searchRadius: 1}
	if v, ok := opts.GetInt("searchRadius"); ok {
		d.searchRadius = v
	}
	if v, ok := opts.GetFloat("minElevDiff"); ok {
		d.minElevDiff = v
	}
	return d, nil
}

func (d *smartDownscaler) Name() string        { return "smart" }
func (d *smartDownscaler) Description() string {
	return "Picks the best-elevation-matched source cell within a search radius of the nearest neighbour."
}
func (d *smartDownscaler) RequiresParameterFile() bool { return false }

func (d *smartDownscaler) Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error) {
	if !d.checkTimes(source, target) {
		return false, nil
	}
	if source.Elevs() == nil || target.Elevs() == nil {
		return false, &DataError{Msg: "smart downscaler requires elevation on both source and target grids"}
	}
	im := indexMapFor(source, target, cache)
	srcElev, tgtElev := source.Elevs(), target.Elevs()
	nLat, nLon := source.NumLat(), source.NumLon()
	for t := 0; t < target.NumTime(); t++ {
		src, err := source.GetField(d.variable, t)
		if err != nil {
			return false, &ExternalError{Msg: "reading source field", Err: err}
		}
		out := NewField(target.NumLat(), target.NumLon(), src.NEns)
		for i := 0; i < target.NumLat(); i++ {
			for j := 0; j < target.NumLon(); j++ {
				si, sj := im.I[i][j], im.J[i][j]
				if si == int(MV) || sj == int(MV) {
					continue
				}
				bi, bj := si, sj
				bestDiff := elevDiff(srcElev, si, sj, tgtElev[i][j])
				for di := -d.searchRadius; di <= d.searchRadius; di++ {
					for dj := -d.searchRadius; dj <= d.searchRadius; dj++ {
						ci, cj := si+di, sj+dj
						if ci < 0 || ci >= nLat || cj < 0 || cj >= nLon {
							continue
						}
						diff := elevDiff(srcElev, ci, cj, tgtElev[i][j])
						if diff < bestDiff {
							bestDiff, bi, bj = diff, ci, cj
						}
					}
				}
				for e := 0; e < src.NEns; e++ {
					out.Set(i, j, e, src.At(bi, bj, e))
				}
			}
		}
		if err := target.AddField(d.variable, t, out); err != nil {
			return false, &ExternalError{Msg: "writing target field", Err: err}
		}
	}
	return true, nil
}

func elevDiff(elev [][]float64, i, j int, target float64) float64 {
	d := elev[i][j] - target
	if d < 0 {
		return -d
	}
	return d
}

// --- pressure ---

// pressureDownscaler adjusts the nearest-neighbour value using the
// barometric formula for the elevation difference; intended for
// pressure-like variables. Out of core scope beyond this contract
// shape.
type pressureDownscaler struct{ downscalerBase }

func newPressureDownscaler(variable string, opts *Options) (Downscaler, error) {
	return &pressureDownscaler{downscalerBase{variable: variable, opts: opts}}, nil
}

func (d *pressureDownscaler) Name() string        { return "pressure" }
func (d *pressureDownscaler) Description() string {
	return "Adjusts the nearest-neighbour value for elevation using the barometric formula."
}
func (d *pressureDownscaler) RequiresParameterFile() bool { return false }

const pressureScaleHeight = 8434.5 // meters

func (d *pressureDownscaler) Downscale(source, target GriddedFile, cache *NeighbourCache) (bool, error) {
	if !d.checkTimes(source, target) {
		return false, nil
	}
	if source.Elevs() == nil || target.Elevs() == nil {
		return false, &DataError{Msg: "pressure downscaler requires elevation on both source and target grids"}
	}
	im := indexMapFor(source, target, cache)
	srcElev, tgtElev := source.Elevs(), target.Elevs()
	for t := 0; t < target.NumTime(); t++ {
		src, err := source.GetField(d.variable, t)
		if err != nil {
			return false, &ExternalError{Msg: "reading source field", Err: err}
		}
		out := NewField(target.NumLat(), target.NumLon(), src.NEns)
		for i := 0; i < target.NumLat(); i++ {
			for j := 0; j < target.NumLon(); j++ {
				si, sj := im.I[i][j], im.J[i][j]
				if si == int(MV) || sj == int(MV) {
					continue
				}
				dElev := tgtElev[i][j] - srcElev[si][sj]
				factor := math.Exp(-dElev / pressureScaleHeight)
				for e := 0; e < src.NEns; e++ {
					v := src.At(si, sj, e)
					if IsMissing(v) {
						continue
					}
					out.Set(i, j, e, v*float32(factor))
				}
			}
		}
		if err := target.AddField(d.variable, t, out); err != nil {
			return false, &ExternalError{Msg: "writing target field", Err: err}
		}
	}
	return true, nil
}
