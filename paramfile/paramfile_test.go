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
	"os"
	"path/filepath"
	"testing"

	"github.com/metno/ppgrid"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTextLoadsLocationLeadTimeSamples(t *testing.T) {
	path := writeTemp(t, "params.txt", "# comment\n\n1.0 2.0 100 0 0.5 1.2\n1.0 2.0 100 1 0.6 1.1\n")

	store, err := Text(path, ppgrid.NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !store.IsTimeDependent() {
		t.Error("a file with samples at lead-time 0 and 1 should mark the store time-dependent")
	}
	p, err := store.GetAt(1, ppgrid.Location{Lat: 1.0, Lon: 2.0}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 2 || p[0] != 0.6 || p[1] != 1.1 {
		t.Errorf("GetAt(1, ...) = %v, want [0.6 1.1]", p)
	}
}

func TestTextRejectsTooFewFields(t *testing.T) {
	path := writeTemp(t, "bad.txt", "1.0 2.0 100\n")
	if _, err := Text(path, ppgrid.NewOptions()); err == nil {
		t.Fatal("expected a DataError for a line with too few fields")
	} else if _, ok := err.(*ppgrid.DataError); !ok {
		t.Errorf("got %T, want *ppgrid.DataError", err)
	}
}

func TestTextReportsMissingFile(t *testing.T) {
	_, err := Text(filepath.Join(t.TempDir(), "missing.txt"), ppgrid.NewOptions())
	if _, ok := err.(*ppgrid.ExternalError); !ok {
		t.Errorf("got %T (%v), want *ppgrid.ExternalError", err, err)
	}
}

func TestKalmanSkipsLeadingBiasColumn(t *testing.T) {
	path := writeTemp(t, "state.kalman", "0.1 1.0 2.0 100 0 0.5\n")
	store, err := Kalman(path, ppgrid.NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.GetAt(0, ppgrid.Location{Lat: 1.0, Lon: 2.0}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 1 || p[0] != 0.5 {
		t.Errorf("GetAt(0, ...) = %v, want [0.5]", p)
	}
}

func TestDispatchPicksLoaderByExtension(t *testing.T) {
	textPath := writeTemp(t, "a.txt", "1.0 2.0 100 0 1\n")
	if _, err := Dispatch(textPath, ppgrid.NewOptions()); err != nil {
		t.Errorf("Dispatch(.txt) = %v", err)
	}

	kalmanPath := writeTemp(t, "a.kalman", "0.0 1.0 2.0 100 0 1\n")
	if _, err := Dispatch(kalmanPath, ppgrid.NewOptions()); err != nil {
		t.Errorf("Dispatch(.kalman) = %v", err)
	}
}
