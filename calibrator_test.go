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

import "testing"

func TestShufflePreservesOriginalRank(t *testing.T) {
	before := []float32{3, 1, 2}
	after := []float32{20, 10, 30} // sorted: 10, 20, 30

	Shuffle(before, after)

	// before's rank order is member1(1) < member2(2) < member0(3), so
	// after sorted ascending (10,20,30) must land member1->10,
	// member2->20, member0->30.
	want := []float32{30, 10, 20}
	for i, w := range want {
		if after[i] != w {
			t.Errorf("after[%d] = %v, want %v", i, after[i], w)
		}
	}
}

func TestShuffleNoopOnSizeMismatch(t *testing.T) {
	before := []float32{1, 2}
	after := []float32{5, 6, 7}
	orig := append([]float32(nil), after...)
	Shuffle(before, after)
	for i := range orig {
		if after[i] != orig[i] {
			t.Errorf("Shuffle modified after despite size mismatch: %v", after)
		}
	}
}

func TestShuffleNoopOnMissingValue(t *testing.T) {
	before := []float32{1, MV, 3}
	after := []float32{5, 6, 7}
	orig := append([]float32(nil), after...)
	Shuffle(before, after)
	for i := range orig {
		if after[i] != orig[i] {
			t.Errorf("Shuffle modified after despite an MV in before: %v", after)
		}
	}

	before2 := []float32{1, 2, 3}
	after2 := []float32{5, MV, 7}
	orig2 := append([]float32(nil), after2...)
	Shuffle(before2, after2)
	for i := range orig2 {
		if after2[i] != orig2[i] {
			t.Errorf("Shuffle modified after despite an MV in after: %v", after2)
		}
	}
}

func TestQcCalibratorClampsRange(t *testing.T) {
	g := newFakeGrid(1, 3, 1, 1)
	g.setSeries("t2m", 1, func(i, j int) []float32 { return []float32{-5, 50, MV} })

	opts := NewOptions()
	opts.Add("min", "0")
	opts.Add("max", "40")
	c, err := newQcCalibrator("t2m", opts)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Calibrate(g, nil); !ok || err != nil {
		t.Fatalf("Calibrate: ok=%v err=%v", ok, err)
	}

	f, _ := g.GetField("t2m", 0)
	got := f.Members(0, 0)
	if got[0] != 0 {
		t.Errorf("member 0 = %v, want clamped to 0", got[0])
	}
	if got[1] != 40 {
		t.Errorf("member 1 = %v, want clamped to 40", got[1])
	}
	if !IsMissing(got[2]) {
		t.Errorf("member 2 = %v, want MV left untouched", got[2])
	}
}

func TestNeighbourhoodCalibratorAveragesNeighbours(t *testing.T) {
	g := newFakeGrid(1, 1, 3, 1)
	g.setSeries("v", 1, func(i, j int) []float32 { return []float32{float32(i * 10)} })

	opts := NewOptions()
	opts.Add("radius", "1")
	c, err := newNeighbourhoodCalibrator("v", opts)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Calibrate(g, nil); !ok || err != nil {
		t.Fatalf("Calibrate: ok=%v err=%v", ok, err)
	}

	f, _ := g.GetField("v", 0)
	// middle cell (i=1) averages rows 0,1,2 = (0+10+20)/3 = 10
	if got := f.At(1, 0, 0); got != 10 {
		t.Errorf("middle cell = %v, want 10", got)
	}
	// top cell (i=0) averages rows 0,1 only (no row -1) = (0+10)/2 = 5
	if got := f.At(0, 0, 0); got != 5 {
		t.Errorf("top cell = %v, want 5", got)
	}
}

func TestAccumulateCalibratorRunningSum(t *testing.T) {
	g := newFakeGrid(3, 1, 1, 1)
	vals := []float32{1, 2, 3}
	for t := 0; t < 3; t++ {
		f := NewField(1, 1, 1)
		f.Set(0, 0, 0, vals[t])
		g.AddField("p", t, f)
	}

	c, err := newAccumulateCalibrator("p", NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Calibrate(g, nil); !ok || err != nil {
		t.Fatalf("Calibrate: ok=%v err=%v", ok, err)
	}

	want := []float32{1, 3, 6}
	for step, w := range want {
		f, _ := g.GetField("p", step)
		if got := f.At(0, 0, 0); got != w {
			t.Errorf("t=%d accumulated = %v, want %v", step, got, w)
		}
	}
}

func TestSortCalibratorPreservesMemberIdentityByRank(t *testing.T) {
	g := newFakeGrid(1, 3, 1, 1)
	g.setSeries("v", 1, func(i, j int) []float32 { return []float32{30, 10, 20} })

	c, err := newSortCalibrator("v", NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Calibrate(g, nil); !ok || err != nil {
		t.Fatalf("Calibrate: ok=%v err=%v", ok, err)
	}

	f, _ := g.GetField("v", 0)
	got := f.Members(0, 0)
	// original ranks: member1(10) < member2(20) < member0(30); after
	// sorting ascending, that rank order must be preserved.
	want := []float32{30, 10, 20}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("member %d = %v, want %v", i, got[i], w)
		}
	}
}

func TestCalibratorRequiresParameterFile(t *testing.T) {
	c, err := newAffineCalibrator("zaga", true)("t2m", NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	g := newFakeGrid(1, 1, 1, 1)
	g.setSeries("t2m", 1, func(i, j int) []float32 { return []float32{1} })

	if _, err := c.Calibrate(g, nil); err == nil {
		t.Fatal("expected a ConfigError when a parameter-file-requiring calibrator is run without one")
	} else if _, ok := err.(*ConfigError); !ok {
		t.Errorf("got %T, want *ConfigError", err)
	}
}
