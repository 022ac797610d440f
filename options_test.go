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

func TestOptionsAddTokenLastWins(t *testing.T) {
	o := NewOptions()
	o.AddToken("radius=1")
	o.AddToken("radius=3")
	v, ok := o.GetInt("radius")
	if !ok || v != 3 {
		t.Errorf("GetInt(radius) = %d, %v; want 3, true", v, ok)
	}
}

func TestOptionsAddTokenIgnoresMissingEquals(t *testing.T) {
	o := NewOptions()
	o.AddToken("novalue")
	if len(o.Keys()) != 0 {
		t.Errorf("a token with no '=' should be ignored, got keys %v", o.Keys())
	}
}

func TestOptionsTyping(t *testing.T) {
	o := NewOptions()
	o.Add("s", "hello")
	o.Add("b", "true")
	o.Add("i", "42")
	o.Add("f", "3.5")

	if s, ok := o.GetString("s"); !ok || s != "hello" {
		t.Errorf("GetString(s) = %q, %v", s, ok)
	}
	if b, ok := o.GetBool("b"); !ok || !b {
		t.Errorf("GetBool(b) = %v, %v", b, ok)
	}
	if i, ok := o.GetInt("i"); !ok || i != 42 {
		t.Errorf("GetInt(i) = %d, %v", i, ok)
	}
	if f, ok := o.GetFloat("f"); !ok || f != 3.5 {
		t.Errorf("GetFloat(f) = %v, %v", f, ok)
	}
	if _, ok := o.GetInt("s"); ok {
		t.Error("GetInt on a non-numeric value should report ok=false")
	}
	if _, ok := o.GetInt("missing"); ok {
		t.Error("GetInt on a missing key should report ok=false")
	}
}

func TestOptionsCloneIsIndependent(t *testing.T) {
	o := NewOptions()
	o.Add("a", "1")
	c := o.Clone()
	o.Add("a", "2")
	o.Add("b", "3")

	if v, _ := c.GetString("a"); v != "1" {
		t.Errorf("clone observed a mutation made after Clone: a=%s", v)
	}
	if _, ok := c.GetString("b"); ok {
		t.Error("clone observed a key added after Clone")
	}
}

func TestOptionsEqual(t *testing.T) {
	a := NewOptions()
	a.Add("x", "1")
	a.Add("y", "2")
	b := NewOptions()
	b.Add("y", "2")
	b.Add("x", "1")

	if !a.Equal(b) {
		t.Error("bags with the same pairs in different insertion order should be Equal")
	}
	b.Add("z", "3")
	if a.Equal(b) {
		t.Error("bags with different key sets should not be Equal")
	}
}

func TestOptionsClear(t *testing.T) {
	o := NewOptions()
	o.Add("a", "1")
	o.Clear()
	if len(o.Keys()) != 0 {
		t.Errorf("Clear left keys %v", o.Keys())
	}
}
