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
	"strconv"
	"strings"
)

// Options is a free-form key=value option bag. Keys are case
// sensitive; if a key is added twice, the last value wins. Value
// typing (bool, int, float, string) is inferred lazily, at read time,
// never at parse time, so the same bag can be read as different types
// by different schemes. Options is copy-on-read: Clone returns an
// independent bag.
type Options struct {
	values map[string]string
	order  []string
}

// NewOptions returns an empty option bag.
func NewOptions() *Options {
	return &Options{values: make(map[string]string)}
}

// AddToken parses one "key=value" token and stores it, overwriting
// any previous value for the same key. The token is split on its
// first '='; a token with no '=' is ignored.
func (o *Options) AddToken(tok string) {
	idx := strings.IndexByte(tok, '=')
	if idx < 0 {
		return
	}
	o.Add(tok[:idx], tok[idx+1:])
}

// Add stores key=value directly, overwriting any previous value.
func (o *Options) Add(key, value string) {
	if _, exists := o.values[key]; !exists {
		o.order = append(o.order, key)
	}
	o.values[key] = value
}

// HasChar reports whether tok contains the byte ch; with ch '=' it
// tells whether tok looks like a key=value token.
func HasChar(tok string, ch byte) bool { return strings.IndexByte(tok, ch) >= 0 }

// GetString returns the string value for key.
func (o *Options) GetString(key string) (string, bool) {
	v, ok := o.values[key]
	return v, ok
}

// GetBool returns the bool value for key, parsed with strconv.ParseBool:
// "1", "t", "T", "true", "TRUE", "True" and their "0"/"f"/"false"
// counterparts; other spellings (e.g. "tRuE") report false, false.
func (o *Options) GetBool(key string) (bool, bool) {
	v, ok := o.values[key]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// GetInt returns the int value for key.
func (o *Options) GetInt(key string) (int, bool) {
	v, ok := o.values[key]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// GetFloat returns the float64 value for key.
func (o *Options) GetFloat(key string) (float64, bool) {
	v, ok := o.values[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Clear resets the bag to empty in place.
func (o *Options) Clear() {
	o.values = make(map[string]string)
	o.order = nil
}

// Clone returns an independent copy of o, so that handing an option
// bag to a scheme constructor never lets the scheme observe later
// mutations made by the pipeline builder.
func (o *Options) Clone() *Options {
	c := NewOptions()
	for _, k := range o.order {
		c.Add(k, o.values[k])
	}
	return c
}

// Keys returns the option keys in first-seen order.
func (o *Options) Keys() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Equal reports whether o and other hold the same key/value pairs
// (order-independent), used by pipeline-determinism tests.
func (o *Options) Equal(other *Options) bool {
	if len(o.values) != len(other.values) {
		return false
	}
	for k, v := range o.values {
		if other.values[k] != v {
			return false
		}
	}
	return true
}

func (o *Options) String() string {
	var b strings.Builder
	for i, k := range o.order {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(o.values[k])
	}
	return b.String()
}
