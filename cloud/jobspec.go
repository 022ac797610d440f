/*
Copyright © 2018 the InMAP authors.
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

package cloud

import "fmt"

// JobSpec describes one batch submission: the argv ppgrid's run
// subcommand should see inside the container, the memory request in
// gigabytes, and a caller-chosen name the job is tracked under.
type JobSpec struct {
	Name     string
	Args     []string
	MemoryGB int
}

// Validate reports whether js is complete enough to submit.
func (js *JobSpec) Validate() error {
	if js.Name == "" {
		return fmt.Errorf("cloud: job spec has no name")
	}
	if len(js.Args) < 2 {
		return fmt.Errorf("cloud: job spec args must at least name an input and output file")
	}
	if js.MemoryGB <= 0 {
		return fmt.Errorf("cloud: job spec memoryGB must be positive")
	}
	return nil
}
