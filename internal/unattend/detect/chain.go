// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package detect

import "github.com/sirupsen/logrus"

// Outcome is what a single Detector reports for one attempt.
type Outcome int

const (
	NotMatched Outcome = iota
	PartiallyMatched
	Matched
)

// Detector inspects fs and narrows result. It must never broaden
// result.OSType once set by an earlier detector in the chain — the
// detector-monotonicity law of spec.md §8.
type Detector interface {
	Name() string
	Detect(fs FileSystem, result *Result) (Outcome, error)
}

// Chain runs detectors in order, stopping at the first Matched outcome.
// DefaultChain returns the canonical Windows→Linux→OS2→FreeBSD order from
// spec.md §4.3.
type Chain struct {
	Detectors []Detector
	Log       *logrus.Logger
}

// DefaultChain is the canonical detector chain.
func DefaultChain() Chain {
	return Chain{
		Detectors: []Detector{
			WindowsDetector{},
			LinuxDetector{},
			OS2Detector{},
			FreeBSDDetector{},
		},
		Log: logrus.StandardLogger(),
	}
}

// Run executes the chain over fs, returning the narrowed Result. A
// detector that returns an error is logged (when Log is set) and skipped,
// and the chain goes on with the next detector, so Run always returns a
// nil error; OSType stays OSUnknown when no detector matched.
func (c Chain) Run(fs FileSystem) (*Result, error) {
	result := NewResult()
	for _, d := range c.Detectors {
		before := result.OSType
		outcome, err := d.Detect(fs, result)
		if err != nil {
			if c.Log != nil {
				c.Log.WithError(err).WithField("detector", d.Name()).Warn("detector failed, continuing chain")
			}
			continue
		}
		if before != OSUnknown && before != "" && result.OSType != before {
			// Monotonicity guard: a detector must never overwrite an
			// OSType already set by an earlier one in the chain.
			result.OSType = before
		}
		if outcome == Matched {
			break
		}
	}
	return result, nil
}
