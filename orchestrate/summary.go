// Copyright 2025 Openlexica
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package orchestrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/openlexica/legisport/core"
)

// FailureDetail enumerates one permanently failed identifier for
// operator review.
type FailureDetail struct {
	Ident  string
	Reason string
}

// ComboSummary reports outcomes for one (type, year) combination.
type ComboSummary struct {
	Type core.DocType
	Year int

	// SkippedComplete is true when the combination was already
	// complete at startup and nothing was dispatched.
	SkippedComplete bool

	Candidates      int
	Skipped         int // seen in a previous run
	Done            int
	Fallback        int
	FailedRetryable int
	FailedPermanent int

	Inserted       int
	AlreadyPresent int

	// PermanentFailures lists this run's permanent failures; never
	// silently swallowed.
	PermanentFailures []FailureDetail
}

func (c *ComboSummary) record(outcome core.Outcome, ident, reason string) {
	switch outcome {
	case core.OutcomeDone:
		c.Done++
	case core.OutcomeFallback:
		c.Fallback++
	case core.OutcomeFailedRetryable:
		c.FailedRetryable++
	case core.OutcomeFailedPermanent:
		c.FailedPermanent++
		c.PermanentFailures = append(c.PermanentFailures, FailureDetail{Ident: ident, Reason: reason})
	}
}

// RunSummary aggregates one pipeline run across all requested
// combinations.
type RunSummary struct {
	Combos   []*ComboSummary
	Started  time.Time
	Finished time.Time
}

// String renders the operator-facing run report.
func (s *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run finished in %s\n", s.Finished.Sub(s.Started).Round(time.Second))

	for _, combo := range s.Combos {
		if combo.SkippedComplete {
			fmt.Fprintf(&b, "%s/%d: already complete, skipped\n", combo.Type, combo.Year)
			continue
		}
		fmt.Fprintf(&b, "%s/%d: %d candidates, %d done, %d fallback, %d retryable, %d permanent, %d skipped (%d inserted, %d already present)\n",
			combo.Type, combo.Year, combo.Candidates,
			combo.Done, combo.Fallback, combo.FailedRetryable, combo.FailedPermanent, combo.Skipped,
			combo.Inserted, combo.AlreadyPresent)
		for _, failure := range combo.PermanentFailures {
			fmt.Fprintf(&b, "  failed: %s: %s\n", failure.Ident, failure.Reason)
		}
	}
	return b.String()
}
