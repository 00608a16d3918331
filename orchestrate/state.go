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

// State tracks one identifier through its pipeline stages. Terminal
// states map onto checkpoint outcomes; intermediate states exist for
// logging and debugging only and are never persisted.
type State int

const (
	StatePending State = iota + 1
	StateFetching
	StateParsing
	StateUploading
	StateDone
	StateFallback
	StateFailedRetryable
	StateFailedPermanent
)

// String returns the state label used in logs.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateUploading:
		return "uploading"
	case StateDone:
		return "done"
	case StateFallback:
		return "fallback"
	case StateFailedRetryable:
		return "failed-retryable"
	case StateFailedPermanent:
		return "failed-permanent"
	default:
		return "unknown"
	}
}
