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


package parse

import "fmt"

// StructuralParseError indicates content that could not be understood
// as a structured document. It is permanent for the identifier: the
// same bytes will fail the same way on every attempt.
type StructuralParseError struct {
	Ident  string
	Detail string
	Err    error // underlying decoder error, may be nil
}

func (e *StructuralParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural parse failure for %s: %s: %v", e.Ident, e.Detail, e.Err)
	}
	return fmt.Sprintf("structural parse failure for %s: %s", e.Ident, e.Detail)
}

func (e *StructuralParseError) Unwrap() error { return e.Err }
