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


package core

import "errors"

// Domain validation errors
var (
	// ErrMalformedIdentifier indicates an identifier that cannot be
	// expressed under either numbering scheme. It signals a resolver
	// bug or corrupt input and is never retried.
	ErrMalformedIdentifier = errors.New("malformed document identifier")

	// ErrUnknownDocType indicates a document type code outside the
	// recognized registry.
	ErrUnknownDocType = errors.New("unknown document type")

	// ErrUnknownMonarch indicates a monarch/era code with no entry in
	// the regnal calendar. Rejected at resolution time, never skipped.
	ErrUnknownMonarch = errors.New("unknown monarch code")

	// ErrInvalidYear indicates a year outside the source's coverage.
	ErrInvalidYear = errors.New("invalid year")

	// ErrInvalidNumber indicates a non-positive sequence number.
	ErrInvalidNumber = errors.New("invalid sequence number")

	// ErrInvalidRecord indicates a ParsedDocument failed validation.
	ErrInvalidRecord = errors.New("invalid parsed document")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")
)
