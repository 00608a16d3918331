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

import "fmt"

// ValidateDocType validates that a document type code is recognized.
func ValidateDocType(t DocType) error {
	if _, ok := knownDocTypes[t]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDocType, t)
	}
	return nil
}

// ValidateIdentifier validates a DocumentIdentifier according to the
// numbering scheme it carries.
//
// Validation rules:
//   - Type must be a recognized document type code
//   - Number must be positive
//   - Calendar scheme: Year must be >= ReformYear
//   - Regnal scheme: Monarch and RegnalYear must be non-empty
//
// The monarch code itself is validated against the regnal calendar by
// the resolver, which owns that table.
func ValidateIdentifier(d DocumentIdentifier) error {
	if err := ValidateDocType(d.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdentifier, err)
	}

	if d.Number <= 0 {
		return fmt.Errorf("%w: %w: %d", ErrMalformedIdentifier, ErrInvalidNumber, d.Number)
	}

	switch d.Scheme {
	case SchemeCalendar:
		if d.Year < ReformYear {
			return fmt.Errorf("%w: %w: calendar scheme requires year >= %d, got %d",
				ErrMalformedIdentifier, ErrInvalidYear, ReformYear, d.Year)
		}
	case SchemeRegnal:
		if d.Monarch == "" || d.RegnalYear == "" {
			return fmt.Errorf("%w: regnal scheme requires monarch and regnal year", ErrMalformedIdentifier)
		}
	default:
		return fmt.Errorf("%w: unknown scheme %d", ErrMalformedIdentifier, d.Scheme)
	}

	return nil
}

// ValidateParsedDocument validates a ParsedDocument according to domain rules.
//
// Validation rules:
//   - Identifier must be valid
//   - Title must not be empty
//   - Unit must be KindDocument or KindProvision
//
// NOT validated (populated later or legitimately absent):
//   - Vector (set during delivery when embedding is enabled)
//   - Text (empty provisions exist, e.g. repealed sections)
//   - EnactedOn, Extent, Status (optional metadata)
func ValidateParsedDocument(doc *ParsedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidRecord)
	}

	if err := ValidateIdentifier(doc.Ident); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if doc.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTitle)
	}

	if doc.Unit != KindDocument && doc.Unit != KindProvision {
		return fmt.Errorf("%w: unit kind %d", ErrInvalidRecord, doc.Unit)
	}

	return nil
}
