// Copyright 2025 Poiesic Systems
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

import (
	"fmt"
	"strings"
)

// ValidateName validates a subject id or attribute name.
//
// Validation rules:
//   - must not be empty
//   - must not contain a NUL byte (used as a key separator)
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyAttributeName
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateSubjectID validates a subject identifier.
func ValidateSubjectID(subjectID string) error {
	if subjectID == "" {
		return ErrEmptySubjectID
	}
	if strings.ContainsRune(subjectID, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, subjectID)
	}
	return nil
}

// ValidateAttributeName validates a name that will be stored.
// The reserved "all" name is rejected.
func ValidateAttributeName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == AllAttributes {
		return fmt.Errorf("%w: %q", ErrReservedAttribute, name)
	}
	return nil
}

// ValidateAttributeVector validates an AttributeVector according to domain rules.
//
// Validation rules:
//   - SubjectID must be a valid subject id
//   - AttributeName must be a valid, non-reserved attribute name
//   - Vector must not be empty
//
// NOT validated:
//   - timestamps (set by the store)
func ValidateAttributeVector(vector *AttributeVector) error {
	if vector == nil {
		return fmt.Errorf("%w: vector is nil", ErrInvalidAttributeVector)
	}
	if err := ValidateSubjectID(vector.SubjectID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAttributeVector, err)
	}
	if err := ValidateAttributeName(vector.AttributeName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAttributeVector, err)
	}
	if len(vector.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidAttributeVector, ErrEmptyVector)
	}
	return nil
}

// ValidateCriteria validates a criteria mapping before any work is done.
// Values may be blank; blank fields are skipped during embedding.
func ValidateCriteria(criteria SearchCriteria) error {
	if len(criteria) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCriteria, ErrEmptyCriteria)
	}
	for name := range criteria {
		if err := ValidateAttributeName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
		}
	}
	return nil
}
