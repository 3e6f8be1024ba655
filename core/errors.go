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

import "errors"

// Domain validation errors
var (
	// ErrInvalidAttributeVector indicates an AttributeVector failed validation.
	ErrInvalidAttributeVector = errors.New("invalid attribute vector")

	// ErrInvalidCriteria indicates search criteria failed validation.
	ErrInvalidCriteria = errors.New("invalid search criteria")

	// ErrEmptyCriteria indicates the criteria mapping has no entries.
	ErrEmptyCriteria = errors.New("criteria cannot be empty")

	// ErrEmptySubjectID indicates the subject identifier is empty.
	ErrEmptySubjectID = errors.New("subject id cannot be empty")

	// ErrEmptyAttributeName indicates the attribute name is empty.
	ErrEmptyAttributeName = errors.New("attribute name cannot be empty")

	// ErrReservedAttribute indicates use of the reserved "all" attribute name
	// where a concrete attribute is required.
	ErrReservedAttribute = errors.New("attribute name is reserved")

	// ErrInvalidName indicates an identifier contains a NUL byte.
	ErrInvalidName = errors.New("name contains NUL byte")

	// ErrEmptyVector indicates the embedding vector has no components.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be greater than 0")
)
