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


// Package storage provides the vector storage abstraction for mentormatch.
//
// VectorRepository decouples the matching engine from the concrete store.
// Two backends are provided:
//
//   - storage/badger: embedded key-value store, brute-force cosine scan
//   - storage/sqlite: SQLite with the sqlite-vec extension for distance ordering
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.VectorRepository interface:
//
//	repo, err := badger.NewVectorRepository(backend)
//
// Internal constructors may return concrete types.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Consistency
//
// Upserts to different (subject, attribute) keys are independent. A k-NN
// query running concurrently with an upsert of the same key may observe
// the previous vector.
package storage
