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


// Package bulkimport embeds and stores many profiles as one tracked job.
//
// Profiles are processed in batches. Each batch is embedded concurrently by
// an ingestion.Generator, retried with exponential backoff while the provider
// is unavailable, and then written with a single UpsertMany from the
// coordinating goroutine. Job progress is published to StatusTracker
// implementations: ProgressTracker for terminals, MemoryStatus for polling.
package bulkimport
