// Package match ranks subjects for a searcher.
//
// A Matcher runs one nearest-neighbor query per attribute (the searcher's
// stored attributes plus each embedded criteria field) and merges the
// resulting lists with a Borda-style Aggregator: each list adds a subject's
// 1-indexed rank to its score, and the lowest total wins.
//
// Partial failures are absorbed. FindMatches returns an error only for
// invalid input or a cancelled context.
package match
