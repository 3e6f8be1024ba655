// Package presence supplies eligibility filters for matching.
//
// Tracker follows which subjects are online right now; Roster is a static
// allow-list. Both implement core.EligibilityFilter and can be combined
// with core.AllOf before being handed to the matcher.
package presence
