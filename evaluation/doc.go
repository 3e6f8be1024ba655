// Package evaluation measures match quality against a labelled dataset.
//
// Each query names the mentor that should come back. A query passes when
// that mentor ranks within the top N (3 by default) of the returned matches.
package evaluation
