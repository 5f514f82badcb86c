// Package fetcher performs single rate-limited HTTP GETs and classifies the
// outcome as success, HTTP error or transport error.
//
// There is no retry: any non-success is terminal for that URL. Callers decide
// whether a failure is fatal (the page) or local (a resource).
package fetcher
