package services

import "fmt"

// ContentMissingError is raised when a fetched page has no main content
// region: the page is a template or interstitial, not a chapter. Fatal,
// since the package invariants require a file per manifest entry.
type ContentMissingError struct {
	Filename string
	Title    string
}

func (e *ContentMissingError) Error() string {
	return fmt.Sprintf("parser: book content's corrupted or not present: %s (%s)", e.Filename, e.Title)
}

// ParseError is raised when chapter markup cannot be parsed or serialized.
// Fatal: partial chapters are not acceptable.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: error parsing page %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AssetFetchError is a per-item failure inside the bounded-concurrency
// download. Reported and skipped; never aborts the run.
type AssetFetchError struct {
	URL string
	Err error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("assets: error retrieving %s: %v", e.URL, e.Err)
}

func (e *AssetFetchError) Unwrap() error { return e.Err }
