package querycache

import "errors"

var (
	// ErrNilFetcher is returned when Get or Prefetch is called without a fetcher.
	ErrNilFetcher = errors.New("querycache: nil fetcher")

	// ErrFetcherPanic wraps a panic recovered from a fetcher. The panic value
	// is formatted into the error message.
	ErrFetcherPanic = errors.New("querycache: fetcher panicked")

	// ErrTypeMismatch indicates the value cached under a key is not of the
	// type requested through Fetch.
	//
	// API Mapping:
	//   - HTTP: 500 Internal Server Error
	ErrTypeMismatch = errors.New("querycache: cached value has unexpected type")
)
