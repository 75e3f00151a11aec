// Package ingestion loads bars from CSV files and live websocket feeds.
package ingestion

import "errors"

var (
	// ErrInvalidCSV is returned for malformed bar files. The message names
	// the offending line.
	ErrInvalidCSV = errors.New("invalid bar csv")

	// ErrFeedUnavailable is returned when the feed cannot be reached after
	// the configured number of reconnect attempts.
	ErrFeedUnavailable = errors.New("bar feed unavailable")
)
