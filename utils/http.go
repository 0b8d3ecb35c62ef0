// utils/http.go
package utils

import (
	"io"
	"net/http"
	"time"
)

// UserAgent identifies the sync service to the sites it scrapes.
const UserAgent = "tcg-companion-sync/1.0 (+https://github.com/tcg-companion)"

// HTTPClient is shared by outbound fetchers. The upstream sites are slow but a hung
// connection must not stall a sync run forever.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// maxErrorBodySize bounds how much of a failed response is kept for error messages.
const maxErrorBodySize = 1024

// ReadErrorBody reads at most 1KB of a response body for error reporting.
func ReadErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}
