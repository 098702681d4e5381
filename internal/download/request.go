package download

import (
	"errors"
	"fmt"
)

// DefaultOutputTemplate writes one file per URL under ./downloads, named by
// the engine's media id and extension.
const DefaultOutputTemplate = "./downloads/%(id)s.%(ext)s"

// ErrUsage reports a command line without any URL.
var ErrUsage = errors.New("at least one url is required")

// Request is a parsed command line.
type Request struct {
	Resolution string   // maximum height; empty means no ceiling
	URLs       []string // in the order given
}

// ParseArgs accepts "<resolution> <url>..." or "<url>...".
// A leading all-digit token is a resolution. Only the argument count is
// checked; URLs are forwarded verbatim.
func ParseArgs(args []string) (Request, error) {
	var req Request
	if len(args) > 0 && isDigits(args[0]) {
		req.Resolution = args[0]
		args = args[1:]
	}
	if len(args) == 0 {
		return Request{}, ErrUsage
	}
	req.URLs = append([]string(nil), args...)
	return req, nil
}

// Usage returns the one-line usage message for program.
func Usage(program string) string {
	return fmt.Sprintf("Usage: %s <resolution: 240|360|480|720|1080> <url(s)>", program)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
