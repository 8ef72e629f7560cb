package llm

import (
	"regexp"
	"strconv"
)

var statusCodeRe = regexp.MustCompile(`\b([1-5][0-9]{2})\b`)

// StatusCodeOf best-effort extracts an HTTP status code from a provider
// error. The three provider SDKs each surface their own error type, but all
// render the status code into the error text; the first three-digit number
// from 400 to 599 found there is taken as the status.
func StatusCodeOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	for _, m := range statusCodeRe.FindAllString(err.Error(), -1) {
		n, convErr := strconv.Atoi(m)
		if convErr == nil && n >= 400 && n <= 599 {
			return n, true
		}
	}
	return 0, false
}

// IsRetryable reports whether err looks like a transient provider failure
// (HTTP 5xx or 429) worth one retry, per spec §4.9.
func IsRetryable(err error) bool {
	code, ok := StatusCodeOf(err)
	return ok && (code == 429 || code >= 500)
}

// IsRateLimited reports whether err looks like an HTTP 429 response.
func IsRateLimited(err error) bool {
	code, ok := StatusCodeOf(err)
	return ok && code == 429
}
