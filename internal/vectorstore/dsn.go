package vectorstore

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// parseDSN parses a Qdrant DSN of the form
// "http://host:6334?api_key=..." or "https://host:6334?api_key=...".
func parseDSN(dsn string) (host string, port int, useTLS bool, apiKey string, err error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", 0, false, "", fmt.Errorf("parse qdrant dsn: %w", err)
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	if host == "" {
		return "", 0, false, "", fmt.Errorf("parse qdrant dsn: missing host in %q", dsn)
	}
	portStr := u.Port()
	if portStr == "" {
		port = 6334
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, "", fmt.Errorf("parse qdrant dsn: bad port %q", portStr)
		}
	}
	apiKey = strings.TrimSpace(u.Query().Get("api_key"))
	return host, port, useTLS, apiKey, nil
}

func encodeBase64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeBase64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
