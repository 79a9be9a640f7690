package util

import "net/url"

// RedactURL strips credentials, query and fragment from raw so that
// pre-signed or token-bearing URLs can be logged. Unparseable input is
// returned as "<invalid url>".
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
