package protocol

import (
	"encoding/base64"
	"regexp"
)

// DecodeBase64 decodes the standard-encoding payload carried by
// STATUS=, CAPABILITY=, and SETTINGS= lines.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

var typeAttr = regexp.MustCompile(`type="([^"]*)"`)

// ExtractType pulls a bare type="..." attribute out of a render or
// physiology modification payload that isn't full XML, mirroring the
// original bridge's lightweight attribute scrape rather than a full
// parse.
func ExtractType(payload string) string {
	m := typeAttr.FindStringSubmatch(payload)
	if m == nil {
		return ""
	}
	return m[1]
}
