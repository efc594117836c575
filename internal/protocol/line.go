// Package protocol implements the inbound line protocol: framing,
// prefix routing, key/value extraction, and base64/XML decoding.
// Grounded in shape on the teacher's ws.Envelope type-tagged message
// model, adapted from JSON envelopes to the newline-framed, prefix-
// tagged text protocol spec.md §4.D and §6 describe.
package protocol

import "strings"

// Splitter accumulates inbound bytes and extracts newline-terminated
// lines. Each extracted line is right-trimmed; empty lines are
// discarded by the caller (Feed returns them as-is so callers can log
// "connected" sentinels if they choose to).
type Splitter struct {
	buf strings.Builder
}

// Feed appends data to the rolling buffer and returns every complete
// line extracted from it (right-trimmed, in order). Incomplete trailing
// data is retained for the next call.
func (s *Splitter) Feed(data []byte) []string {
	s.buf.Write(data)
	whole := s.buf.String()
	parts := strings.Split(whole, "\n")
	// The last element is either "" (whole ended in \n) or a partial line.
	s.buf.Reset()
	s.buf.WriteString(parts[len(parts)-1])
	lines := parts[:len(parts)-1]
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r\n \t")
	}
	return lines
}
