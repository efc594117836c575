package protocol

import "strings"

// Kind tags the shape of a parsed inbound line.
type Kind int

const (
	KindUnknown Kind = iota
	KindKeepAlive
	KindModuleName
	KindRegister
	KindKick
	KindStatus
	KindCapability
	KindSettings
	KindKeepHistory
	KindRequestStatus
	KindRequestClients
	KindRequestLabs
	KindAct
	KindModification
)

// Line is a parsed inbound protocol line. Only the fields relevant to
// Kind are populated; the rest are zero values.
type Line struct {
	Kind Kind
	Raw  string

	// KindModuleName, KindRegister, KindKick, KindAct carry a single
	// string payload in Value. KindRequestLabs carries the requested
	// panel name in Value (defaulting to "ALL").
	Value string

	// KindRegister carries the optional learner name following the
	// registered client name's semicolon.
	RegisterLearner string

	// KindStatus, KindCapability, KindSettings carry a base64-encoded
	// XML or kvp blob in Base64.
	Base64 string

	// KindKeepHistory carries its boolean in Bool.
	Bool bool

	// KindModification carries the bracketed topic name and the
	// remaining key/value body.
	Topic string
	KVP   map[string]string
}

// Parse routes a single right-trimmed line to its Kind and extracts
// the fields that Kind implies. Lines it does not recognize come back
// as KindUnknown with Raw set.
func Parse(line string) Line {
	switch {
	case line == "[KEEPALIVE]":
		return Line{Kind: KindKeepAlive, Raw: line}

	case strings.HasPrefix(line, "MODULE_NAME="):
		return Line{Kind: KindModuleName, Raw: line, Value: strings.TrimPrefix(line, "MODULE_NAME=")}

	case strings.HasPrefix(line, "REGISTER="):
		name, learner, _ := strings.Cut(strings.TrimPrefix(line, "REGISTER="), ";")
		return Line{Kind: KindRegister, Raw: line, Value: name, RegisterLearner: learner}

	case strings.HasPrefix(line, "KICK="):
		return Line{Kind: KindKick, Raw: line, Value: strings.TrimPrefix(line, "KICK=")}

	case strings.HasPrefix(line, "STATUS="):
		return Line{Kind: KindStatus, Raw: line, Base64: strings.TrimPrefix(line, "STATUS=")}

	case strings.HasPrefix(line, "CAPABILITY="):
		return Line{Kind: KindCapability, Raw: line, Base64: strings.TrimPrefix(line, "CAPABILITY=")}

	case strings.HasPrefix(line, "SETTINGS="):
		return Line{Kind: KindSettings, Raw: line, Base64: strings.TrimPrefix(line, "SETTINGS=")}

	case strings.HasPrefix(line, "KEEP_HISTORY="):
		v := strings.TrimPrefix(line, "KEEP_HISTORY=")
		return Line{Kind: KindKeepHistory, Raw: line, Bool: strings.EqualFold(v, "true") || v == "1"}

	case line == "REQUEST=STATUS":
		return Line{Kind: KindRequestStatus, Raw: line}

	case line == "REQUEST=CLIENTS":
		return Line{Kind: KindRequestClients, Raw: line}

	case strings.HasPrefix(line, "REQUEST=LABS"):
		panel := strings.TrimPrefix(strings.TrimPrefix(line, "REQUEST=LABS"), ";")
		if panel == "" {
			panel = "ALL"
		}
		return Line{Kind: KindRequestLabs, Raw: line, Value: panel}

	case strings.HasPrefix(line, "ACT="):
		return Line{Kind: KindAct, Raw: line, Value: strings.TrimPrefix(line, "ACT=")}

	case strings.HasPrefix(line, "["):
		if end := strings.IndexByte(line, ']'); end > 0 {
			topic := line[1:end]
			body := line[end+1:]
			if topic == "SYS" {
				// [SYS] carries a bare "VERB" or "VERB:arg" payload, not
				// a kvp body, so it bypasses ParseKVP entirely.
				return Line{Kind: KindModification, Raw: line, Topic: topic, Value: body}
			}
			return Line{Kind: KindModification, Raw: line, Topic: topic, KVP: ParseKVP(body)}
		}
	}

	return Line{Kind: KindUnknown, Raw: line}
}
