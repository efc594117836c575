package protocol

import (
	"encoding/base64"
	"reflect"
	"testing"
)

func TestSplitterFeedHoldsPartialLine(t *testing.T) {
	var s Splitter
	lines := s.Feed([]byte("MODULE_NAME=Monitor\nREGI"))
	if !reflect.DeepEqual(lines, []string{"MODULE_NAME=Monitor"}) {
		t.Fatalf("unexpected first batch: %v", lines)
	}
	lines = s.Feed([]byte("STER=abc\n"))
	if !reflect.DeepEqual(lines, []string{"REGISTER=abc"}) {
		t.Fatalf("unexpected second batch: %v", lines)
	}
}

func TestSplitterTrimsTrailingWhitespace(t *testing.T) {
	var s Splitter
	lines := s.Feed([]byte("KICK=abc123   \r\n"))
	if lines[0] != "KICK=abc123" {
		t.Errorf("got %q", lines[0])
	}
}

func TestParseKeepAlive(t *testing.T) {
	l := Parse("[KEEPALIVE]")
	if l.Kind != KindKeepAlive {
		t.Errorf("expected KindKeepAlive, got %v", l.Kind)
	}
}

func TestParseModuleNameAndRegister(t *testing.T) {
	if l := Parse("MODULE_NAME=Sim Monitor"); l.Kind != KindModuleName || l.Value != "Sim Monitor" {
		t.Errorf("got %+v", l)
	}
	if l := Parse("REGISTER=Instructor Jane"); l.Kind != KindRegister || l.Value != "Instructor Jane" {
		t.Errorf("got %+v", l)
	}
}

func TestParseRegisterSplitsLearnerName(t *testing.T) {
	l := Parse("REGISTER=Instructor Console;Jane Doe")
	if l.Kind != KindRegister || l.Value != "Instructor Console" || l.RegisterLearner != "Jane Doe" {
		t.Errorf("got %+v", l)
	}
}

func TestParseRequestLabsDefaultsAndAcceptsPanel(t *testing.T) {
	if l := Parse("REQUEST=LABS"); l.Kind != KindRequestLabs || l.Value != "ALL" {
		t.Errorf("got %+v", l)
	}
	if l := Parse("REQUEST=LABS;Hematology"); l.Kind != KindRequestLabs || l.Value != "Hematology" {
		t.Errorf("got %+v", l)
	}
}

func TestParseRequests(t *testing.T) {
	cases := map[string]Kind{
		"REQUEST=STATUS":  KindRequestStatus,
		"REQUEST=CLIENTS": KindRequestClients,
		"REQUEST=LABS":    KindRequestLabs,
	}
	for line, want := range cases {
		if l := Parse(line); l.Kind != want {
			t.Errorf("Parse(%q) kind = %v, want %v", line, l.Kind, want)
		}
	}
}

func TestParseModification(t *testing.T) {
	l := Parse("[HR]mid=default;event_id=e1;payload=abc")
	if l.Kind != KindModification {
		t.Fatalf("expected KindModification, got %v", l.Kind)
	}
	if l.Topic != "HR" {
		t.Errorf("expected topic HR, got %q", l.Topic)
	}
	want := map[string]string{"mid": "default", "event_id": "e1", "payload": "abc"}
	if !reflect.DeepEqual(l.KVP, want) {
		t.Errorf("got %v, want %v", l.KVP, want)
	}
}

func TestParseSysModificationCarriesRawValue(t *testing.T) {
	l := Parse("[SYS]KICK:abc123")
	if l.Kind != KindModification || l.Topic != "SYS" {
		t.Fatalf("got %+v", l)
	}
	if l.Value != "KICK:abc123" {
		t.Errorf("expected raw value KICK:abc123, got %q", l.Value)
	}
	if l.KVP != nil {
		t.Errorf("expected nil KVP for SYS line, got %v", l.KVP)
	}
}

func TestParseKeepHistory(t *testing.T) {
	l := Parse("KEEP_HISTORY=true")
	if l.Kind != KindKeepHistory || !l.Bool {
		t.Errorf("got %+v", l)
	}
	l = Parse("KEEP_HISTORY=false")
	if l.Bool {
		t.Errorf("expected false, got true")
	}
}

func TestParseUnknownFallsThrough(t *testing.T) {
	l := Parse("garbage line")
	if l.Kind != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", l.Kind)
	}
}

func TestParseKVPLowercasesAndTrims(t *testing.T) {
	got := ParseKVP(" Mid = default ; Event_ID=e1")
	want := map[string]string{"mid": "default", "event_id": "e1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseCapabilityXML(t *testing.T) {
	xmlDoc := `<AMMModuleConfiguration>
		<module name="Monitor" manufacturer="ACME" model="M1" serial_number="123" module_version="1.0">
			<capabilities>
				<capability name="HR">
					<starting_settings>
						<setting name="rate" value="72"/>
					</starting_settings>
					<subscribed_topics>
						<topic name="Physiology_Value" nodepath="/hr"/>
					</subscribed_topics>
				</capability>
			</capabilities>
		</module>
	</AMMModuleConfiguration>`

	doc, err := ParseCapabilityXML([]byte(xmlDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Module.Name != "Monitor" {
		t.Errorf("got module name %q", doc.Module.Name)
	}
	if len(doc.Module.Capabilities) != 1 {
		t.Fatalf("expected 1 capability, got %d", len(doc.Module.Capabilities))
	}
	cap := doc.Module.Capabilities[0]
	if cap.Name != "HR" {
		t.Errorf("got capability name %q", cap.Name)
	}
	if got := cap.SettingsMap(); got["rate"] != "72" {
		t.Errorf("got settings map %v", got)
	}
}

func TestDecodeBase64RoundTrip(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("<AMMModuleStatus/>"))
	got, err := DecodeBase64(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "<AMMModuleStatus/>" {
		t.Errorf("got %q", got)
	}
}

func TestExtractType(t *testing.T) {
	if got := ExtractType(`<RenderModification type="WAVEFORM" value="1"/>`); got != "WAVEFORM" {
		t.Errorf("got %q", got)
	}
	if got := ExtractType("no type here"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
