package protocol

import "encoding/xml"

// CapabilityDocument mirrors the AMM capability XML a module sends in
// a base64-encoded CAPABILITY= line. Field names follow the wire XML
// rather than Go convention since this type exists only to decode it.
type CapabilityDocument struct {
	XMLName xml.Name         `xml:"AMMModuleConfiguration"`
	Module  CapabilityModule `xml:"module"`
}

type CapabilityModule struct {
	Name          string       `xml:"name,attr"`
	Manufacturer  string       `xml:"manufacturer,attr"`
	Model         string       `xml:"model,attr"`
	SerialNumber  string       `xml:"serial_number,attr"`
	ModuleVersion string       `xml:"module_version,attr"`
	Capabilities  []Capability `xml:"capabilities>capability"`
}

type Capability struct {
	Name             string    `xml:"name,attr"`
	StartingSettings []Setting `xml:"starting_settings>setting"`
	Configuration    []Setting `xml:"configuration>setting"`
	SubscribedTopics []Topic   `xml:"subscribed_topics>topic"`
	PublishedTopics  []Topic   `xml:"published_topics>topic"`
}

type Setting struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Topic struct {
	Name     string `xml:"name,attr"`
	NodePath string `xml:"nodepath,attr"`
}

// ParseCapabilityXML decodes a capability document from its decoded
// XML bytes. It returns an error for malformed XML; spec.md says a
// malformed capability document is logged and ignored, leaving prior
// subscriptions untouched — the caller decides that, not this parser.
func ParseCapabilityXML(data []byte) (CapabilityDocument, error) {
	var doc CapabilityDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return CapabilityDocument{}, err
	}
	return doc, nil
}

// SettingsMap flattens a capability's starting settings into a
// name->value map for seeding EquipmentSettings.
func (c Capability) SettingsMap() map[string]string {
	out := make(map[string]string, len(c.StartingSettings))
	for _, s := range c.StartingSettings {
		out[s.Name] = s.Value
	}
	return out
}

// ConfigurationMap flattens a capability's configuration settings into
// a name->value map, used when a SETTINGS= line updates an already
// registered capability's settings rather than seeding it fresh.
func (c Capability) ConfigurationMap() map[string]string {
	out := make(map[string]string, len(c.Configuration))
	for _, s := range c.Configuration {
		out[s.Name] = s.Value
	}
	return out
}
