package protocol

import "encoding/xml"

// StatusDocument mirrors the AMM module status XML sent in a
// base64-encoded STATUS= line.
type StatusDocument struct {
	XMLName xml.Name     `xml:"AMMModuleStatus"`
	Module  StatusModule `xml:"module"`
}

type StatusModule struct {
	Name   string `xml:"name,attr"`
	Status string `xml:"status,attr"`
}

// ParseStatusXML decodes a status document from its decoded XML bytes.
func ParseStatusXML(data []byte) (StatusDocument, error) {
	var doc StatusDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return StatusDocument{}, err
	}
	return doc, nil
}
