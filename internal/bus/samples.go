package bus

import "time"

// EventRecordSample is an on-bus description of a clinical action.
// Subsequent modifications and assessments correlate to it via EventID.
type EventRecordSample struct {
	EventID   string    `json:"event_id"`
	Location  string    `json:"location"`
	AgentID   string    `json:"agent_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AgentType string    `json:"agent_type"`
	Data      string    `json:"data,omitempty"`
}

// OmittedEventSample is an event the bus observed but did not originate
// from a client modification; it is promoted into the same correlation
// cache as EventRecordSample.
type OmittedEventSample struct {
	EventID  string `json:"event_id"`
	Location string `json:"location"`
	AgentID  string `json:"agent_id"`
	Type     string `json:"type"`
}

// RenderModificationSample carries a render-time change triggered by an event.
type RenderModificationSample struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    string `json:"data"`
}

// PhysiologyModificationSample carries a physiology-time change triggered by an event.
type PhysiologyModificationSample struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    string `json:"data"`
}

// AssessmentSample carries an assessment correlated to an event.
type AssessmentSample struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    string `json:"data"`
}

// PerformanceAssessmentSample carries a performance-assessment correlated to an event.
type PerformanceAssessmentSample struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    string `json:"data"`
}

// CommandSample is a free-form instruction published on the bus, used
// both for client ACT= passthrough and for [SYS] subcommand plumbing.
type CommandSample struct {
	Message string `json:"message"`
}

// StatusSample reflects a module's operational state.
type StatusSample struct {
	Capability string `json:"capability"`
	Value      string `json:"value"` // OPERATIONAL | INOPERATIVE
}

// ModuleConfigurationSample carries an equipment configuration update for a capability.
type ModuleConfigurationSample struct {
	Name                      string `json:"name"`
	CapabilitiesConfiguration string `json:"capabilities_configuration"`
}

// InstrumentDataSample carries a capability's flattened settings map as
// "k=v\n" lines.
type InstrumentDataSample struct {
	Capability string `json:"capability"`
	Data       string `json:"data"`
}

// OperationalDescriptionSample announces a connected module's identity
// and raw capability schema.
type OperationalDescriptionSample struct {
	ModuleName          string `json:"module_name"`
	Manufacturer        string `json:"manufacturer"`
	Model               string `json:"model"`
	SerialNumber        string `json:"serial_number"`
	ModuleVersion       string `json:"module_version"`
	CapabilitiesSchema  string `json:"capabilities_schema"`
	ModuleUUID          string `json:"module_uuid"`
}

// SimulationControlSample drives the manikin's run/pause/reset/save state machine.
type SimulationControlSample struct {
	Type string `json:"type"` // RUN | HALT | RESET | SAVE
}

// PhysiologyValueSample is a scalar physiology reading.
type PhysiologyValueSample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// PhysiologyWaveformSample is a high-frequency waveform sample.
type PhysiologyWaveformSample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}
