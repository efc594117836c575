// Package manikin implements the per-manikin bus façade (spec.md
// §4.E): one bus.Participant, one subscription index scoped to that
// manikin's topics, one equipment settings table, one event
// correlation cache, and one lab-panel table, wired together the way
// the teacher's internal/relay package wires one ChatRegistry + one
// WingMap per relay session — here per simulated manikin instead of
// per browser session.
package manikin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/protocol"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/subscription"
)

// settleDelay is how long Start waits before registering bus
// subscriptions, giving the underlying transport time to finish
// connecting before the first Subscribe call races it.
const settleDelay = 250 * time.Millisecond

// Dispatcher delivers a formatted outbound wire line to every session
// subscribed to key on a manikin, or to every session regardless of
// subscription for a broadcast. The conn/registry layer implements
// this; Manikin itself only knows bus semantics.
type Dispatcher interface {
	Dispatch(manikinID, key, line string)
	Broadcast(line string)
}

// Manikin is one simulated patient's bus presence.
type Manikin struct {
	ID string

	participant *bus.Participant
	subs        *subscription.Index
	settings    *subscription.EquipmentSettings
	events      *EventCache
	labs        *LabTable
	dispatcher  Dispatcher
	podMode     bool

	mu         sync.RWMutex
	moduleName string
	status     string // NOT RUNNING | RUNNING | PAUSED
	scenario   string
	state      string // RUN | HALT | RESET | SAVE
}

// New wires a Manikin around an already-constructed participant. The
// caller owns Connect/Disconnect of the underlying bus.Participant.
// podMode controls whether outbound physiology lines carry a ;mid=
// suffix, per spec.md §4.E.
func New(id string, participant *bus.Participant, dispatcher Dispatcher, podMode bool) *Manikin {
	return &Manikin{
		ID:          id,
		participant: participant,
		subs:        subscription.NewIndex(),
		settings:    subscription.NewEquipmentSettings(),
		events:      NewEventCache(),
		labs:        NewLabTable(),
		dispatcher:  dispatcher,
		podMode:     podMode,
		status:      "NOT RUNNING",
		state:       "HALT",
	}
}

// Start waits out the settle delay and registers every bus
// subscription this manikin cares about. It blocks for settleDelay;
// callers typically run it in its own goroutine per manikin.
func (m *Manikin) Start(ctx context.Context) error {
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.subscribeAll()
}

func (m *Manikin) subscribeAll() error {
	subs := []func() error{
		func() error {
			return bus.Subscribe(m.participant, bus.TopicEventRecord, m.onEventRecord)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicOmittedEvent, m.onOmittedEvent)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicRenderModification, m.onRenderModification)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicPhysiologyModification, m.onPhysiologyModification)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicSimulationControl, m.onSimulationControl)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicCommand, m.onCommand)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicAssessment, m.onAssessment)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicPerformanceAssessment, m.onPerformanceAssessment)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicPhysiologyValue, m.onPhysiologyValue)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicPhysiologyWaveform, m.onPhysiologyWaveform)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicStatus, m.onStatus)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicInstrumentData, m.onInstrumentData)
		},
		func() error {
			return bus.Subscribe(m.participant, bus.TopicModuleConfiguration, m.onModuleConfiguration)
		},
	}
	for _, sub := range subs {
		if err := sub(); err != nil {
			return err
		}
	}
	return nil
}

// Subscriptions exposes the per-session topic index so the connection
// layer can register a session's interest and the registry can clean
// it up on disconnect.
func (m *Manikin) Subscriptions() *subscription.Index { return m.subs }

// Settings exposes the equipment settings table for CONFIG/SETTINGS=
// handling.
func (m *Manikin) Settings() *subscription.EquipmentSettings { return m.settings }

// Events exposes the event correlation cache.
func (m *Manikin) Events() *EventCache { return m.events }

// Labs exposes the lab panel table.
func (m *Manikin) Labs() *LabTable { return m.labs }

func (m *Manikin) dispatch(key, line string) {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Dispatch(m.ID, key, line)
}

func (m *Manikin) broadcast(line string) {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Broadcast(line)
}

// envelope renders one of the fixed AMM_<Name> callbacks' outbound
// line: a bracketed topic name followed by a semicolon-separated kvp
// tail that always carries this manikin's id, per spec.md §4.E.
func (m *Manikin) envelope(topic bus.Topic, body string) string {
	return fmt.Sprintf("[%s]%s;mid=%s", topic, body, m.ID)
}

// correlate looks up eventID in the event cache and returns the
// location/participant fields a modification or assessment line
// enriches itself with. Both come back empty when the event isn't
// cached, per spec.md §9's event-record-lookup note.
func (m *Manikin) correlate(eventID string) (location, participantID string) {
	if eventID == "" {
		return "", ""
	}
	rec, ok := m.events.Get(eventID)
	if !ok {
		return "", ""
	}
	return rec.Location, rec.AgentID
}

func (m *Manikin) onEventRecord(rec bus.EventRecordSample) {
	m.events.Put(rec)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;agent_id=%s", rec.EventID, rec.Type, rec.Location, rec.AgentID)
	m.dispatch(string(bus.TopicEventRecord), m.envelope(bus.TopicEventRecord, body))
}

func (m *Manikin) onOmittedEvent(ev bus.OmittedEventSample) {
	m.events.PutOmitted(ev)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;agent_id=%s", ev.EventID, ev.Type, ev.Location, ev.AgentID)
	m.dispatch(string(bus.TopicEventRecord), m.envelope(bus.TopicEventRecord, body))
}

func (m *Manikin) onRenderModification(s bus.RenderModificationSample) {
	location, participantID := m.correlate(s.EventID)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;participant_id=%s;payload=%s",
		s.EventID, s.Type, location, participantID, s.Data)
	m.dispatch(string(bus.TopicRenderModification), m.envelope(bus.TopicRenderModification, body))
}

func (m *Manikin) onPhysiologyModification(s bus.PhysiologyModificationSample) {
	location, participantID := m.correlate(s.EventID)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;participant_id=%s;payload=%s",
		s.EventID, s.Type, location, participantID, s.Data)
	m.dispatch(string(bus.TopicPhysiologyModification), m.envelope(bus.TopicPhysiologyModification, body))
}

// onSimulationControl updates the status/state triple and, for
// RUN/HALT/RESET, broadcasts the matching [SYS] verb to every session
// (not just subscribers of a topic) per spec.md §4.E. RESET additionally
// zeroes the lab panel table and the event correlation cache; SAVE
// updates state only and broadcasts nothing.
func (m *Manikin) onSimulationControl(s bus.SimulationControlSample) {
	m.mu.Lock()
	switch s.Type {
	case "RUN":
		m.status = "RUNNING"
	case "HALT":
		m.status = "PAUSED"
	case "RESET":
		m.status = "NOT RUNNING"
	}
	m.state = s.Type
	m.mu.Unlock()

	if s.Type == "RESET" {
		m.events.Reset()
		m.labs.Reset()
	}

	var verb string
	switch s.Type {
	case "RUN":
		verb = "START_SIM"
	case "HALT":
		verb = "PAUSE_SIM"
	case "RESET":
		verb = "RESET_SIM"
	default:
		return
	}
	m.broadcast(fmt.Sprintf("[SYS]%s;mid=%s", verb, m.ID))
}

func (m *Manikin) onCommand(s bus.CommandSample) {
	m.dispatch(string(bus.TopicCommand), m.envelope(bus.TopicCommand, fmt.Sprintf("message=%s", s.Message)))
}

func (m *Manikin) onAssessment(s bus.AssessmentSample) {
	location, participantID := m.correlate(s.EventID)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;participant_id=%s;payload=%s",
		s.EventID, s.Type, location, participantID, s.Data)
	m.dispatch(string(bus.TopicAssessment), m.envelope(bus.TopicAssessment, body))
}

func (m *Manikin) onPerformanceAssessment(s bus.PerformanceAssessmentSample) {
	location, participantID := m.correlate(s.EventID)
	body := fmt.Sprintf("event_id=%s;type=%s;location=%s;participant_id=%s;payload=%s",
		s.EventID, s.Type, location, participantID, s.Data)
	m.dispatch(string(bus.TopicPerformanceAssessment), m.envelope(bus.TopicPerformanceAssessment, body))
}

// formatPhysiologyLine renders the bare physiology wire shape
// "<name>=<value>[;mid=<id>]|", the ;mid= suffix appearing only in pod
// mode, per spec.md §4.E.
func (m *Manikin) formatPhysiologyLine(name string, value float64) string {
	if m.podMode {
		return fmt.Sprintf("%s=%g;mid=%s|", name, value, m.ID)
	}
	return fmt.Sprintf("%s=%g|", name, value)
}

// onPhysiologyValue folds the reading into the lab panel table, then
// routes it to every session whose subscription set contains the bare
// value name.
func (m *Manikin) onPhysiologyValue(s bus.PhysiologyValueSample) {
	m.labs.Fold(s.Name, s.Value)
	m.dispatch(s.Name, m.formatPhysiologyLine(s.Name, s.Value))
}

// onPhysiologyWaveform routes by the HF_<name> subscription key a
// capability document's AMM_HighFrequencyNode_Data nodepath produces
// (spec.md §4.C), but serializes the bare value name, matching the
// scalar physiology wire shape.
func (m *Manikin) onPhysiologyWaveform(s bus.PhysiologyWaveformSample) {
	m.dispatch("HF_"+s.Name, m.formatPhysiologyLine(s.Name, s.Value))
}

func (m *Manikin) onStatus(s bus.StatusSample) {
	m.dispatch(string(bus.TopicStatus), m.envelope(bus.TopicStatus, fmt.Sprintf("capability=%s;value=%s", s.Capability, s.Value)))
}

func (m *Manikin) onInstrumentData(s bus.InstrumentDataSample) {
	m.dispatch(string(bus.TopicInstrumentData), m.envelope(bus.TopicInstrumentData, fmt.Sprintf("capability=%s;data=%s", s.Capability, s.Data)))
}

func (m *Manikin) onModuleConfiguration(s bus.ModuleConfigurationSample) {
	m.dispatch(string(bus.TopicModuleConfiguration), m.envelope(bus.TopicModuleConfiguration, fmt.Sprintf("name=%s;data=%s", s.Name, s.CapabilitiesConfiguration)))
}

// StatusTriple returns the manikin's current status/scenario/state for
// a REQUEST=STATUS response.
func (m *Manikin) StatusTriple() (status, scenario, state string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.scenario, m.state
}

// SetScenario records the currently loaded scenario name, set by a
// LOAD_SCENARIO: command.
func (m *Manikin) SetScenario(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenario = name
}

// subscriptionKeyForTopic derives the effective subscription key for a
// capability document's subscribed_topics entry, per spec.md §4.C: a
// high-frequency waveform topic remaps to HF_<nodepath>; otherwise a
// present nodepath replaces the topic name outright.
func subscriptionKeyForTopic(t protocol.Topic) string {
	if t.Name == "AMM_HighFrequencyNode_Data" {
		return "HF_" + t.NodePath
	}
	if t.NodePath != "" {
		return t.NodePath
	}
	return t.Name
}

// HandleCapabilities processes a client's CAPABILITY= document: it
// clears the session's prior subscriptions (a fresh document replaces
// rather than merges them), re-adds every subscribed_topics entry under
// its effective key, seeds equipment settings from starting_settings,
// and announces the module on the bus. The announced
// OperationalDescription carries the module attributes and a fresh
// module UUID; its CapabilitiesSchema field is left empty.
func (m *Manikin) HandleCapabilities(ctx context.Context, sessionID string, doc protocol.CapabilityDocument) error {
	m.mu.Lock()
	m.moduleName = doc.Module.Name
	m.mu.Unlock()

	m.subs.Clear(sessionID)
	for _, cap := range doc.Module.Capabilities {
		for _, t := range cap.SubscribedTopics {
			m.subs.Add(sessionID, subscriptionKeyForTopic(t))
		}
		m.settings.Merge(cap.Name, cap.SettingsMap())
		if err := m.participant.Publish(ctx, bus.TopicInstrumentData, bus.InstrumentDataSample{
			Capability: cap.Name,
			Data:       m.settings.Serialize(cap.Name),
		}); err != nil {
			return err
		}
	}

	return m.participant.Publish(ctx, bus.TopicOperationalDescription, bus.OperationalDescriptionSample{
		ModuleName:    doc.Module.Name,
		Manufacturer:  doc.Module.Manufacturer,
		Model:         doc.Module.Model,
		SerialNumber:  doc.Module.SerialNumber,
		ModuleVersion: doc.Module.ModuleVersion,
		ModuleUUID:    m.participant.NewUUID(),
	})
}

// HandleStatus maps the literal substring HALTING_ERROR appearing
// anywhere in a client's raw STATUS= document to an INOPERATIVE Status
// sample, OPERATIONAL otherwise, per spec.md §4.E.
func (m *Manikin) HandleStatus(ctx context.Context, capability, raw string) error {
	value := "OPERATIONAL"
	if strings.Contains(raw, "HALTING_ERROR") {
		value = "INOPERATIVE"
	}
	return m.participant.Publish(ctx, bus.TopicStatus, bus.StatusSample{
		Capability: capability,
		Value:      value,
	})
}

// ApplySettings merges kv into capability's equipment settings and
// republishes the capability's full settings map as an InstrumentData
// sample, the SETTINGS= handler's effect per spec.md §4.D.
func (m *Manikin) ApplySettings(ctx context.Context, capability string, kv map[string]string) error {
	m.settings.Merge(capability, kv)
	return m.participant.Publish(ctx, bus.TopicInstrumentData, bus.InstrumentDataSample{
		Capability: capability,
		Data:       m.settings.Serialize(capability),
	})
}

// NewEventID mints a fresh bus-wide event id, used when an inbound
// modification envelope omits event_id.
func (m *Manikin) NewEventID() string {
	return m.participant.NewUUID()
}

// PublishEventRecord publishes the EventRecord a modification envelope
// emits before its typed payload, per spec.md §4.D.
func (m *Manikin) PublishEventRecord(ctx context.Context, eventID, eventType, location, participantID string) error {
	return m.participant.Publish(ctx, bus.TopicEventRecord, bus.EventRecordSample{
		EventID:  eventID,
		Type:     eventType,
		Location: location,
		AgentID:  participantID,
	})
}

// PublishModification publishes a client-originated modification
// envelope's typed payload onto the bus topic its bracketed name
// names. Topics spec.md §4.D does not specifically type fall back to a
// generic Command publish.
func (m *Manikin) PublishModification(ctx context.Context, topic, eventID, eventType, payload string) error {
	switch bus.Topic(topic) {
	case bus.TopicRenderModification:
		return m.participant.Publish(ctx, bus.TopicRenderModification, bus.RenderModificationSample{EventID: eventID, Type: eventType, Data: payload})
	case bus.TopicPhysiologyModification:
		return m.participant.Publish(ctx, bus.TopicPhysiologyModification, bus.PhysiologyModificationSample{EventID: eventID, Type: eventType, Data: payload})
	case bus.TopicAssessment:
		return m.participant.Publish(ctx, bus.TopicAssessment, bus.AssessmentSample{EventID: eventID, Type: eventType, Data: payload})
	case bus.TopicPerformanceAssessment:
		return m.participant.Publish(ctx, bus.TopicPerformanceAssessment, bus.PerformanceAssessmentSample{EventID: eventID, Type: eventType, Data: payload})
	case bus.TopicModuleConfiguration:
		return m.participant.Publish(ctx, bus.TopicModuleConfiguration, bus.ModuleConfigurationSample{Name: eventType, CapabilitiesConfiguration: payload})
	case bus.TopicCommand:
		return m.PublishCommand(ctx, payload)
	default:
		return m.PublishCommand(ctx, fmt.Sprintf("%s:%s", topic, payload))
	}
}

// PublishCommand forwards a client's ACT= payload, or any other
// free-form instruction, onto the bus as a CommandSample.
func (m *Manikin) PublishCommand(ctx context.Context, message string) error {
	return m.participant.Publish(ctx, bus.TopicCommand, bus.CommandSample{Message: message})
}

// PublishSimulationControl drives the manikin's run/pause/reset/save
// state machine from a [SYS] subcommand.
func (m *Manikin) PublishSimulationControl(ctx context.Context, kind string) error {
	return m.participant.Publish(ctx, bus.TopicSimulationControl, bus.SimulationControlSample{Type: kind})
}

// LabReport renders panel's current readings as sorted
// "<name>=<value>[;mid=<id>]|" lines, one per name, newline-joined.
func (m *Manikin) LabReport(panel string) string {
	snap := m.labs.Snapshot(panel)
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(m.formatPhysiologyLine(name, snap[name]))
		b.WriteString("\n")
	}
	return b.String()
}
