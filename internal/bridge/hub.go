// Package bridge is the top-level orchestration hub: it implements
// conn.Handler (so a connected session's parsed lines reach it) and
// manikin.Dispatcher (so a manikin's bus fan-out reaches every
// subscribed session), replacing the original bridge's global mutable
// state (clientMap, clientTypeMap, subscribedTopics, gameClientList)
// with the single wired value spec.md's design notes call for.
// Grounded on the teacher's internal/relay.Server, which plays the
// same connecting role between its transport and session layers.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/command"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/pod"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/protocol"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/registry"
)

// Hub wires the pod, registry, and command interpreter together and
// satisfies both conn.Handler and manikin.Dispatcher.
type Hub struct {
	Pod      *pod.Pod
	Registry *registry.Registry
	Commands *command.Interpreter
}

// New constructs a Hub around an already-provisioned pod.
func New(p *pod.Pod, reg *registry.Registry, supervisor command.ServiceSupervisor) *Hub {
	return &Hub{
		Pod:      p,
		Registry: reg,
		Commands: &command.Interpreter{Pod: p, Registry: reg, Supervisor: supervisor},
	}
}

// OnConnect is a no-op beyond logging; registration already happened
// in the connection layer before this callback fires.
func (h *Hub) OnConnect(session *registry.Session, remoteAddr string) {
	logger.Info("client registered", "session_id", session.ID, "remote_addr", remoteAddr)
}

// OnDisconnect clears the session's subscriptions on every manikin so
// a later reconnect under a new id starts clean, then publishes the
// bus-visible UPDATE_CLIENT command announcing the departure, per
// spec.md §9's disconnect scenario.
func (h *Hub) OnDisconnect(sessionID string) {
	for _, id := range h.Pod.IDs() {
		if m, ok := h.Pod.Get(id); ok {
			m.Subscriptions().Remove(sessionID)
		}
	}

	rec, ok := h.Registry.Record(sessionID)
	if !ok {
		return
	}
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}
	payload := fmt.Sprintf("[SYS]UPDATE_CLIENT=client_id=%s;client_name=%s;client_status=%s",
		rec.ClientID, rec.ClientName, rec.ClientStatus)
	if err := m.PublishCommand(context.Background(), payload); err != nil {
		logger.Warn("publish disconnect update failed", "session_id", sessionID, "error", err)
	}
}

// OnLine routes one parsed line to the right subsystem.
func (h *Hub) OnLine(session *registry.Session, line protocol.Line) {
	ctx := context.Background()

	switch line.Kind {
	case protocol.KindKeepAlive:
		// Read activity alone already resets the connection layer's
		// idle timer; nothing else to do.

	case protocol.KindModuleName:
		session.SetModuleName(line.Value)
		h.Registry.MutateRecord(session.ID, func(rec *registry.ConnectionRecord) {
			rec.ClientName = line.Value
		})

	case protocol.KindRegister:
		h.Registry.MutateRecord(session.ID, func(rec *registry.ConnectionRecord) {
			rec.ClientName = line.Value
			rec.LearnerName = line.RegisterLearner
		})
		h.broadcastClientJoined(session.ID)

	case protocol.KindKeepHistory:
		session.SetKeepHistory(line.Bool)

	case protocol.KindKick:
		if err := h.Commands.Handle(ctx, "", "KICK:"+line.Value); err != nil {
			logger.Warn("kick failed", "target", line.Value, "error", err)
		}

	case protocol.KindCapability:
		h.handleCapability(ctx, session, line)

	case protocol.KindStatus:
		h.handleStatus(ctx, session, line)

	case protocol.KindSettings:
		h.handleSettings(ctx, session, line)

	case protocol.KindRequestStatus:
		h.handleRequestStatus(session)

	case protocol.KindRequestClients:
		h.handleRequestClients(session)

	case protocol.KindRequestLabs:
		h.handleRequestLabs(session, line)

	case protocol.KindAct:
		m, ok := h.Pod.Get(pod.DefaultManikinID)
		if ok {
			if err := m.PublishCommand(ctx, line.Value); err != nil {
				logger.Warn("publish ACT failed", "error", err)
			}
		}

	case protocol.KindModification:
		h.handleModification(ctx, session, line)

	default:
		logger.Debug("unrecognized line", "raw", line.Raw)
	}
}

// broadcastClientJoined announces a freshly registered session to
// every connected client, per spec.md §6's CLIENT_JOINED= response.
func (h *Hub) broadcastClientJoined(sessionID string) {
	h.Broadcast(fmt.Sprintf("CLIENT_JOINED=%s", sessionID))
}

func (h *Hub) handleCapability(ctx context.Context, session *registry.Session, line protocol.Line) {
	data, err := protocol.DecodeBase64(line.Base64)
	if err != nil {
		logger.Warn("malformed capability base64", "session_id", session.ID, "error", err)
		_ = session.Send([]byte(fmt.Sprintf("ERROR_IN_CAPABILITIES_RECEIVED=%s\n", session.ID)))
		return
	}
	doc, err := protocol.ParseCapabilityXML(data)
	if err != nil {
		logger.Warn("malformed capability xml", "session_id", session.ID, "error", err)
		_ = session.Send([]byte(fmt.Sprintf("ERROR_IN_CAPABILITIES_RECEIVED=%s\n", session.ID)))
		return
	}
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}

	session.SetClientType(doc.Module.Name)
	h.Registry.MutateRecord(session.ID, func(rec *registry.ConnectionRecord) {
		rec.ClientType = doc.Module.Name
	})

	if err := m.HandleCapabilities(ctx, session.ID, doc); err != nil {
		logger.Warn("publish operational description failed", "error", err)
		_ = session.Send([]byte(fmt.Sprintf("ERROR_IN_CAPABILITIES_RECEIVED=%s\n", session.ID)))
		return
	}
	_ = session.Send([]byte(fmt.Sprintf("CAPABILITIES_RECEIVED=%s\n", session.ID)))
}

func (h *Hub) handleStatus(ctx context.Context, session *registry.Session, line protocol.Line) {
	data, err := protocol.DecodeBase64(line.Base64)
	if err != nil {
		logger.Warn("malformed status base64", "session_id", session.ID, "error", err)
		return
	}
	doc, err := protocol.ParseStatusXML(data)
	if err != nil {
		logger.Warn("malformed status xml", "session_id", session.ID, "error", err)
		return
	}
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}
	if err := m.HandleStatus(ctx, doc.Module.Name, string(data)); err != nil {
		logger.Warn("publish status failed", "error", err)
	}
}

// handleSettings decodes a SETTINGS= capability document and merges
// its configuration settings into the named manikin's equipment
// settings table, republishing each affected capability's settings as
// an InstrumentData sample. Per spec.md §4.D, this updates rather than
// seeds: it does not touch subscriptions.
func (h *Hub) handleSettings(ctx context.Context, session *registry.Session, line protocol.Line) {
	data, err := protocol.DecodeBase64(line.Base64)
	if err != nil {
		logger.Warn("malformed settings base64", "session_id", session.ID, "error", err)
		return
	}
	doc, err := protocol.ParseCapabilityXML(data)
	if err != nil {
		logger.Warn("malformed settings xml", "session_id", session.ID, "error", err)
		return
	}
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}
	for _, cap := range doc.Module.Capabilities {
		if err := m.ApplySettings(ctx, cap.Name, cap.ConfigurationMap()); err != nil {
			logger.Warn("apply settings failed", "capability", cap.Name, "error", err)
		}
	}
}

func (h *Hub) handleRequestStatus(session *registry.Session) {
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}
	status, scenario, state := m.StatusTriple()
	_ = session.Send([]byte(fmt.Sprintf("STATUS=%s|SCENARIO=%s|STATE=%s|\n", status, scenario, state)))
}

func (h *Hub) handleRequestClients(session *registry.Session) {
	var b strings.Builder
	for _, rec := range h.Registry.Snapshot() {
		fmt.Fprintf(&b, "CLIENTS=%s;%s;%s;%s\n", rec.ClientID, rec.ClientName, rec.ClientType, rec.ClientStatus)
	}
	_ = session.Send([]byte(b.String()))
}

// handleRequestLabs replies with the default manikin's current lab
// panel readings for the requested panel (ALL if unspecified), per
// spec.md §4.D's REQUEST=LABS[;panel] operation.
func (h *Hub) handleRequestLabs(session *registry.Session, line protocol.Line) {
	m, ok := h.Pod.Get(pod.DefaultManikinID)
	if !ok {
		return
	}
	_ = session.Send([]byte(m.LabReport(line.Value)))
}

// handleModification routes a bracketed topic envelope: [SYS] goes to
// the command interpreter, everything else is a client-originated
// modification scoped to a manikin by its kvp mid (default if absent
// or unknown). Per spec.md §4.D, every topic but AMM_Command publishes
// an EventRecord before its typed payload, minting an event_id when the
// client didn't supply one and best-effort-extracting a type attribute
// from the payload when the client didn't supply that either.
func (h *Hub) handleModification(ctx context.Context, session *registry.Session, line protocol.Line) {
	if line.Topic == "SYS" {
		if err := h.Commands.Handle(ctx, line.KVP["mid"], line.Value); err != nil {
			logger.Warn("sys command failed", "payload", line.Value, "error", err)
		}
		return
	}

	mid := line.KVP["mid"]
	m, ok := h.Pod.Get(mid)
	if !ok {
		logger.Warn("modification dropped, no manikin available", "topic", line.Topic)
		return
	}

	eventID := line.KVP["event_id"]
	if eventID == "" {
		eventID = m.NewEventID()
	}

	payload := line.KVP["payload"]
	if payload == "" && line.Topic == "AMM_Render_Modification" {
		payload = fmt.Sprintf("<RenderModification type='%s'/>", line.KVP["type"])
	}

	eventType := line.KVP["type"]
	if eventType == "" {
		eventType = protocol.ExtractType(payload)
	}

	location := line.KVP["location"]
	participantID := line.KVP["participant_id"]

	if line.Topic != bridgeCommandTopic {
		if err := m.PublishEventRecord(ctx, eventID, eventType, location, participantID); err != nil {
			logger.Warn("publish event record failed", "topic", line.Topic, "error", err)
		}
	}

	if err := m.PublishModification(ctx, line.Topic, eventID, eventType, payload); err != nil {
		logger.Warn("publish modification failed", "topic", line.Topic, "error", err)
	}
}

// bridgeCommandTopic is the bracket name a client's [AMM_Command]
// envelope carries; it's the one topic handleModification must not
// precede with an EventRecord publish.
const bridgeCommandTopic = "AMM_Command"

// Dispatch delivers a manikin's fully-formatted outbound wire line to
// every session subscribed to key on that manikin, mirroring spec.md's
// fan-out rule: snapshot subscribers, then write outside any lock. The
// line already carries its bracketed topic (or bare physiology name)
// and trailing terminator; Dispatch only appends the newline frame.
func (h *Hub) Dispatch(manikinID, key, line string) {
	m, ok := h.Pod.Get(manikinID)
	if !ok {
		return
	}
	wire := []byte(line + "\n")
	for _, sessionID := range m.Subscriptions().SubscribersOf(key) {
		session, ok := h.Registry.Resolve(sessionID)
		if !ok {
			continue
		}
		if err := session.Send(wire); err != nil {
			logger.Warn("dispatch write failed", "session_id", sessionID, "error", err)
		}
	}
}

// Broadcast delivers line to every currently connected session,
// regardless of subscription — used for [SYS] simulation-control
// announcements and CLIENT_JOINED notices, per spec.md §4.E/§6.
func (h *Hub) Broadcast(line string) {
	wire := []byte(line + "\n")
	for _, session := range h.Registry.SessionSnapshot() {
		if err := session.Send(wire); err != nil {
			logger.Warn("broadcast write failed", "session_id", session.ID, "error", err)
		}
	}
}
