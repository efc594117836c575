// Package registry owns session identity, membership, and the
// externally-visible ConnectionRecord view consumed by REQUEST=CLIENTS
// and instructor-console broadcasts. Grounded on the teacher's
// internal/relay session maps (SessionManager, ChatRegistry): a
// RWMutex-guarded map plus a Snapshot method so callers never hold the
// registry lock during I/O.
package registry

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// ClientStatus is the externally-visible connection state of a session.
type ClientStatus string

const (
	StatusConnected    ClientStatus = "CONNECTED"
	StatusDisconnected ClientStatus = "DISCONNECTED"
)

const idChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Sender is the minimal write-side capability a session needs; the
// connection layer (internal/conn) provides the concrete implementation.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Session is a connected TCP peer. All references outside the registry
// are weak in spirit: callers hold a *Session only as long as they need
// it for one operation and never cache it past a Remove.
type Session struct {
	ID string

	mu          sync.RWMutex
	moduleName  string
	clientType  string
	clientUUID  string
	keepHistory bool
	sender      Sender
}

func newSession(id string, sender Sender) *Session {
	return &Session{ID: id, sender: sender}
}

// Send writes data to the underlying connection.
func (s *Session) Send(data []byte) error {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	return sender.Send(data)
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	return sender.Close()
}

func (s *Session) ModuleName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moduleName
}

func (s *Session) SetModuleName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moduleName = name
}

func (s *Session) ClientType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientType
}

func (s *Session) SetClientType(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientType = t
}

func (s *Session) ClientUUID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientUUID
}

func (s *Session) SetClientUUID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientUUID = id
}

func (s *Session) KeepHistory() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keepHistory
}

func (s *Session) SetKeepHistory(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepHistory = v
}

// ConnectionRecord is the externally-visible view of a session used by
// the instructor console and REQUEST=CLIENTS.
type ConnectionRecord struct {
	ClientID         string
	ClientName       string
	LearnerName      string
	ClientConnection string
	ClientType       string
	Role             string
	ClientStatus     ClientStatus
	ConnectTime      int64
}

// Registry owns the set of live sessions and their ConnectionRecords.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	records  map[string]*ConnectionRecord
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		records:  make(map[string]*ConnectionRecord),
	}
}

func generateID() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	out := make([]byte, 10)
	for i, c := range b {
		out[i] = idChars[int(c)%len(idChars)]
	}
	return string(out)
}

// Register assigns a fresh session id and default display name, then
// inserts the session and its ConnectionRecord.
func (r *Registry) Register(sender Sender, remoteAddr string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := generateID()
	for _, exists := r.sessions[id]; exists; _, exists = r.sessions[id] {
		id = generateID()
	}

	session := newSession(id, sender)
	session.SetModuleName(fmt.Sprintf("Client %s", id))

	r.sessions[id] = session
	r.records[id] = &ConnectionRecord{
		ClientID:         id,
		ClientName:       session.ModuleName(),
		ClientConnection: remoteAddr,
		ClientStatus:     StatusConnected,
		ConnectTime:      time.Now().Unix(),
	}
	return session
}

// Resolve returns the live session for id, if any.
func (r *Registry) Resolve(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Record returns a copy of the ConnectionRecord for id, if any.
func (r *Registry) Record(id string) (ConnectionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return ConnectionRecord{}, false
	}
	return *rec, true
}

// MutateRecord applies fn to the ConnectionRecord for id under lock. A
// record is created if one does not already exist (used by
// UPDATE_CLIENT upserts).
func (r *Registry) MutateRecord(id string, fn func(*ConnectionRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		rec = &ConnectionRecord{ClientID: id}
		r.records[id] = rec
	}
	fn(rec)
}

// Snapshot returns a copy of every ConnectionRecord so fan-out never
// holds the registry lock during I/O.
func (r *Registry) Snapshot() []ConnectionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

// SessionSnapshot returns a copy of the list of every live session.
func (r *Registry) SessionSnapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Disconnect marks id's ConnectionRecord DISCONNECTED and removes the
// live session, but keeps the record around so a status broadcast can
// announce the departure. Idempotent.
func (r *Registry) Disconnect(id string) (ConnectionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	rec, ok := r.records[id]
	if !ok {
		return ConnectionRecord{}, false
	}
	rec.ClientStatus = StatusDisconnected
	return *rec, true
}

// Remove fully deletes id's session and ConnectionRecord (used by KICK).
// Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.records, id)
}
