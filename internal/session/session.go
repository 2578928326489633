// Package session implements the per-client session (C6): pairing one
// message connection and one data connection arriving from the same
// remote host into a single ready session, and admitting exactly one
// client at a time.
package session

import (
	"net"
	"sync"

	"github.com/deskstream/deskstream/internal/netconn"
)

// Terminable is anything a session can attach as a named service and tear
// down uniformly — the service.Service worker base, or a richer service
// (like the desktop-streaming service) that embeds one.
type Terminable interface {
	Terminate()
}

// Session pairs a message and a data connection for one remote client and
// owns the set of services attached to it (at most one active at a time,
// per §4.11's "service <name>" handshake, but the map allows for the
// service being torn down and a new one started within the same session).
type Session struct {
	RemoteAddr string

	MsgConn  *netconn.MsgConn
	DataConn *netconn.DataConn

	mu       sync.Mutex
	services map[string]Terminable
}

func newSession(remoteAddr string) *Session {
	return &Session{RemoteAddr: remoteAddr, services: make(map[string]Terminable)}
}

// Ready reports whether both connections have arrived.
func (s *Session) Ready() bool {
	return s.MsgConn != nil && s.DataConn != nil
}

// AttachService registers svc under name, replacing and terminating any
// service already registered under the same name.
func (s *Session) AttachService(name string, svc Terminable) {
	s.mu.Lock()
	old := s.services[name]
	s.services[name] = svc
	s.mu.Unlock()
	if old != nil {
		old.Terminate()
	}
}

// Service returns the service registered under name, if any.
func (s *Session) Service(name string) (Terminable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	return svc, ok
}

// teardown terminates every attached service and closes both connections.
// Called once the session is removed from the registry (§4.6: "destroyed
// when either connection reports a terminal error").
func (s *Session) teardown() {
	s.mu.Lock()
	svcs := make([]Terminable, 0, len(s.services))
	for _, svc := range s.services {
		svcs = append(svcs, svc)
	}
	s.services = make(map[string]Terminable)
	s.mu.Unlock()

	for _, svc := range svcs {
		svc.Terminate()
	}
	if s.MsgConn != nil {
		_ = s.MsgConn.Close()
	}
	if s.DataConn != nil {
		_ = s.DataConn.Close()
	}
}

// Registry maintains the notReady/connected maps keyed by remote address
// described in §4.6, and enforces single-client admission.
type Registry struct {
	mu        sync.Mutex
	notReady  map[string]*Session
	connected map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		notReady:  make(map[string]*Session),
		connected: make(map[string]*Session),
	}
}

// hostKey reduces a remote address to its host, so that the message and
// data connections one client opens from different source ports share a
// key. An address without a port (such as net.Pipe's) is used whole.
func hostKey(a net.Addr) string {
	s := a.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// AddMsgConn merges an arriving message connection into the notReady map,
// keyed by its remote host, and promotes the session to connected once
// its data connection has also arrived. ok is false when the registry
// already holds a connected session — the caller must close mc (§4.6
// admission: single active client).
func (r *Registry) AddMsgConn(mc *netconn.MsgConn) (sess *Session, ready bool, ok bool) {
	addr := hostKey(mc.RemoteAddr())

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.connected) > 0 {
		return nil, false, false
	}
	sess = r.notReady[addr]
	if sess == nil {
		sess = newSession(addr)
		r.notReady[addr] = sess
	}
	sess.MsgConn = mc
	ready = r.promoteLocked(sess)
	return sess, ready, true
}

// AddDataConn is the data-connection counterpart of AddMsgConn.
func (r *Registry) AddDataConn(dc *netconn.DataConn) (sess *Session, ready bool, ok bool) {
	addr := hostKey(dc.RemoteAddr())

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.connected) > 0 {
		return nil, false, false
	}
	sess = r.notReady[addr]
	if sess == nil {
		sess = newSession(addr)
		r.notReady[addr] = sess
	}
	sess.DataConn = dc
	ready = r.promoteLocked(sess)
	return sess, ready, true
}

// promoteLocked migrates sess from notReady to connected once both
// connections are present. Caller must hold r.mu.
func (r *Registry) promoteLocked(sess *Session) bool {
	if !sess.Ready() {
		return false
	}
	delete(r.notReady, sess.RemoteAddr)
	r.connected[sess.RemoteAddr] = sess
	return true
}

// Remove tears down sess: terminates its services, closes both
// connections, and drops it from whichever map currently holds it.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	delete(r.notReady, sess.RemoteAddr)
	delete(r.connected, sess.RemoteAddr)
	r.mu.Unlock()

	sess.teardown()
}

// Connected reports whether a client session is currently active.
func (r *Registry) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connected) > 0
}
