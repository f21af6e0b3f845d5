// Package netsvc manages the set of bound network listeners for a process's
// hosted services: one opaque service key per listener, all mutation
// serialized onto a single reactor goroutine so binds and rebinds never race
// with each other or with a listener mid-accept.
package netsvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/logger"
)

// shutdownGrace bounds how long StopService waits for in-flight requests to
// finish before forcing the listener closed.
const shutdownGrace = 5 * time.Second

// ErrPortInUse is returned by StartService when the requested port is
// already bound by something outside this manager.
var ErrPortInUse = errors.New("port already in use")

// ServiceSpec describes how to bind one service's listener.
type ServiceSpec struct {
	ServiceKey string
	Port       int
	UseTLS     bool
	TLSConfig  *tls.Config
	Handler    http.Handler
}

type boundService struct {
	spec   ServiceSpec
	server *http.Server
	ln     net.Listener
}

// command is a closure executed on the reactor goroutine.
type command struct {
	run  func()
	done chan struct{}
}

// Manager owns every bound listener for this process and serializes binds,
// rebinds and stops through a single reactor goroutine.
type Manager struct {
	services map[string]*boundService
	commands chan command
	stopCh   chan struct{}
}

// NewManager starts the reactor goroutine.
func NewManager() *Manager {
	m := &Manager{
		services: make(map[string]*boundService),
		commands: make(chan command),
		stopCh:   make(chan struct{}),
	}
	go m.reactorLoop()
	return m
}

func (m *Manager) reactorLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case cmd := <-m.commands:
			cmd.run()
			close(cmd.done)
		}
	}
}

func (m *Manager) onReactor(fn func()) {
	done := make(chan struct{})
	select {
	case m.commands <- command{run: fn, done: done}:
		<-done
	case <-m.stopCh:
	}
}

// StartService binds spec's listener. If a listener is already bound under
// spec.ServiceKey, it is stopped first and the new bind only proceeds once
// the old one has fully released its port (restart is stop-then-start, never
// concurrent). Rebinding with identical parameters to an already-bound
// service is a no-op.
func (m *Manager) StartService(spec ServiceSpec) error {
	var startErr error
	m.onReactor(func() {
		if existing, ok := m.services[spec.ServiceKey]; ok {
			if existing.spec.Port == spec.Port && existing.spec.UseTLS == spec.UseTLS {
				return
			}
			m.stopLocked(spec.ServiceKey)
		}
		startErr = m.startLocked(spec)
	})
	return startErr
}

func (m *Manager) startLocked(spec ServiceSpec) error {
	addr := fmt.Sprintf(":%d", spec.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(ErrPortInUse, "bind %s: %v", addr, err)
	}
	if spec.UseTLS {
		if spec.TLSConfig == nil {
			ln.Close()
			return errors.New("TLS requested but no TLS config supplied")
		}
		ln = tls.NewListener(ln, spec.TLSConfig)
	}

	srv := &http.Server{Handler: spec.Handler}
	bound := &boundService{spec: spec, server: srv, ln: ln}
	m.services[spec.ServiceKey] = bound

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ComponentLogger("netsvc").Errorw("listener exited with error",
				"service_key", spec.ServiceKey, "error", err)
		}
	}()

	logger.ComponentLogger("netsvc").Infow("service listener started",
		"service_key", spec.ServiceKey, "port", spec.Port, "tls", spec.UseTLS)
	return nil
}

// StopService unbinds the listener for serviceKey, if one is bound.
func (m *Manager) StopService(serviceKey string) {
	m.onReactor(func() {
		m.stopLocked(serviceKey)
	})
}

func (m *Manager) stopLocked(serviceKey string) {
	bound, ok := m.services[serviceKey]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := bound.server.Shutdown(ctx); err != nil {
		bound.ln.Close()
	}
	delete(m.services, serviceKey)
	logger.ComponentLogger("netsvc").Infow("service listener stopped", "service_key", serviceKey)
}

// SetServices reconciles the bound listener set to exactly match wanted:
// services currently bound but absent from wanted are stopped, services in
// wanted are started (or left alone if already bound with matching params).
func (m *Manager) SetServices(wanted []ServiceSpec) error {
	wantedKeys := make(map[string]struct{}, len(wanted))
	for _, s := range wanted {
		wantedKeys[s.ServiceKey] = struct{}{}
	}

	var toStop []string
	m.onReactor(func() {
		for key := range m.services {
			if _, keep := wantedKeys[key]; !keep {
				toStop = append(toStop, key)
			}
		}
	})
	for _, key := range toStop {
		m.StopService(key)
	}

	for _, spec := range wanted {
		if err := m.StartService(spec); err != nil {
			return errors.Wrapf(err, "start service %s", spec.ServiceKey)
		}
	}
	return nil
}

// Bound reports whether serviceKey currently has a live listener.
func (m *Manager) Bound(serviceKey string) bool {
	var bound bool
	m.onReactor(func() {
		_, bound = m.services[serviceKey]
	})
	return bound
}

// Shutdown stops every bound listener and the reactor goroutine.
func (m *Manager) Shutdown() {
	var keys []string
	m.onReactor(func() {
		for key := range m.services {
			keys = append(keys, key)
		}
	})
	for _, key := range keys {
		m.StopService(key)
	}
	close(m.stopCh)
}
