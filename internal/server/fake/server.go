// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mia-platform/feedagg/internal/server"
)

var _ server.Server = &Server{}

type Route struct {
	Method  string
	Path    string
	Handler server.Handler
}

// Server keeps the registered routes in memory and lets tests invoke them directly.
type Server struct {
	tb testing.TB

	lock             sync.Mutex
	RegisteredRoutes []Route

	startOnce   sync.Once
	stopOnce    sync.Once
	startedChan chan struct{}
	stoppedChan chan struct{}
}

func NewFakeServer(tb testing.TB) *Server {
	tb.Helper()

	return &Server{
		tb:          tb,
		startedChan: make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

func (s *Server) AddRoute(method string, path string, handler server.Handler) {
	s.tb.Helper()
	s.lock.Lock()
	defer s.lock.Unlock()
	s.RegisteredRoutes = append(s.RegisteredRoutes, Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// Call invokes the handler registered for method and path.
func (s *Server) Call(ctx context.Context, method, path string, body []byte) (any, error) {
	s.tb.Helper()
	s.lock.Lock()
	routes := s.RegisteredRoutes
	s.lock.Unlock()

	for _, route := range routes {
		if route.Method == method && route.Path == path {
			return route.Handler(ctx, body)
		}
	}
	return nil, fmt.Errorf("no route registered for %s %s", method, path)
}

// Start signals the start and blocks until Stop is called.
func (s *Server) Start() error {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
	<-s.stoppedChan
	return nil
}

func (s *Server) Stop() error {
	s.tb.Helper()
	s.stopOnce.Do(func() { close(s.stoppedChan) })
	return nil
}

func (s *Server) StartAsync(_ context.Context) {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
}

func (s *Server) StartedServer() <-chan struct{} {
	s.tb.Helper()
	return s.startedChan
}

func (s *Server) StoppedServer() <-chan struct{} {
	s.tb.Helper()
	return s.stoppedChan
}
