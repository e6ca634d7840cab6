package transport

import (
	"context"
	"sync"

	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/rpc"
	"github.com/cuemby/hive/pkg/types"
)

// RouterBuilder builds the Router for one Interface Descriptor, typically
// rpc.Builder.Build.
type RouterBuilder func(types.InterfaceDescriptor) (*rpc.Router, error)

// Supervisor starts and tracks one Worker per running Interface
// Descriptor.
type Supervisor struct {
	build RouterBuilder

	mu      sync.Mutex
	workers map[string]*Worker
}

// NewSupervisor creates a Supervisor that builds routers via build.
func NewSupervisor(build RouterBuilder) *Supervisor {
	return &Supervisor{build: build, workers: make(map[string]*Worker)}
}

// StartInterface starts the worker for a single Interface Descriptor.
// Starting an id that is already running yields InterfaceAlreadyRunning.
func (s *Supervisor) StartInterface(descriptor types.InterfaceDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.workers[descriptor.ID]; running {
		return &types.InterfaceAlreadyRunning{ID: descriptor.ID}
	}

	router, err := s.build(descriptor)
	if err != nil {
		return err
	}

	worker := NewWorker(descriptor, router)
	if err := worker.Start(); err != nil {
		return err
	}

	s.workers[descriptor.ID] = worker
	metrics.InterfacesRunning.Set(float64(len(s.workers)))
	return nil
}

// StartAll starts every configured interface, aborting on the first
// failure.
func (s *Supervisor) StartAll(interfaces []types.InterfaceDescriptor) error {
	for _, iface := range interfaces {
		if err := s.StartInterface(iface); err != nil {
			return err
		}
	}
	return nil
}

// StopInterface stops a single running interface by id.
func (s *Supervisor) StopInterface(ctx context.Context, id string) error {
	s.mu.Lock()
	worker, ok := s.workers[id]
	if ok {
		delete(s.workers, id)
		metrics.InterfacesRunning.Set(float64(len(s.workers)))
	}
	s.mu.Unlock()

	if !ok {
		return &types.InterfaceNotFound{ID: id}
	}
	return worker.Stop(ctx)
}

// StopAll stops every running interface worker. Recommended symmetric
// teardown for the container's shutdown path.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.StopInterface(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Running reports whether an interface id currently has a live worker.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[id]
	return ok
}
