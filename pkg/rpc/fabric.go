package rpc

import (
	"fmt"

	"github.com/cuemby/hive/pkg/types"
)

// Callable is satisfied by *registry.Instance; kept as an interface here so
// this package never imports registry (the dependency runs the other way:
// cmd/hive wires registry.Manager into a Builder via InstanceLookup).
type Callable interface {
	Call(fn string, args []byte) ([]byte, error)
	Status() types.InstanceStatus
}

// InstanceLookup is the minimal registry surface the fabric needs: look up
// a shared instance handle by id. Callers typically adapt it from
// registry.Manager.InstanceByID.
type InstanceLookup func(id string) (Callable, bool)

// Builder constructs a Router per Interface Descriptor, binding its
// instance subset to live instance handles from the registry.
type Builder struct {
	instances InstanceLookup
	endpoint  types.Endpoint
}

// NewBuilder creates a fabric Builder bound to a registry-like lookup and
// the container's P2P endpoint, surfaced through info/state.
func NewBuilder(instances InstanceLookup, endpoint types.Endpoint) *Builder {
	return &Builder{instances: instances, endpoint: endpoint}
}

// Build returns a Router for iface and never fails. Instance handles are
// looked up per request, so an id with no live handle surfaces as an
// internal error on the call that names it, not from Build.
func (b *Builder) Build(iface types.InterfaceDescriptor) (*Router, error) {
	caller := func(instanceID, fn string, args []byte) ([]byte, error) {
		inst, ok := b.instances(instanceID)
		if !ok {
			return nil, fmt.Errorf("instance %q not found", instanceID)
		}
		return inst.Call(fn, args)
	}
	status := func(instanceID string) (types.InstanceStatus, bool) {
		inst, ok := b.instances(instanceID)
		if !ok {
			return "", false
		}
		return inst.Status(), true
	}
	return NewRouterWithState(iface.InstanceIDSet, caller, b.endpoint, status), nil
}
