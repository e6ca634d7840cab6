package config

import (
	"fmt"
	"sort"

	"github.com/cuemby/hive/pkg/types"
)

// Validation is the result of a successful check_consistency call: the
// configuration plus fast read-side lookups and the topological order in
// which instances must be built (callees before callers).
type Validation struct {
	cfg *types.Configuration

	agentsByID     map[string]*types.Agent
	modulesByID    map[string]*types.ModuleDescriptor
	instancesByID  map[string]*types.InstanceDescriptor
	interfacesByID map[string]*types.InterfaceDescriptor
	bridgesByCaller map[string][]types.Bridge

	// TopoOrder lists instance ids such that every bridge's callee
	// precedes its caller. Ties break lexicographically by id.
	TopoOrder []string
}

// Validate runs every check in spec §4.C and, on success, returns a
// Validation carrying the topological order and read-side lookups.
func Validate(cfg *types.Configuration) (*Validation, error) {
	v := &Validation{
		cfg:             cfg,
		agentsByID:      make(map[string]*types.Agent),
		modulesByID:     make(map[string]*types.ModuleDescriptor),
		instancesByID:   make(map[string]*types.InstanceDescriptor),
		interfacesByID:  make(map[string]*types.InterfaceDescriptor),
		bridgesByCaller: make(map[string][]types.Bridge),
	}

	if err := v.indexAndCheckDuplicates(cfg); err != nil {
		return nil, err
	}
	if err := v.checkReferenceIntegrity(cfg); err != nil {
		return nil, err
	}
	order, err := v.topoSort(cfg)
	if err != nil {
		return nil, err
	}
	v.TopoOrder = order
	if err := v.checkInterfaceSubsets(cfg); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *Validation) indexAndCheckDuplicates(cfg *types.Configuration) error {
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if _, exists := v.agentsByID[a.ID]; exists {
			return &types.ConfigError{Reason: fmt.Sprintf("duplicate agent id %q", a.ID)}
		}
		v.agentsByID[a.ID] = a
	}
	for i := range cfg.Modules {
		m := &cfg.Modules[i]
		if _, exists := v.modulesByID[m.ID]; exists {
			return &types.ConfigError{Reason: fmt.Sprintf("duplicate module id %q", m.ID)}
		}
		v.modulesByID[m.ID] = m
	}
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if _, exists := v.instancesByID[inst.ID]; exists {
			return &types.ConfigError{Reason: fmt.Sprintf("duplicate instance id %q", inst.ID)}
		}
		v.instancesByID[inst.ID] = inst
	}
	for i := range cfg.Interfaces {
		iface := &cfg.Interfaces[i]
		if _, exists := v.interfacesByID[iface.ID]; exists {
			return &types.ConfigError{Reason: fmt.Sprintf("duplicate interface id %q", iface.ID)}
		}
		v.interfacesByID[iface.ID] = iface
	}
	return nil
}

func (v *Validation) checkReferenceIntegrity(cfg *types.Configuration) error {
	for _, inst := range cfg.Instances {
		if _, ok := v.modulesByID[inst.ModuleID]; !ok {
			return &types.ConfigError{Reason: fmt.Sprintf("instance %q references unknown module %q", inst.ID, inst.ModuleID)}
		}
		if _, ok := v.agentsByID[inst.AgentID]; !ok {
			return &types.ConfigError{Reason: fmt.Sprintf("instance %q references unknown agent %q", inst.ID, inst.AgentID)}
		}
	}
	for _, b := range cfg.Bridges {
		if b.CallerID == b.CalleeID {
			return &types.ConfigError{Reason: fmt.Sprintf("bridge caller and callee must differ, got %q", b.CallerID)}
		}
		if _, ok := v.instancesByID[b.CallerID]; !ok {
			return &types.ConfigError{Reason: fmt.Sprintf("bridge references unknown caller instance %q", b.CallerID)}
		}
		if _, ok := v.instancesByID[b.CalleeID]; !ok {
			return &types.ConfigError{Reason: fmt.Sprintf("bridge references unknown callee instance %q", b.CalleeID)}
		}
		v.bridgesByCaller[b.CallerID] = append(v.bridgesByCaller[b.CallerID], b)
	}
	return nil
}

func (v *Validation) checkInterfaceSubsets(cfg *types.Configuration) error {
	for _, iface := range cfg.Interfaces {
		for _, id := range iface.InstanceIDSet {
			if _, ok := v.instancesByID[id]; !ok {
				return &types.ConfigError{Reason: fmt.Sprintf("interface %q references unknown instance %q", iface.ID, id)}
			}
		}
	}
	return nil
}

// topoSort orders instance ids so every bridge's callee precedes its
// caller (Kahn's algorithm over the callee->caller edge direction, ties
// broken lexicographically for deterministic load_config behavior).
func (v *Validation) topoSort(cfg *types.Configuration) ([]string, error) {
	indegree := make(map[string]int, len(cfg.Instances))
	edges := make(map[string][]string, len(cfg.Instances)) // callee -> [caller, ...]

	ids := make([]string, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		indegree[inst.ID] = 0
		ids = append(ids, inst.ID)
	}
	sort.Strings(ids)

	for _, b := range cfg.Bridges {
		edges[b.CalleeID] = append(edges[b.CalleeID], b.CallerID)
		indegree[b.CallerID]++
	}

	var ready []string
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		callers := append([]string(nil), edges[next]...)
		sort.Strings(callers)
		for _, caller := range callers {
			indegree[caller]--
			if indegree[caller] == 0 {
				ready = insertSorted(ready, caller)
			}
		}
	}

	if len(order) != len(ids) {
		involved := make([]string, 0)
		for id, deg := range indegree {
			if deg > 0 {
				involved = append(involved, id)
			}
		}
		sort.Strings(involved)
		return nil, &types.BridgeCycleError{InvolvedIDs: involved}
	}

	return order, nil
}

func insertSorted(sorted []string, value string) []string {
	i := sort.SearchStrings(sorted, value)
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = value
	return sorted
}

// InstanceByID returns the instance descriptor for id, if any.
func (v *Validation) InstanceByID(id string) (*types.InstanceDescriptor, bool) {
	inst, ok := v.instancesByID[id]
	return inst, ok
}

// AgentByID returns the agent descriptor for id, if any.
func (v *Validation) AgentByID(id string) (*types.Agent, bool) {
	a, ok := v.agentsByID[id]
	return a, ok
}

// ModuleByID returns the module descriptor for id, if any.
func (v *Validation) ModuleByID(id string) (*types.ModuleDescriptor, bool) {
	m, ok := v.modulesByID[id]
	return m, ok
}

// InterfaceByID returns the interface descriptor for id, if any.
func (v *Validation) InterfaceByID(id string) (*types.InterfaceDescriptor, bool) {
	iface, ok := v.interfacesByID[id]
	return iface, ok
}

// BridgesWhereCaller returns every bridge where id is the caller.
func (v *Validation) BridgesWhereCaller(id string) []types.Bridge {
	return v.bridgesByCaller[id]
}

// Configuration returns the validated configuration.
func (v *Validation) Configuration() *types.Configuration {
	return v.cfg
}
