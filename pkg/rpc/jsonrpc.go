// Package rpc builds the JSON-RPC 2.0 method router for one Interface
// Descriptor: it multiplexes by instance id first, then by a
// capability/function pair, and forwards the raw payload into the target
// instance's call entry point. It holds shared references to the very
// same Instance handles the registry owns, so routed calls observe live
// instance state.
package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cuemby/hive/pkg/types"
)

// Error codes from the JSON-RPC 2.0 specification that this fabric emits.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
)

// Request is one JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is one JSON-RPC 2.0 response object; exactly one of Result or
// Error is set on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error envelope.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

func resultResponse(id json.RawMessage, result interface{}) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternalError, err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: raw}
}

// Caller is the seam the router dispatches through: call fn on the
// instance identified by instanceID with the raw argument bytes.
type Caller func(instanceID, fn string, args []byte) ([]byte, error)

// StatusLookup reports an instance's current lifecycle status, for
// info/state. The bool is false when the instance id is unknown.
type StatusLookup func(instanceID string) (types.InstanceStatus, bool)

// InstanceState is one instance's entry in a ContainerState snapshot.
type InstanceState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ContainerState is the payload returned by info/state: every instance in
// the interface's subset paired with its current status, plus the
// container-wide P2P endpoint.
type ContainerState struct {
	Instances []InstanceState `json:"instances"`
	Endpoint  types.Endpoint  `json:"endpoint"`
}

// Router is the per-Interface-Descriptor JSON-RPC method table. It exposes
// the reflective methods "info/instances" (array of ids, per the required
// RPC protocol) and "info/state" (ids paired with status plus the P2P
// endpoint), plus, for every instance in its subset, a namespaced call
// surface "{instance_id}/{capability}/{function}".
type Router struct {
	instanceIDs []string
	caller      Caller
	endpoint    types.Endpoint
	status      StatusLookup
}

// NewRouter builds a Router exposing exactly instanceIDs, forwarding calls
// through caller (typically Manager.InstanceByID(id).Call). info/state
// reports every instance with an empty status; use NewRouterWithState to
// back it with a live status lookup and endpoint.
func NewRouter(instanceIDs []string, caller Caller) *Router {
	ids := append([]string(nil), instanceIDs...)
	return &Router{instanceIDs: ids, caller: caller}
}

// NewRouterWithState builds a Router whose info/state method reports each
// instance's live status (via status) alongside the container's P2P
// endpoint.
func NewRouterWithState(instanceIDs []string, caller Caller, endpoint types.Endpoint, status StatusLookup) *Router {
	r := NewRouter(instanceIDs, caller)
	r.endpoint = endpoint
	r.status = status
	return r
}

// Handle parses a single JSON-RPC 2.0 request, routes it, and returns the
// response object. It never returns an error itself: malformed input is
// reported through the JSON-RPC error envelope.
func (r *Router) Handle(raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "missing jsonrpc version or method")
	}

	if req.Method == "info/instances" {
		return resultResponse(req.ID, r.instanceIDs)
	}
	if req.Method == "info/state" {
		return resultResponse(req.ID, r.state())
	}

	instanceID, fn, err := r.splitMethod(req.Method)
	if err != nil {
		return errorResponse(req.ID, CodeMethodNotFound, err.Error())
	}

	out, err := r.caller(instanceID, fn, req.Params)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}

	return resultResponse(req.ID, string(out))
}

// state builds the info/state snapshot for this router's instance subset.
func (r *Router) state() ContainerState {
	snapshot := ContainerState{Endpoint: r.endpoint}
	for _, id := range r.instanceIDs {
		var status types.InstanceStatus
		if r.status != nil {
			status, _ = r.status(id)
		}
		snapshot.Instances = append(snapshot.Instances, InstanceState{ID: id, Status: string(status)})
	}
	return snapshot
}

// splitMethod parses "{instance_id}/{capability}/{function}" (or the
// 2-segment "{instance_id}/{function}" shorthand) and checks instanceID
// membership in the router's subset.
func (r *Router) splitMethod(method string) (instanceID, fn string, err error) {
	parts := strings.SplitN(method, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("method not found: %q", method)
	}
	instanceID, fn = parts[0], parts[1]

	found := false
	for _, id := range r.instanceIDs {
		if id == instanceID {
			found = true
			break
		}
	}
	if !found {
		return "", "", fmt.Errorf("method not found: %q", method)
	}
	return instanceID, fn, nil
}
