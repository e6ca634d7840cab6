// Package types defines the core data structures shared across the hive
// container: agents, modules, instances, bridges, interfaces, and the
// aggregate configuration that binds them together.
package types

import "time"

// Agent is an identity the container hosts instances on behalf of. It is
// immutable for the lifetime of the container.
type Agent struct {
	ID           string
	DisplayName  string
	PublicKeyB64 string // base64-encoded public key bytes, rehydrated by pkg/identity
	KeyFileRef   string
}

// ModuleDescriptor is a declarative pointer to a bytecode module. The
// Loader materializes it into a ModuleArtifact on demand.
type ModuleDescriptor struct {
	ID          string
	FileRef     string
	ContentHash string
}

// ModuleArtifact is the in-memory result of loading a ModuleDescriptor: the
// raw bytecode plus its declared capability surface. The bytecode execution
// engine itself is an external collaborator; the container only moves this
// value around and never interprets Bytecode.
type ModuleArtifact struct {
	FileRef      string
	Bytecode     []byte
	Capabilities map[string][]string // capability name -> function names
}

// StorageKind tags the variant of StorageDescriptor.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
)

// StorageDescriptor is the declarative form of per-instance storage. The
// Context Builder materializes it into a StorageHandle owned exclusively by
// one instance.
type StorageDescriptor struct {
	Kind StorageKind
	Path string // only meaningful when Kind == StorageFile
}

// InstanceDescriptor is the declarative triple binding a module to an agent
// plus storage.
type InstanceDescriptor struct {
	ID       string
	ModuleID string
	AgentID  string
	Storage  StorageDescriptor
}

// Bridge is a directed call link: Caller addresses Callee through the
// symbolic Handle inside its context's call-table.
type Bridge struct {
	CallerID string
	CalleeID string
	Handle   string
}

// DriverKind tags the variant of an interface's transport driver.
type DriverKind string

const (
	DriverWebsocket DriverKind = "websocket"
	DriverHTTP      DriverKind = "http"
)

// InterfaceDescriptor is a transport binding that multiplexes access to a
// subset of instances.
type InterfaceDescriptor struct {
	ID            string
	Driver        DriverKind
	Port          int
	InstanceIDSet []string
}

// NetworkDescriptor configures the optional P2P sidecar helper process.
type NetworkDescriptor struct {
	HelperBinaryPath    string
	WorkDir             string
	Mode                string
	BootstrapNodes      []string
	ExplicitIPCEndpoint string // if set, EnsureStarted returns this without spawning
}

// LoggerDescriptor selects the per-container logging channel.
type LoggerDescriptor struct {
	UseChannelLogger bool
	Level            string
	JSON             bool
}

// MetricsDescriptor configures the optional Prometheus scrape endpoint.
// A nil *MetricsDescriptor (the zero Configuration) serves no endpoint.
type MetricsDescriptor struct {
	Enabled    bool
	ListenAddr string
}

// Configuration is the aggregate parsed from the declarative document. It is
// immutable once accepted; re-loading replaces it wholesale.
type Configuration struct {
	Agents     []Agent
	Modules    []ModuleDescriptor
	Instances  []InstanceDescriptor
	Bridges    []Bridge
	Interfaces []InterfaceDescriptor
	Network    *NetworkDescriptor
	Logger     LoggerDescriptor
	Metrics    *MetricsDescriptor
}

// Endpoint is the JSON value describing the external P2P helper's IPC
// address, shared by every instance in one container.
type Endpoint struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	Mock bool   `json:"mock"`
}

// InstanceStatus tracks the running state of an instance inside the
// registry.
type InstanceStatus string

const (
	InstanceLoaded  InstanceStatus = "loaded"
	InstanceRunning InstanceStatus = "running"
	InstanceStopped InstanceStatus = "stopped"
)

// SignalKind is the asynchronous notification kind an instance fans out to
// the container's signal sink.
type SignalKind string

const (
	SignalInitApplication SignalKind = "InitApplication"
	SignalInitNetwork     SignalKind = "InitNetwork"
)

// Signal is a single asynchronous notification, ordered per-instance but
// free to interleave across instances.
type Signal struct {
	InstanceID string
	Kind       SignalKind
	At         time.Time
}
