// Package types is the shared vocabulary of the hive container: the
// declarative descriptors parsed from configuration (Agent, ModuleDescriptor,
// InstanceDescriptor, Bridge, InterfaceDescriptor), the runtime values they
// materialize into (ModuleArtifact, Endpoint, Signal), and the error kinds
// every other package returns.
package types
