// Package storage materializes a StorageDescriptor into a Handle: a
// key/value surface private to one instance. Memory descriptors get a
// process-local map; File descriptors get a dedicated bbolt database file
// under the descriptor's path, created on first use.
package storage
