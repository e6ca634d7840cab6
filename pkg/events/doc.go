// Package events carries Signals (instance lifecycle notifications such
// as application and network initialization) from instances to whatever
// sink the container was built with.
package events
