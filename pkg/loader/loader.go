// Package loader resolves module file references to in-memory module
// artifacts. The bytecode execution engine itself is out of scope; this
// package only materializes the opaque bytecode blob and its declared
// capability surface.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/hive/pkg/types"
)

// Loader resolves a module file reference to a Module Artifact. It is a
// replaceable collaborator so tests can supply synthetic artifacts keyed by
// path — model it as a polymorphic capability, not mutable global state.
type Loader interface {
	Load(fileRef string) (*types.ModuleArtifact, error)
}

// manifest is the sidecar capability declaration read alongside a module's
// bytecode file, named "<fileRef>.manifest.json".
type manifest struct {
	Capabilities map[string][]string `json:"capabilities"`
}

// FilesystemLoader is the default Loader: it reads a filesystem path as raw
// bytecode and an adjacent manifest file for the capability surface.
// Invocation is memoized per unique file reference for the lifetime of the
// loader, matching the "at most once per file reference per load_config
// call" contract.
type FilesystemLoader struct {
	mu    sync.Mutex
	cache map[string]*types.ModuleArtifact
}

// NewFilesystemLoader creates a Loader backed by the local filesystem.
func NewFilesystemLoader() *FilesystemLoader {
	return &FilesystemLoader{cache: make(map[string]*types.ModuleArtifact)}
}

// Load reads fileRef and its manifest, caching the result.
func (l *FilesystemLoader) Load(fileRef string) (*types.ModuleArtifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if artifact, ok := l.cache[fileRef]; ok {
		return artifact, nil
	}

	bytecode, err := os.ReadFile(fileRef)
	if err != nil {
		return nil, &types.ConfigError{Reason: fmt.Sprintf("could not load module file %q: %v", fileRef, err)}
	}

	caps, err := readManifest(fileRef)
	if err != nil {
		return nil, &types.ConfigError{Reason: fmt.Sprintf("could not load manifest for %q: %v", fileRef, err)}
	}

	artifact := &types.ModuleArtifact{
		FileRef:      fileRef,
		Bytecode:     bytecode,
		Capabilities: caps,
	}
	l.cache[fileRef] = artifact
	return artifact, nil
}

func readManifest(fileRef string) (map[string][]string, error) {
	manifestPath := fileRef + ".manifest.json"
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		// No declared capability surface; the module exposes none.
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", filepath.Base(manifestPath), err)
	}
	return m.Capabilities, nil
}

// StaticLoader is a test double returning pre-seeded artifacts keyed by
// file reference, or a configured error for unknown references.
type StaticLoader struct {
	Artifacts map[string]*types.ModuleArtifact
	Err       map[string]error
}

// Load implements Loader by looking up the fixed artifact map.
func (l *StaticLoader) Load(fileRef string) (*types.ModuleArtifact, error) {
	if err, ok := l.Err[fileRef]; ok {
		return nil, err
	}
	if artifact, ok := l.Artifacts[fileRef]; ok {
		return artifact, nil
	}
	return nil, &types.ConfigError{Reason: fmt.Sprintf("could not load module file %q", fileRef)}
}
