// Package network supervises the optional P2P helper process that backs
// network-capable instances. The helper is an external binary spoken to
// over an IPC endpoint; this package only spawns it, waits for it to
// become ready, and exposes the endpoint it published.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/types"
)

// sidecarConfig is written as YAML into the helper's work directory before
// it is spawned, so the helper can be handed its bootstrap set and mode
// without relying solely on argv (which some process supervisors truncate
// or fail to preserve across exec wrappers).
type sidecarConfig struct {
	Mode           string   `yaml:"mode"`
	BootstrapNodes []string `yaml:"bootstrap_nodes"`
}

const readyPollInterval = 200 * time.Millisecond

// Sidecar supervises a single P2P helper process for the lifetime of a
// container. It is a no-op (EnsureStarted returns immediately) when the
// descriptor carries an ExplicitIPCEndpoint, which lets tests and
// single-instance containers skip spawning anything at all.
type Sidecar struct {
	descriptor types.NetworkDescriptor

	mu       sync.Mutex
	cmd      *exec.Cmd
	endpoint types.Endpoint
	started  bool
	killOnce sync.Once

	// exited is closed by monitor once cmd.Wait has returned; it is the
	// sole caller of Wait, so Stop observes completion through this
	// channel instead of calling Wait itself.
	exited  chan struct{}
	waitErr error
}

// NewSidecar returns a supervisor bound to descriptor. Nothing is spawned
// until EnsureStarted is called.
func NewSidecar(descriptor types.NetworkDescriptor) *Sidecar {
	return &Sidecar{descriptor: descriptor}
}

// EnsureStarted spawns the helper process if one isn't already running and
// blocks until it reports readiness, returning the Endpoint instances
// should dial. Calling it again once started is a cheap no-op.
func (s *Sidecar) EnsureStarted(ctx context.Context) (types.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.descriptor.ExplicitIPCEndpoint != "" {
		return types.Endpoint{Name: "explicit", URI: s.descriptor.ExplicitIPCEndpoint, Mock: true}, nil
	}

	if s.started {
		return s.endpoint, nil
	}

	logger := log.WithComponent("sidecar")

	if s.descriptor.HelperBinaryPath == "" {
		return types.Endpoint{}, &types.NetworkSpawnError{Cause: fmt.Errorf("network descriptor has no helper binary path")}
	}

	if err := os.MkdirAll(s.descriptor.WorkDir, 0o755); err != nil {
		return types.Endpoint{}, &types.NetworkSpawnError{Cause: fmt.Errorf("create work dir: %w", err)}
	}

	if err := s.writeConfig(); err != nil {
		return types.Endpoint{}, &types.NetworkSpawnError{Cause: err}
	}

	endpointFile := filepath.Join(s.descriptor.WorkDir, "endpoint.json")
	_ = os.Remove(endpointFile)

	args := []string{"--work-dir", s.descriptor.WorkDir, "--endpoint-file", endpointFile, "--mode", s.descriptor.Mode}
	for _, node := range s.descriptor.BootstrapNodes {
		args = append(args, "--bootstrap", node)
	}

	cmd := exec.CommandContext(ctx, s.descriptor.HelperBinaryPath, args...)
	cmd.Env = append(os.Environ(),
		"MODE="+s.descriptor.Mode,
		"WORK_DIR="+s.descriptor.WorkDir,
		"IPC_SOCKET=tcp://127.0.0.1:*",
	)
	cmd.Stdout = &logWriter{logger: logger, errLevel: false}
	cmd.Stderr = &logWriter{logger: logger, errLevel: true}

	if err := cmd.Start(); err != nil {
		return types.Endpoint{}, &types.NetworkSpawnError{Cause: fmt.Errorf("start helper: %w", err)}
	}
	s.cmd = cmd
	s.exited = make(chan struct{})
	go s.monitor(ctx, logger)

	endpoint, err := s.waitForEndpoint(ctx, endpointFile, 30*time.Second)
	if err != nil {
		s.kill()
		return types.Endpoint{}, &types.NetworkSpawnError{Cause: err}
	}

	s.endpoint = endpoint
	s.started = true
	logger.Info().Str("endpoint", endpoint.URI).Msg("p2p helper ready")

	return endpoint, nil
}

// Stop terminates the helper process, preferring a graceful SIGTERM before
// force-killing. Safe to call when nothing was started. Waits for monitor's
// single cmd.Wait call to complete rather than calling Wait itself.
func (s *Sidecar) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	exited := s.exited
	if cmd == nil || cmd.Process == nil {
		s.mu.Unlock()
		return nil
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	s.mu.Unlock()

	select {
	case <-time.After(10 * time.Second):
		s.kill()
		<-exited
	case <-exited:
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

func (s *Sidecar) kill() {
	s.killOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
}

func (s *Sidecar) writeConfig() error {
	data, err := yaml.Marshal(sidecarConfig{
		Mode:           s.descriptor.Mode,
		BootstrapNodes: s.descriptor.BootstrapNodes,
	})
	if err != nil {
		return fmt.Errorf("marshal sidecar config: %w", err)
	}
	path := filepath.Join(s.descriptor.WorkDir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar config: %w", err)
	}
	return nil
}

func (s *Sidecar) waitForEndpoint(ctx context.Context, path string, timeout time.Duration) (types.Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return types.Endpoint{}, fmt.Errorf("timed out waiting for helper endpoint file")
		case <-ticker.C:
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var endpoint types.Endpoint
			if err := json.Unmarshal(data, &endpoint); err != nil {
				continue
			}
			return endpoint, nil
		}
	}
}

// monitor is the sole caller of cmd.Wait for this process; Stop observes
// completion through the exited channel instead of waiting itself.
func (s *Sidecar) monitor(ctx context.Context, logger zerolog.Logger) {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.waitErr = err
	exited := s.exited
	s.mu.Unlock()
	close(exited)

	select {
	case <-ctx.Done():
		return
	default:
	}

	if err != nil {
		logger.Error().Err(err).Msg("p2p helper exited unexpectedly")
	} else {
		logger.Warn().Msg("p2p helper exited unexpectedly with status 0")
	}
}

type logWriter struct {
	logger   zerolog.Logger
	errLevel bool
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w.errLevel {
		w.logger.Error().Msg(string(p))
	} else {
		w.logger.Info().Msg(string(p))
	}
	return len(p), nil
}

var _ io.Writer = (*logWriter)(nil)
