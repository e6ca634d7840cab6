// Package transport runs one Interface Descriptor's configured listener —
// websocket or HTTP — feeding every received request into that
// interface's JSON-RPC router. Each worker owns its listener for its
// whole lifetime and terminates only when the listener stops.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/rpc"
	"github.com/cuemby/hive/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Worker owns one Interface Descriptor's transport listener for its whole
// lifetime. Errors from the listener are logged through the container's
// log channel (tagged "container") and bubble up as the worker's terminal
// value from Wait.
type Worker struct {
	descriptor types.InterfaceDescriptor
	router     *rpc.Router
	logger     zerolog.Logger

	server   *http.Server
	doneCh   chan error
	doneOnce sync.Once
}

// NewWorker creates a Worker bound to an Interface Descriptor and its
// already-built Router.
func NewWorker(descriptor types.InterfaceDescriptor, router *rpc.Router) *Worker {
	return &Worker{
		descriptor: descriptor,
		router:     router,
		logger:     log.WithComponent("container").With().Str("interface_id", descriptor.ID).Logger(),
		doneCh:     make(chan error, 1),
	}
}

// Start launches the listener in the background according to the
// descriptor's driver kind and returns once it is accepting connections.
func (w *Worker) Start() error {
	mux := http.NewServeMux()
	switch w.descriptor.Driver {
	case types.DriverWebsocket:
		mux.HandleFunc("/", w.handleWebsocket)
	case types.DriverHTTP:
		mux.HandleFunc("/", w.handleHTTP)
	default:
		return fmt.Errorf("transport: unknown driver kind %q", w.descriptor.Driver)
	}

	w.server = &http.Server{Addr: fmt.Sprintf(":%d", w.descriptor.Port), Handler: mux}

	ln, err := listen(w.server.Addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", w.server.Addr, err)
	}

	go func() {
		err := w.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			w.logger.Error().Err(err).Msg("interface listener failed")
		}
		w.finish(err)
	}()

	return nil
}

func (w *Worker) finish(err error) {
	w.doneOnce.Do(func() {
		if err == http.ErrServerClosed {
			err = nil
		}
		w.doneCh <- err
		close(w.doneCh)
	})
}

// Wait blocks until the listener stops and returns its terminal error.
func (w *Worker) Wait() error {
	return <-w.doneCh
}

// Stop shuts down the listener gracefully.
func (w *Worker) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	return w.server.Shutdown(ctx)
}

func (w *Worker) handleHTTP(rw http.ResponseWriter, req *http.Request) {
	body, err := readAll(req)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	resp := w.recordAndHandle(body)
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (w *Worker) recordAndHandle(message []byte) *rpc.Response {
	timer := metrics.NewTimer()
	resp := w.router.Handle(message)
	outcome := "success"
	if resp.Error != nil {
		outcome = "error"
	}
	metrics.RPCRequestsTotal.WithLabelValues(w.descriptor.ID, outcome).Inc()
	timer.ObserveDurationVec(metrics.RPCRequestDuration, w.descriptor.ID)
	return resp
}

func (w *Worker) handleWebsocket(rw http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(rw, req, nil)
	if err != nil {
		w.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		resp := w.recordAndHandle(message)
		out, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}
