package nats

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an embedded NATS server, used by tests and the
// example binary so neither needs an external broker.
type EmbeddedServer struct {
	server *server.Server
	url    string
}

// StartEmbeddedServer starts an embedded NATS server with JetStream
// enabled on a random port.
func StartEmbeddedServer() (*EmbeddedServer, error) {
	// Without an explicit StoreDir the server defaults to a fixed path
	// under os.TempDir(), so separate embedded servers would share (and
	// replay) each other's JetStream state.
	storeDir, err := os.MkdirTemp("", "nats-embedded-")
	if err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded server: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded server not ready")
	}

	return &EmbeddedServer{server: s, url: s.ClientURL()}, nil
}

// URL returns the connection URL for the embedded server.
func (e *EmbeddedServer) URL() string { return e.url }

// Shutdown stops the embedded server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	if e.server != nil {
		e.server.Shutdown()
		e.server.WaitForShutdown()
	}
}

// TestConfig returns a bus config suitable for tests against an embedded
// server.
func TestConfig(serverURL string) Config {
	return Config{
		URL:            serverURL,
		StreamName:     "TEST_EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         time.Minute,
		MaxBytes:       10 * 1024 * 1024,
	}
}

// NewEmbeddedEventBus starts an embedded server and connects a bus to it.
func NewEmbeddedEventBus() (*EventBus, *EmbeddedServer, error) {
	srv, err := StartEmbeddedServer()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded server: %w", err)
	}

	bus, err := NewEventBus(TestConfig(srv.URL()))
	if err != nil {
		srv.Shutdown()
		return nil, nil, fmt.Errorf("create event bus: %w", err)
	}
	return bus, srv, nil
}
