// Package socketio forwards observer events to a socket.io server, which is
// how a dashboard receives live step status.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event name used when Config.Event is empty.
const DefaultEvent = "stepgrid:event"

// Config describes the server to connect to.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Sink is an observer.Observer that emits every event as one socket.io
// message carrying Event.Fields().
type Sink struct {
	event string
	emit  func(event string, payload map[string]any)
	close func()
}

var _ observer.Observer = (*Sink)(nil)

// NewSink builds a sink over an arbitrary emit function.
func NewSink(event string, emit func(event string, payload map[string]any)) *Sink {
	if event == "" {
		event = DefaultEvent
	}
	return &Sink{event: event, emit: emit, close: func() {}}
}

// Dial connects to the server and returns a sink bound to the connection.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	logger := ctxlog.FromContext(ctx).With("observer", "socketio", "url", cfg.URL)
	logger.Info("Connecting to socket.io server...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	s := NewSink(cfg.Event, func(event string, payload map[string]any) {
		io.Emit(event, payload)
	})
	s.close = func() { io.Disconnect() }
	return s, nil
}

func (s *Sink) OnEvent(_ context.Context, e observer.Event) {
	s.emit(s.event, e.Fields())
}

// Close disconnects from the server.
func (s *Sink) Close() error {
	s.close()
	return nil
}
