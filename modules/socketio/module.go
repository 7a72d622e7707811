// Package socketio provides the `socketio_emit` step handler: connect to a
// socket.io server, optionally emit an event and wait for a reply event.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input holds the handler's arguments.
type Input struct {
	URL                string
	Namespace          string
	OnEvent            string
	EmitEvent          string
	EmitData           any
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// opResult safely passes results through the done channel.
type opResult struct {
	value any
	err   error
}

// rawInput is the argument shape as declared in a pipeline.
type rawInput struct {
	URL                string     `cty:"url"`
	OnEvent            string     `cty:"on_event"`
	Namespace          *string    `cty:"namespace"`
	EmitEvent          *string    `cty:"emit_event"`
	EmitData           *cty.Value `cty:"emit_data"`
	Timeout            *string    `cty:"timeout"`
	InsecureSkipVerify *bool      `cty:"insecure_skip_verify"`
}

// ParseInput reads the handler's arguments. url and on_event are required;
// timeout defaults to 10s.
func ParseInput(args step.Args) (*Input, error) {
	var raw rawInput
	if err := args.Decode(&raw); err != nil {
		return nil, err
	}
	in := &Input{URL: raw.URL, OnEvent: raw.OnEvent, Namespace: "/", Timeout: defaultTimeout}
	if raw.Namespace != nil {
		in.Namespace = *raw.Namespace
	}
	if raw.EmitEvent != nil {
		in.EmitEvent = *raw.EmitEvent
	}
	if raw.EmitData != nil {
		data, err := params.FromCty(*raw.EmitData)
		if err != nil {
			return nil, fmt.Errorf("emit_data: %w", err)
		}
		in.EmitData = data
	}
	if raw.Timeout != nil {
		d, err := time.ParseDuration(*raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", *raw.Timeout, err)
		}
		in.Timeout = d
	}
	if raw.InsecureSkipVerify != nil {
		in.InsecureSkipVerify = *raw.InsecureSkipVerify
	}
	return in, nil
}

// Emit is the step handler.
func (m *Module) Emit(ctx context.Context, args step.Args) (any, error) {
	input, err := ParseInput(args)
	if err != nil {
		return nil, step.Permanent(err)
	}

	logger := ctxlog.FromContext(ctx).With("handler", "socketio_emit", "url", input.URL, "onEvent", input.OnEvent, "emitEvent", input.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var isConnected atomic.Bool

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, input.Timeout)
	defer cancel()

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, step.Permanent(fmt.Errorf("failed to parse URL: %w", err))
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Successfully connected", "namespace", input.Namespace, "sid", io.Id())
		if input.EmitEvent != "" {
			logger.Info("Emitting event", "event", input.EmitEvent)
			io.Emit(input.EmitEvent, input.EmitData)
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		select {
		case done <- opResult{err: err}:
		default:
		}
	})

	io.On(types.EventName(input.OnEvent), func(data ...any) {
		var responseData any
		if len(data) > 0 {
			responseData = data[0]
		}
		select {
		case done <- opResult{value: map[string]any{"response_data": responseData}}:
		default:
		}
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return nil, fmt.Errorf("timed out after connecting while waiting for event '%s'", input.OnEvent)
		}
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("socketio_emit", m.Emit)
}
