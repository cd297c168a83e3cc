// Package editor is the editor-side half of the bridge protocol: the
// dispatch core that editor integrations embed to answer routed commands
// and resource fetches.
//
// A Dispatcher holds two independent registries, commands keyed by prefix
// and resources keyed by name, each entry with a runtime enable flag.
// Incoming envelopes are classified by their type field, parsed as
// "prefix.action", and executed on a MainThread pump so handlers always run
// on the host's UI thread. Client attaches the dispatcher to a bridge in
// dial mode; Server does the same in listen mode.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// pingCommand is answered inline without touching the registries or the
// main thread, so liveness probes work even while a handler wedges the pump.
const pingCommand = "ping"

// CommandFunc executes one command action. It runs on the main thread.
type CommandFunc func(action string, params map[string]any) (any, error)

// ResourceFunc serves one resource fetch action. It runs on the main thread.
type ResourceFunc func(action string, params map[string]any) (any, error)

type commandEntry struct {
	fn      CommandFunc
	enabled bool
}

type resourceEntry struct {
	fn      ResourceFunc
	enabled bool
}

// Dispatcher routes decoded envelopes to registered handlers and shapes
// their outcome into response envelopes. Safe for concurrent use.
type Dispatcher struct {
	main   *MainThread
	wait   time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	commands  map[string]*commandEntry
	resources map[string]*resourceEntry
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchWait overrides the main-thread wait applied to every
// execution. Values <= 0 keep DefaultDispatchWait.
func WithDispatchWait(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.wait = d
		}
	}
}

// WithDispatchLogger sets the logger used for dispatch diagnostics.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(dp *Dispatcher) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher that marshals execution onto main.
func NewDispatcher(main *MainThread, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		main:      main,
		wait:      DefaultDispatchWait,
		logger:    slog.Default(),
		commands:  make(map[string]*commandEntry),
		resources: make(map[string]*resourceEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterCommand binds fn to a command prefix, enabled. Registering an
// existing prefix replaces its handler and re-enables it.
func (d *Dispatcher) RegisterCommand(prefix string, fn CommandFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[prefix] = &commandEntry{fn: fn, enabled: true}
}

// RegisterResource binds fn to a resource name, enabled.
func (d *Dispatcher) RegisterResource(name string, fn ResourceFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[name] = &resourceEntry{fn: fn, enabled: true}
}

// SetCommandEnabled flips a command prefix's enable flag. It reports
// whether the prefix is registered.
func (d *Dispatcher) SetCommandEnabled(prefix string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.commands[prefix]
	if ok {
		entry.enabled = enabled
	}
	return ok
}

// SetResourceEnabled flips a resource's enable flag. It reports whether the
// resource is registered.
func (d *Dispatcher) SetResourceEnabled(name string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.resources[name]
	if ok {
		entry.enabled = enabled
	}
	return ok
}

// Dispatch executes one decoded envelope and always produces a response
// echoing the envelope's id, including for every rejection path.
func (d *Dispatcher) Dispatch(ctx context.Context, env *wire.Envelope) wire.Response {
	if env.Command == pingCommand {
		return successResponse(env.ID, map[string]any{"message": "pong"})
	}

	switch env.Type {
	case wire.TypeCommand, wire.TypeResource:
	default:
		return errorResponse(env.ID, fmt.Sprintf("unknown message type %q", env.Type))
	}

	if env.Command == "" {
		return errorResponse(env.ID, "missing command")
	}
	prefix, action, ok := strings.Cut(env.Command, ".")
	if !ok || prefix == "" || action == "" {
		return errorResponse(env.ID, fmt.Sprintf("malformed command %q: expected prefix.action", env.Command))
	}

	params := env.Params
	if params == nil {
		params = map[string]any{}
	}

	var fn func() (any, error)
	if env.Type == wire.TypeResource {
		d.mu.Lock()
		entry, found := d.resources[prefix]
		if !found {
			d.mu.Unlock()
			return errorResponse(env.ID, fmt.Sprintf("unknown resource %q", prefix))
		}
		if !entry.enabled {
			d.mu.Unlock()
			return errorResponse(env.ID, "resource disabled")
		}
		handler := entry.fn
		d.mu.Unlock()
		fn = func() (any, error) { return handler(action, params) }
	} else {
		d.mu.Lock()
		entry, found := d.commands[prefix]
		if !found {
			d.mu.Unlock()
			return errorResponse(env.ID, fmt.Sprintf("unknown command prefix %q", prefix))
		}
		if !entry.enabled {
			d.mu.Unlock()
			return errorResponse(env.ID, "prefix disabled")
		}
		handler := entry.fn
		d.mu.Unlock()
		fn = func() (any, error) { return handler(action, params) }
	}

	result, err := d.main.Do(ctx, d.wait, fn)
	if err != nil {
		d.logger.Warn("handler failed",
			"command", env.Command,
			"type", env.Type,
			"id", env.ID,
			"error", err)
		return errorResponse(env.ID, err.Error())
	}
	return successResponse(env.ID, result)
}

// successResponse keeps the result key present even for handlers that
// return nothing, which is what response correlation on the bridge side
// expects of a success.
func successResponse(id string, result any) wire.Response {
	if result == nil {
		result = map[string]any{}
	}
	return wire.Response{Status: wire.StatusSuccess, Result: result, ID: id}
}

func errorResponse(id, message string) wire.Response {
	return wire.Response{Status: wire.StatusError, Message: message, ID: id}
}
