package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// CommandHandler executes model-controlled actions on the editor's behalf.
type CommandHandler interface {
	// CommandPrefix is the handler's namespace; tools named
	// "<prefix>_<action>" route here.
	CommandPrefix() string
	Description() string

	// ToolDefinitions maps tool names to their definitions.
	ToolDefinitions() map[string]bridge.ToolDefinition

	// Execute runs one action. A result with "success": false is surfaced
	// to the caller as a handler failure.
	Execute(ctx context.Context, action string, params map[string]any) (map[string]any, error)
}

// ResourceHandler serves application-controlled data fetches.
type ResourceHandler interface {
	ResourceName() string
	Description() string

	// ResourceURITemplate is the resource's URI; "{param}" placeholders
	// make it a template whose matches are passed as params.
	ResourceURITemplate() string

	FetchResource(ctx context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error)
}

// PromptHandler exposes user-selected prompt templates.
type PromptHandler interface {
	PromptName() string
	Description() string

	// PromptDefinitions maps prompt names to their definitions.
	PromptDefinitions() map[string]bridge.PromptDefinition
}

type commandEntry struct {
	handler CommandHandler
	enabled bool
}

type resourceEntry struct {
	handler ResourceHandler
	enabled bool
}

type promptEntry struct {
	handler PromptHandler
	enabled bool
}

// Registry holds the three handler sub-registries with a per-handler enabled
// flag, default true. It shares the hub's coarse mutex, like the rest of the
// bridge's shared state.
type Registry struct {
	hub       *Hub
	commands  map[string]*commandEntry
	resources map[string]*resourceEntry
	prompts   map[string]*promptEntry
	logger    *slog.Logger
}

// NewRegistry creates an empty registry bound to the hub's lock domain.
func NewRegistry(hub *Hub, logger *slog.Logger) *Registry {
	return &Registry{
		hub:       hub,
		commands:  make(map[string]*commandEntry),
		resources: make(map[string]*resourceEntry),
		prompts:   make(map[string]*promptEntry),
		logger:    logger,
	}
}

// Register probes h against each handler interface and registers it in every
// sub-registry it satisfies. A handler may implement more than one kind.
// Returns an error if h satisfies none, or if a name is already taken.
func (r *Registry) Register(h any) error {
	matched := 0

	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()

	if ch, ok := h.(CommandHandler); ok {
		prefix := ch.CommandPrefix()
		if prefix == "" {
			return fmt.Errorf("command handler %T has empty prefix", h)
		}
		if _, dup := r.commands[prefix]; dup {
			return fmt.Errorf("command prefix %q already registered", prefix)
		}
		r.commands[prefix] = &commandEntry{handler: ch, enabled: true}
		matched++
	}
	if rh, ok := h.(ResourceHandler); ok {
		name := rh.ResourceName()
		if name == "" {
			return fmt.Errorf("resource handler %T has empty name", h)
		}
		if _, dup := r.resources[name]; dup {
			return fmt.Errorf("resource %q already registered", name)
		}
		r.resources[name] = &resourceEntry{handler: rh, enabled: true}
		matched++
	}
	if ph, ok := h.(PromptHandler); ok {
		name := ph.PromptName()
		if name == "" {
			return fmt.Errorf("prompt handler %T has empty name", h)
		}
		if _, dup := r.prompts[name]; dup {
			return fmt.Errorf("prompt handler %q already registered", name)
		}
		r.prompts[name] = &promptEntry{handler: ph, enabled: true}
		matched++
	}

	if matched == 0 {
		return fmt.Errorf("%T implements no handler interface", h)
	}
	return nil
}

// Command looks up a command handler by prefix, returning the handler, its
// enabled flag, and whether it exists.
func (r *Registry) Command(prefix string) (CommandHandler, bool, bool) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()

	e, ok := r.commands[prefix]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// Resource looks up a resource handler by name.
func (r *Registry) Resource(name string) (ResourceHandler, bool, bool) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()

	e, ok := r.resources[name]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// Prompt looks up a prompt handler by name.
func (r *Registry) Prompt(name string) (PromptHandler, bool, bool) {
	r.hub.mu.Lock()
	defer r.hub.mu.Unlock()

	e, ok := r.prompts[name]
	if !ok {
		return nil, false, false
	}
	return e.handler, e.enabled, true
}

// Commands returns all registered command handlers ordered by prefix.
func (r *Registry) Commands() []CommandHandler {
	r.hub.mu.Lock()
	prefixes := make([]string, 0, len(r.commands))
	for p := range r.commands {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	out := make([]CommandHandler, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, r.commands[p].handler)
	}
	r.hub.mu.Unlock()
	return out
}

// Resources returns all registered resource handlers ordered by name.
func (r *Registry) Resources() []ResourceHandler {
	r.hub.mu.Lock()
	names := make([]string, 0, len(r.resources))
	for n := range r.resources {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ResourceHandler, 0, len(names))
	for _, n := range names {
		out = append(out, r.resources[n].handler)
	}
	r.hub.mu.Unlock()
	return out
}

// EnabledPrompts returns the prompt handlers that are enabled, ordered by
// name. Disabled prompts are simply not exposed.
func (r *Registry) EnabledPrompts() []PromptHandler {
	r.hub.mu.Lock()
	names := make([]string, 0, len(r.prompts))
	for n, e := range r.prompts {
		if e.enabled {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	out := make([]PromptHandler, 0, len(names))
	for _, n := range names {
		out = append(out, r.prompts[n].handler)
	}
	r.hub.mu.Unlock()
	return out
}

// SetEnabled flips the enabled flag for every sub-registry entry matching
// name (command prefix, resource name, or prompt name). Returns false when
// nothing matched.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.hub.mu.Lock()
	matched := false
	if e, ok := r.commands[name]; ok {
		e.enabled = enabled
		matched = true
	}
	if e, ok := r.resources[name]; ok {
		e.enabled = enabled
		matched = true
	}
	if e, ok := r.prompts[name]; ok {
		e.enabled = enabled
		matched = true
	}
	r.hub.mu.Unlock()

	if matched {
		r.logger.Info("handler enablement changed", "handler", name, "enabled", enabled)
	}
	return matched
}

// ApplyEnablement applies a name->enabled map, e.g. loaded from the handler
// manifest. Names that match nothing are logged and skipped.
func (r *Registry) ApplyEnablement(flags map[string]bool) {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !r.SetEnabled(name, flags[name]) {
			r.logger.Warn("manifest names unknown handler", "handler", name)
		}
	}
}
