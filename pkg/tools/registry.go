package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/atypis/runops/pkg/log"
	"github.com/atypis/runops/pkg/reasoning"
)

// Handler executes one named tool. Execute returns a Result in every case;
// argument validation against Schema happens before Execute is called.
type Handler interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, args map[string]any) Result
}

// Registry maps tool names to typed handlers and dispatches calls.
type Registry struct {
	handlers map[string]Handler
	order    []string
	logger   *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   log.WithModule("tools"),
	}
}

// Register adds a handler. Registering a name twice is a programming error.
func (r *Registry) Register(handler Handler) error {
	name := handler.Name()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}

	r.handlers[name] = handler
	r.order = append(r.order, name)

	return nil
}

// MustRegister is Register for static wiring at startup.
func (r *Registry) MustRegister(handlers ...Handler) {
	for _, handler := range handlers {
		if err := r.Register(handler); err != nil {
			panic(err)
		}
	}
}

// Catalog returns the registered tools as reasoning engine definitions, in
// registration order.
func (r *Registry) Catalog() []reasoning.ToolDefinition {
	catalog := make([]reasoning.ToolDefinition, 0, len(r.order))

	for _, name := range r.order {
		handler := r.handlers[name]
		catalog = append(catalog, reasoning.ToolDefinition{
			Name:        handler.Name(),
			Description: handler.Description(),
			Schema:      handler.Schema(),
		})
	}

	return catalog
}

// Dispatch resolves the named handler, validates the arguments against its
// schema and executes it. Every failure mode comes back as a failed Result;
// Dispatch never returns an error.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	handler, exists := r.handlers[name]
	if !exists {
		return Failure("unknown tool %q, available tools: %s", name, strings.Join(r.names(), ", "))
	}

	if args == nil {
		args = make(map[string]any)
	}

	if err := validateArguments(handler.Schema(), args); err != nil {
		return Failure("invalid arguments for %s: %s", name, err)
	}

	result := handler.Execute(ctx, args)

	if !result.Success {
		r.logger.Debug("tool failed", "tool", name, "error", result.Error)
	}

	return result
}

func (r *Registry) names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)

	return names
}

func validateArguments(schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%s", strings.Join(descriptions, "; "))
	}

	return nil
}
