package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

type registeredTool struct {
	tool   Tool
	schema *gojsonschema.Schema // nil when the tool declares no parameters
}

// Registry is an immutable, name-unique collection of tools.
type Registry struct {
	order   []string
	byName  map[string]registeredTool
	timeout time.Duration
}

// NewRegistry builds a registry, rejecting empty or duplicate names and invalid parameter schemas.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		order:   make([]string, 0, len(tools)),
		byName:  make(map[string]registeredTool, len(tools)),
		timeout: DefaultToolTimeout,
	}
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Name()
		if name == "" {
			return nil, ErrToolNameEmpty
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToolName, name)
		}

		rt := registeredTool{tool: t}
		if params := t.Descriptor().Function.Parameters; len(params) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(params))
			if err != nil {
				return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", name, err)
			}
			rt.schema = schema
		}

		r.order = append(r.order, name)
		r.byName[name] = rt
	}
	return r, nil
}

// WithTimeout returns a copy of the registry using d as the per-call timeout.
// A non-positive d disables the timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	cp := *r
	cp.timeout = d
	return &cp
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	rt, ok := r.byName[name]
	return rt.tool, ok
}

// Describe returns capability descriptors in registration order.
func (r *Registry) Describe() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].tool.Descriptor())
	}
	return out
}

// DescribeJSON renders Describe as indented JSON for prompts.
func (r *Registry) DescribeJSON() string {
	b, err := json.MarshalIndent(r.Describe(), "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Tool     string
	Output   string
	Err      error
	Duration time.Duration
}

// String renders the result the way it is recorded in memory.
func (r ToolResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("Error: %v", r.Err)
	}
	if r.Output == "" {
		return "Tool executed successfully with no output."
	}
	return r.Output
}

// Invoke validates args and runs the named tool. It never panics; every failure is carried in Err.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) ToolResult {
	start := time.Now()
	res := ToolResult{Tool: name}

	rt, ok := r.byName[name]
	if !ok {
		res.Err = fmt.Errorf("%w: %s (available tools: %v)", ErrToolNotFound, name, r.order)
		return res
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(rt, args); err != nil {
		res.Err = err
		return res
	}

	res.Output, res.Err = r.execute(ctx, rt.tool, args)
	res.Duration = time.Since(start)
	return res
}

func validateArgs(rt registeredTool, args map[string]any) error {
	if rt.schema == nil {
		return nil
	}
	result, err := rt.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errorMsgs []string
		for _, e := range result.Errors() {
			errorMsgs = append(errorMsgs, e.String())
		}
		return &ToolValidationError{ToolName: rt.tool.Name(), Errors: errorMsgs}
	}
	return nil
}

type execOutcome struct {
	out string
	err error
}

func (r *Registry) execute(ctx context.Context, t Tool, args map[string]any) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- execOutcome{err: &ToolPanicError{ToolName: t.Name(), Value: v}}
			}
		}()
		out, err := t.Execute(ctx, args)
		done <- execOutcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", NewEngineError(fmt.Errorf("tool %s timed out after %s", t.Name(), r.timeout), RetryClassRetryable)
		}
		return "", fmt.Errorf("tool %s cancelled: %w", t.Name(), ctx.Err())
	}
}
