// Package toolregistry holds the table of callable tools the Task Runner
// dispatches against: name, JSON-Schema parameters, and the Go callable
// itself. It knows nothing about scheduling or the graph; it is called
// synchronously, once per tool call, from the Runner.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/taskgraph/internal/model"
)

// MaxToolNameLength bounds tool names accepted by Register, matching the
// teacher's defensive sizing in internal/agent/tool_registry.go.
const MaxToolNameLength = 256

// MaxArgumentBytes bounds the raw argument payload Dispatch will attempt to
// parse, guarding against a misbehaving Model sending an unbounded blob.
const MaxArgumentBytes = 10 << 20

// Func is the shape every tool callable implements. It receives the raw JSON
// argument payload (already normalized by the caller — the Runner applies
// NormalizeArguments before Dispatch)
// and returns either a JSON-serializable value or an error.
type Func func(ctx context.Context, args json.RawMessage) (any, error)

// ToolInfo is one registered tool: its advertised schema plus its callable.
type ToolInfo struct {
	Name        string
	Description string
	// Parameters is the JSON-Schema object describing the tool's argument
	// shape, either generated via GenerateSchema or supplied explicitly.
	Parameters map[string]any
	Func       Func
	// Strict, when true, validates decoded arguments against Parameters
	// before Func is invoked; a validation failure is returned by Dispatch
	// as an error-tagged result string rather than passed through to Func.
	Strict bool
}

// Registry is the table of registered tools. Safe for concurrent use,
// though in practice only the Scheduler's worker goroutines call Dispatch
// and only agent construction calls Register.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]ToolInfo
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// New returns an empty Registry. logger may be nil, in which case
// slog.Default() is used.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]ToolInfo),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger,
	}
}

// Register adds a tool, overwriting any existing entry of the same name
// (logged at WARN, matching the distilled spec's "duplicate names
// overwrite"). Compiles the tool's schema eagerly when Strict is set so
// dispatch-time validation never pays a first-call compilation cost.
func (r *Registry) Register(tool ToolInfo) error {
	if tool.Name == "" {
		return fmt.Errorf("toolregistry: tool name must not be empty")
	}
	if len(tool.Name) > MaxToolNameLength {
		return fmt.Errorf("toolregistry: tool name exceeds %d bytes", MaxToolNameLength)
	}
	if tool.Func == nil {
		return fmt.Errorf("toolregistry: tool %q has no callable", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		r.logger.Warn("toolregistry: overwriting existing tool", "name", tool.Name)
	}
	if tool.Strict {
		compiled, err := compileSchema(tool.Name, tool.Parameters)
		if err != nil {
			return fmt.Errorf("toolregistry: compile schema for %q: %w", tool.Name, err)
		}
		r.schemas[tool.Name] = compiled
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get returns the registered ToolInfo for name, if any.
func (r *Registry) Get(name string) (ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the name of every registered tool, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// ToolSpecs converts the named subset of registered tools into the
// provider-agnostic shape internal/model.Client expects. An unknown name in
// allowed is silently skipped — the Planner integration already warns on
// missing tool_require entries before this is ever reached.
func (r *Registry) ToolSpecs(allowed []string) []model.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]model.ToolSpec, 0, len(allowed))
	for _, name := range allowed {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		specs = append(specs, model.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// NormalizeArguments implements the distilled spec's tool-argument parsing
// rule: empty input decodes to an empty object; valid JSON passes through
// unchanged; anything else is wrapped as {"_raw": "<original text>"} so a
// Strict tool can reject it structurally instead of receiving raw text
// silently.
func NormalizeArguments(raw []byte) json.RawMessage {
	trimmed := trimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	var probe any
	if err := json.Unmarshal(trimmed, &probe); err == nil {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"_raw": string(trimmed)})
	return wrapped
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Dispatch invokes the named tool with already-normalized arguments. It
// never returns a Go error that the Runner must special-case further: an
// unknown tool, a validation failure, or a panic inside Func are all
// converted into an error-tagged string result, per the distilled spec's
// "never throws" contract (§4.3).
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (result string, isError bool) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name), true
	}
	if len(args) > MaxArgumentBytes {
		return fmt.Sprintf("error: tool %q arguments exceed %d bytes", name, MaxArgumentBytes), true
	}

	if tool.Strict && schema != nil {
		var decoded any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return fmt.Sprintf("error: tool %q arguments are not valid JSON: %v", name, err), true
		}
		if err := schema.Validate(decoded); err != nil {
			return fmt.Sprintf("error: tool %q arguments failed validation: %v", name, err), true
		}
	}

	return r.invoke(ctx, tool, args)
}

func (r *Registry) invoke(ctx context.Context, tool ToolInfo, args json.RawMessage) (result string, isError bool) {
	defer func() {
		if p := recover(); p != nil {
			result = fmt.Sprintf("error: tool %q panicked: %v", tool.Name, p)
			isError = true
		}
	}()

	value, err := tool.Func(ctx, args)
	if err != nil {
		return fmt.Sprintf("error: tool %q failed: %v", tool.Name, err), true
	}
	return stringify(value), false
}

// stringify renders a tool's return value the way the Model expects to read
// it: scalars stringified directly, everything else JSON-encoded.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
