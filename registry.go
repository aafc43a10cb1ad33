package toolscribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrToolNotFound is returned when a named tool has not been registered.
var ErrToolNotFound = errors.New("tool not found")

// registeredTool bundles everything needed to list and invoke one tool.
type registeredTool struct {
	descriptor ToolDescriptor
	schema     json.RawMessage
	compiled   *gojsonschema.Schema
	fn         reflect.Value
	argsType   reflect.Type
	argsIsPtr  bool
	takesCtx   bool
	hasResult  bool
}

// Registry holds registered tools keyed by name. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registeredTool),
	}
}

// Register derives a descriptor from fn and doc, builds and compile-checks
// its input schema, and stores the tool under name. Registering a name twice
// is an error.
func (r *Registry) Register(name, doc string, fn interface{}) (ToolDescriptor, error) {
	descriptor, err := Describe(name, doc, fn)
	if err != nil {
		return ToolDescriptor{}, err
	}

	schema, err := descriptor.InputSchema()
	if err != nil {
		return ToolDescriptor{}, err
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("tool %s: %w", name, err)
	}

	t := reflect.TypeOf(fn)
	argsType := t.In(t.NumIn() - 1)
	argsIsPtr := argsType.Kind() == reflect.Ptr
	if argsIsPtr {
		argsType = argsType.Elem()
	}

	rt := &registeredTool{
		descriptor: descriptor,
		schema:     schema,
		compiled:   compiled,
		fn:         reflect.ValueOf(fn),
		argsType:   argsType,
		argsIsPtr:  argsIsPtr,
		takesCtx:   t.NumIn() == 2,
		hasResult:  t.NumOut() == 2,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return ToolDescriptor{}, fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = rt

	return descriptor, nil
}

// List returns the descriptors of all registered tools, sorted by name.
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]ToolDescriptor, 0, len(r.tools))
	for _, rt := range r.tools {
		descriptors = append(descriptors, rt.descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Get returns the descriptor of a registered tool.
func (r *Registry) Get(name string) (ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, exists := r.tools[name]
	if !exists {
		return ToolDescriptor{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return rt.descriptor, nil
}

// Schema returns the generated input schema of a registered tool.
func (r *Registry) Schema(name string) (json.RawMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return rt.schema, nil
}

func (r *Registry) lookup(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, exists := r.tools[name]
	return rt, exists
}
