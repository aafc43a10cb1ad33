package toolscribe

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Schema type names used in descriptors. TypeAny marks a parameter or return
// whose type carries no constraint.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeAny     = "any"
)

// Parameter describes one named parameter of a tool's calling contract.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// ToolDescriptor is the structured record representing a tool's calling
// contract: its name, a short description, its parameters in declaration
// order, and its return type. It is a read-only snapshot produced when the
// tool is described; it is never mutated afterwards.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter returns the named parameter and whether it exists.
func (d ToolDescriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Describe derives a tool descriptor from a function and its documentation
// string.
//
// The function must have one of the shapes
//
//	func(args T) error
//	func(args T) (R, error)
//	func(ctx context.Context, args T) error
//	func(ctx context.Context, args T) (R, error)
//
// where T is a struct (or pointer to struct) whose exported fields, in
// declaration order, are the tool's parameters. A field's json tag overrides
// its name. Every parameter is marked required. Fields typed interface{}
// carry the generic "any" marker, as does the return type of a function that
// returns only an error.
//
// The description is the first paragraph of doc: the text preceding the
// first blank line, with inner newlines collapsed to single spaces. An empty
// doc yields an empty description.
func Describe(name, doc string, fn interface{}) (ToolDescriptor, error) {
	if name == "" {
		return ToolDescriptor{}, fmt.Errorf("tool name cannot be empty")
	}

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return ToolDescriptor{}, fmt.Errorf("tool %s: not a function", name)
	}

	argsType, err := argsTypeOf(t)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("tool %s: %w", name, err)
	}

	returns, err := returnTypeOf(t)
	if err != nil {
		return ToolDescriptor{}, fmt.Errorf("tool %s: %w", name, err)
	}

	params := make([]Parameter, 0, argsType.NumField())
	for i := 0; i < argsType.NumField(); i++ {
		field := argsType.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		paramName := parameterName(field)
		if paramName == "" {
			continue
		}

		params = append(params, Parameter{
			Name:     paramName,
			Type:     schemaTypeName(field.Type),
			Required: true,
		})
	}

	return ToolDescriptor{
		Name:        name,
		Description: firstParagraph(doc),
		Parameters:  params,
		Returns:     returns,
	}, nil
}

// argsTypeOf validates the function's input shape and returns the argument
// struct type.
func argsTypeOf(t reflect.Type) (reflect.Type, error) {
	switch t.NumIn() {
	case 1:
	case 2:
		if !t.In(0).Implements(ctxType) && t.In(0) != ctxType {
			return nil, fmt.Errorf("first of two parameters must be context.Context, got %s", t.In(0))
		}
	default:
		return nil, fmt.Errorf("function must take an argument struct, optionally preceded by a context")
	}

	argsType := t.In(t.NumIn() - 1)
	if argsType.Kind() == reflect.Ptr {
		argsType = argsType.Elem()
	}
	if argsType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("argument type must be a struct, got %s", argsType)
	}
	return argsType, nil
}

// returnTypeOf validates the function's output shape and maps the result
// type. A function returning only an error yields the "any" marker.
func returnTypeOf(t reflect.Type) (string, error) {
	switch t.NumOut() {
	case 1:
		if t.Out(0) != errType {
			return "", fmt.Errorf("single return value must be error, got %s", t.Out(0))
		}
		return TypeAny, nil
	case 2:
		if t.Out(1) != errType {
			return "", fmt.Errorf("second return value must be error, got %s", t.Out(1))
		}
		return schemaTypeName(t.Out(0)), nil
	default:
		return "", fmt.Errorf("function must return (result, error) or error")
	}
}

func parameterName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// schemaTypeName maps a Go type to its schema type name.
func schemaTypeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.String:
		return TypeString
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map, reflect.Struct:
		return TypeObject
	default:
		return TypeAny
	}
}

// firstParagraph extracts the text preceding the first blank line, collapsing
// inner newlines to single spaces.
func firstParagraph(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return ""
	}

	paragraph := doc
	if idx := strings.Index(doc, "\n\n"); idx >= 0 {
		paragraph = doc[:idx]
	}

	lines := strings.Split(paragraph, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, " ")
}
