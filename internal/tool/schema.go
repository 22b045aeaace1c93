package tool

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

var argReflector = jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// ArgsFromStruct reflects a Go struct into an ordered argument declaration.
// Field names follow the json tag, descriptions come from the
// jsonschema_description tag, and a field is optional when its json tag
// carries omitempty.
func ArgsFromStruct(schemaStruct any) ([]Arg, error) {
	if schemaStruct == nil {
		return nil, nil
	}
	target, err := reflectionTarget(schemaStruct)
	if err != nil {
		return nil, err
	}

	schema := argReflector.Reflect(target)
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var args []Arg
	if schema.Properties == nil {
		return nil, nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		args = append(args, Arg{
			Name:        pair.Key,
			Type:        argType(pair.Value.Type),
			Description: pair.Value.Description,
			Optional:    !required[pair.Key],
		})
	}
	return args, nil
}

// reflectionTarget validates schemaStruct and returns a concrete struct pointer.
func reflectionTarget(schemaStruct any) (any, error) {
	t := reflect.TypeOf(schemaStruct)
	if t == nil {
		return nil, fmt.Errorf("%w: schema struct is nil", ErrInvalidArgs)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: schema struct must be a struct or pointer to struct", ErrInvalidArgs)
	}
	return reflect.New(t).Interface(), nil
}

// argType normalizes a reflected JSON-schema type into an authorized type.
// Unconstrained fields reflect to an empty type and accept anything.
func argType(reflected string) string {
	if reflected == "" {
		return "any"
	}
	return reflected
}
