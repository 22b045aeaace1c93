package tool

import "github.com/tidwall/gjson"

// ParseArgValue upgrades a string argument that holds encoded JSON into the
// decoded value. Models frequently emit arguments double-encoded, e.g.
// "{\"city\": \"Paris\"}" instead of an object. Non-string values and plain
// strings pass through unchanged.
func ParseArgValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if !gjson.Valid(s) {
		return value
	}
	return gjson.Parse(s).Value()
}

// ParseArgValues applies ParseArgValue to every entry of an argument map.
func ParseArgValues(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	parsed := make(map[string]any, len(args))
	for name, value := range args {
		parsed[name] = ParseArgValue(value)
	}
	return parsed
}
