package sandbox

import (
	"fmt"
	"reflect"

	"go.starlark.net/starlark"
)

// toStarlark converts a plain Go value into its starlark equivalent.
// Unsupported types surface as errors rather than panics so tool results
// can fail one call instead of the whole run.
func toStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case []byte:
		return starlark.Bytes(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int8:
		return starlark.MakeInt(int(v)), nil
	case int16:
		return starlark.MakeInt(int(v)), nil
	case int32:
		return starlark.MakeInt(int(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint:
		return starlark.MakeUint(v), nil
	case uint8:
		return starlark.MakeUint(uint(v)), nil
	case uint16:
		return starlark.MakeUint(uint(v)), nil
	case uint32:
		return starlark.MakeUint(uint(v)), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float32:
		return starlark.Float(v), nil
	case float64:
		return starlark.Float(v), nil
	case starlark.Value:
		return v, nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elem, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			converted, err := toStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), converted); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	value := reflect.ValueOf(v)
	switch value.Kind() {
	case reflect.Bool:
		return starlark.Bool(value.Bool()), nil
	case reflect.String:
		return starlark.String(value.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(value.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(value.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(value.Float()), nil
	case reflect.Slice, reflect.Array:
		n := value.Len()
		elems := make([]starlark.Value, n)
		for i := 0; i < n; i++ {
			elem, err := toStarlark(value.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil
	case reflect.Map:
		d := starlark.NewDict(value.Len())
		iter := value.MapRange()
		for iter.Next() {
			key, err := toStarlark(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			val, err := toStarlark(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(key, val); err != nil {
				return nil, err
			}
		}
		return d, nil
	case reflect.Struct:
		n := value.NumField()
		d := starlark.NewDict(n)
		typ := value.Type()
		for i := 0; i < n; i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			converted, err := toStarlark(value.Field(i).Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(field.Name), converted); err != nil {
				return nil, err
			}
		}
		return d, nil
	case reflect.Pointer, reflect.Interface:
		elem := value.Elem()
		if !elem.IsValid() {
			return starlark.None, nil
		}
		return toStarlark(elem.Interface())
	}

	return nil, fmt.Errorf("unsupported value type %T", v)
}

// fromStarlark converts a starlark value into a plain Go value. Exotic
// values fall back to their string rendering.
func fromStarlark(v starlark.Value) any {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(v)
	case starlark.String:
		return string(v)
	case starlark.Bytes:
		return []byte(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case *starlark.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, fromStarlark(v.Index(i)))
		}
		return out
	case starlark.Tuple:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			out = append(out, fromStarlark(elem))
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if ok {
				out[string(key)] = fromStarlark(item[1])
				continue
			}
			out[item[0].String()] = fromStarlark(item[1])
		}
		return out
	case *starlark.Set:
		out := make([]any, 0, v.Len())
		it := v.Iterate()
		defer it.Done()
		var elem starlark.Value
		for it.Next(&elem) {
			out = append(out, fromStarlark(elem))
		}
		return out
	}
	return v.String()
}
