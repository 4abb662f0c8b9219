package engine

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/go-lua"
)

// registerJSON installs json_decode and json_encode as globals. Modules
// exchange state and commands as JSON strings, and go-lua ships no
// string.match, so the conversion happens on the Go side of the fence.
// Neither function grants the module any I/O capability.
func registerJSON(l *lua.State) {
	l.PushGoFunction(jsonDecode)
	l.SetGlobal("json_decode")
	l.PushGoFunction(jsonEncode)
	l.SetGlobal("json_encode")
}

// jsonDecode converts a JSON string to a Lua value. Empty input decodes
// to nil so modules can treat absent state uniformly.
func jsonDecode(l *lua.State) int {
	raw := lua.CheckString(l, 1)
	if raw == "" {
		l.PushNil()
		return 1
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		lua.Errorf(l, "json_decode: %s", err.Error())
		return 0
	}
	pushValue(l, v)
	return 1
}

// jsonEncode converts a Lua value to a JSON string. Tables with a
// nonzero sequence length encode as arrays, all others as objects.
func jsonEncode(l *lua.State) int {
	v, err := toValue(l, 1)
	if err != nil {
		lua.Errorf(l, "json_encode: %s", err.Error())
		return 0
	}
	raw, err := json.Marshal(v)
	if err != nil {
		lua.Errorf(l, "json_encode: %s", err.Error())
		return 0
	}
	l.PushString(string(raw))
	return 1
}

func pushValue(l *lua.State, v interface{}) {
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case float64:
		l.PushNumber(v)
	case string:
		l.PushString(v)
	case []interface{}:
		l.CreateTable(len(v), 0)
		for i, elem := range v {
			pushValue(l, elem)
			l.RawSetInt(-2, i+1)
		}
	case map[string]interface{}:
		l.CreateTable(0, len(v))
		for key, elem := range v {
			pushValue(l, elem)
			l.SetField(-2, key)
		}
	default:
		l.PushNil()
	}
}

func toValue(l *lua.State, index int) (interface{}, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n, nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	case lua.TypeTable:
		return tableToValue(l, index)
	default:
		return nil, fmt.Errorf("cannot encode a %s value", l.TypeOf(index))
	}
}

func tableToValue(l *lua.State, index int) (interface{}, error) {
	index = l.AbsIndex(index)

	if n := l.RawLength(index); n > 0 {
		arr := make([]interface{}, n)
		for i := 1; i <= n; i++ {
			l.RawGetInt(index, i)
			v, err := toValue(l, -1)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			arr[i-1] = v
		}
		return arr, nil
	}

	obj := make(map[string]interface{})
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString {
			l.Pop(2)
			return nil, fmt.Errorf("object keys must be strings")
		}
		key, _ := l.ToString(-2)
		v, err := toValue(l, -1)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		obj[key] = v
		l.Pop(1)
	}
	return obj, nil
}
