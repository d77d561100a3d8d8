package maputils

import "fmt"

// StrVal returns the value of the key as string.
// If the key does not exist an empty string is returned.
// If they key exist but has a different type an error is returned.
func StrVal(m map[string]any, key string) (string, error) {
	val, ok := m[key]
	if !ok {
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("value of key %q has type %T, expected string", key, val)
	}

	return str, nil
}

// BoolVal returns the value of the key as bool.
// If the key does not exist false is returned.
// If they key exist but has a different type an error is returned.
func BoolVal(m map[string]any, key string) (bool, error) {
	val, ok := m[key]
	if !ok {
		return false, nil
	}

	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("value of key %q has type %T, expected bool", key, val)
	}

	return b, nil
}

// ObjectVal returns v as map if it is an unmarshalled JSON object.
// For other types an error is returned.
func ObjectVal(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value has type %T, expected a JSON object", v)
	}

	return m, nil
}
