package mcp

import "fmt"

// parseStringArg extracts a string argument from an MCP arguments map.
// Returns an error if the argument is required but missing or invalid.
func parseStringArg(argsMap map[string]interface{}, key string, required bool) (string, error) {
	val, ok := argsMap[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s parameter is required", key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}

	if required && str == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}

	return str, nil
}

// parseIntArg extracts an integer argument clamped to [lo, hi].
// MCP sends numbers as float64, so this handles the conversion.
// Returns defaultVal if the argument is missing or invalid.
func parseIntArg(argsMap map[string]interface{}, key string, defaultVal, lo, hi int) int {
	f, ok := argsMap[key].(float64)
	if !ok {
		return defaultVal
	}
	return max(lo, min(int(f), hi))
}

// parseBoolArg extracts a boolean argument, or defaultVal when absent.
func parseBoolArg(argsMap map[string]interface{}, key string, defaultVal bool) bool {
	if b, ok := argsMap[key].(bool); ok {
		return b
	}
	return defaultVal
}

// parseBoolArgPtr extracts an optional boolean argument as a pointer.
// Returns nil if the argument is missing, distinguishing "not provided" from false.
func parseBoolArgPtr(argsMap map[string]interface{}, key string) *bool {
	b, ok := argsMap[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// parseStringSliceArg extracts an array of strings, skipping non-string items.
func parseStringSliceArg(argsMap map[string]interface{}, key string) []string {
	items, ok := argsMap[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
