package tool

import "fmt"

// coerceMessage extracts a human-readable message from a tool result.
// Preference order: data.message, data.response, data.output, the result's
// own output, a rendering of the structured data, then a generic marker.
func coerceMessage(res *Result) string {
	if res == nil {
		return "completed"
	}
	for _, key := range []string{"message", "response", "output"} {
		if v, ok := res.Data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if res.Output != "" {
		return res.Output
	}
	if len(res.Data) > 0 {
		return fmt.Sprintf("%v", res.Data)
	}
	return "completed"
}
