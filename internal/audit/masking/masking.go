package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"document": {},
	"email":    {},
	"phone":    {},
}

// MaskValue redacts a value while keeping a short suffix for support lookups.
func MaskValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskPersonalData returns a copy of metadata with personal fields redacted.
func MaskPersonalData(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskField(trimmedKey, value)
	}
	return masked
}

func maskField(key string, value any) any {
	switch cast := value.(type) {
	case string:
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			return MaskValue(cast)
		}
		return cast
	case map[string]any:
		return MaskPersonalData(cast)
	default:
		return value
	}
}
