package template

import (
	"strings"

	"github.com/starford/resolate/internal/models"
	"github.com/starford/resolate/internal/sanitize"
)

// ParseToken parses the body of one placeholder (brackets stripped) into its
// name and parameters. An empty name means the placeholder is unusable.
//
//	nombre;type='text';title="Nombre completo";required
func ParseToken(inner string) (string, models.Parameters) {
	decoded := strings.TrimSpace(sanitize.Entities(inner))
	if decoded == "" {
		return "", nil
	}

	segments := splitSegments(decoded)
	name := segments[0]
	if name == "" {
		return "", nil
	}

	params := models.Parameters{}
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		key, value := parseParameter(seg)
		if key == "" {
			continue
		}
		params[key] = value
	}
	return name, params
}

// parseParameter splits "key=value" on the first '='. A segment without '='
// (or with an empty value) is a bare flag whose value is true.
func parseParameter(seg string) (string, any) {
	rawName, rawValue, found := strings.Cut(seg, "=")
	if !found {
		return strings.ToLower(seg), true
	}

	key := strings.ToLower(strings.TrimSpace(rawName))
	rawValue = strings.TrimSpace(rawValue)
	if rawValue == "" {
		return key, true
	}
	if n := len(rawValue); n >= 2 && isQuote(rawValue[0]) && rawValue[n-1] == rawValue[0] {
		rawValue = rawValue[1 : n-1]
	}
	return key, sanitize.Entities(rawValue)
}
