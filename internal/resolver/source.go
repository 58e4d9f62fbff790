package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Format describes how an address source encodes its response
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// DefaultJSONField is the field read from JSON sources when none is given
const DefaultJSONField = "ip"

// ErrParse is returned when a source response cannot be turned into an address
var ErrParse = errors.New("unparseable address response")

// Source is one upstream address-lookup service
type Source struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Format   Format `json:"format" validate:"required,source_format"`
	Field    string `json:"field,omitempty"`
}

// DefaultSources returns the built-in source list, tried in order
func DefaultSources() []Source {
	return []Source{
		{Endpoint: "https://api.ipify.org?format=json", Format: FormatJSON, Field: DefaultJSONField},
		{Endpoint: "https://ifconfig.me/ip", Format: FormatText},
		{Endpoint: "https://icanhazip.com", Format: FormatText},
	}
}

// ParseSource parses a source definition of the form
// "json:URL", "json(field):URL", "text:URL" or a bare URL (text).
func ParseSource(def string) (Source, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return Source{}, errors.New("empty source definition")
	}

	prefix, rest, found := strings.Cut(def, ":")
	if !found {
		return Source{}, fmt.Errorf("source %q: missing endpoint", def)
	}

	switch {
	case prefix == string(FormatText):
		return Source{Endpoint: rest, Format: FormatText}, nil
	case prefix == string(FormatJSON):
		return Source{Endpoint: rest, Format: FormatJSON, Field: DefaultJSONField}, nil
	case strings.HasPrefix(prefix, "json(") && strings.HasSuffix(prefix, ")"):
		field := strings.TrimSuffix(strings.TrimPrefix(prefix, "json("), ")")
		if field == "" {
			return Source{}, fmt.Errorf("source %q: empty json field", def)
		}
		return Source{Endpoint: rest, Format: FormatJSON, Field: field}, nil
	case prefix == "http" || prefix == "https":
		return Source{Endpoint: def, Format: FormatText}, nil
	default:
		return Source{}, fmt.Errorf("source %q: unknown format %q", def, prefix)
	}
}

// ParseSources parses each definition, skipping blank entries
func ParseSources(defs []string) ([]Source, error) {
	var sources []Source
	for _, d := range defs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		s, err := ParseSource(d)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// Parse extracts the address from a response body according to the source format
func (s Source) Parse(body []byte) (string, error) {
	var addr string

	switch s.Format {
	case FormatJSON:
		field := s.Field
		if field == "" {
			field = DefaultJSONField
		}
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return "", fmt.Errorf("%w: invalid json: %v", ErrParse, err)
		}
		v, ok := obj[field]
		if !ok {
			return "", fmt.Errorf("%w: json field %q missing", ErrParse, field)
		}
		str, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: json field %q is not a string", ErrParse, field)
		}
		addr = strings.TrimSpace(str)
	case FormatText:
		addr = strings.TrimSpace(string(body))
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrParse, s.Format)
	}

	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrParse)
	}
	return addr, nil
}

// String returns the source in its definition form
func (s Source) String() string {
	if s.Format == FormatJSON && s.Field != "" && s.Field != DefaultJSONField {
		return fmt.Sprintf("json(%s):%s", s.Field, s.Endpoint)
	}
	return string(s.Format) + ":" + s.Endpoint
}
