package model

import (
	"fmt"
	"strings"

	"github.com/ioxiocom/firedantic/internal/pathutil"
)

// PathTemplate is a parsed subcollection path template such as
// "users/{id}/orders". Each path segment is either a literal or a {field}
// placeholder resolved from a parent model's field values.
type PathTemplate struct {
	raw      string
	segments []templateSegment
}

type templateSegment struct {
	value       string
	placeholder bool
}

// ParsePathTemplate parses a template string. Placeholders must span a
// whole segment; an empty segment or a stray brace is a configuration
// error.
func ParsePathTemplate(raw string) (*PathTemplate, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty collection template", ErrCollectionNotDefined)
	}

	parts := pathutil.Split(raw)
	segments := make([]templateSegment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: template %q contains an empty segment", ErrCollectionNotDefined, raw)
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, fmt.Errorf("%w: template %q contains an empty placeholder", ErrCollectionNotDefined, raw)
			}
			segments = append(segments, templateSegment{value: name, placeholder: true})
		case strings.ContainsAny(part, "{}"):
			return nil, fmt.Errorf("%w: template %q mixes literals and placeholders in one segment", ErrCollectionNotDefined, raw)
		default:
			segments = append(segments, templateSegment{value: part})
		}
	}

	if len(segments)%2 != 1 {
		return nil, fmt.Errorf("%w: template %q does not resolve to a collection path", ErrCollectionNotDefined, raw)
	}
	return &PathTemplate{raw: raw, segments: segments}, nil
}

// Placeholders returns the placeholder names in template order.
func (t *PathTemplate) Placeholders() []string {
	var names []string
	for _, s := range t.segments {
		if s.placeholder {
			names = append(names, s.value)
		}
	}
	return names
}

// Resolve substitutes every placeholder from values and returns the
// collection path. A missing placeholder value is a configuration error.
func (t *PathTemplate) Resolve(values map[string]any) (string, error) {
	out := make([]string, len(t.segments))
	for i, s := range t.segments {
		if !s.placeholder {
			out[i] = s.value
			continue
		}
		v, ok := values[s.value]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: template %q placeholder {%s} has no value on the parent",
				ErrCollectionNotDefined, t.raw, s.value)
		}
		seg := formatSegment(v)
		if seg == "" || strings.ContainsRune(seg, '/') {
			return "", fmt.Errorf("%w: template %q placeholder {%s} resolved to invalid segment %q",
				ErrCollectionNotDefined, t.raw, s.value, seg)
		}
		out[i] = seg
	}
	return pathutil.Join(out...), nil
}

// String returns the raw template.
func (t *PathTemplate) String() string {
	return t.raw
}

func formatSegment(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	default:
		return fmt.Sprintf("%v", v)
	}
}
