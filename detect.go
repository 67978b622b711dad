package schemaguard

import (
	"regexp"
	"strings"

	"github.com/reoring/schemaguard/internal/jsontext"
)

var (
	protoSyntaxRe  = regexp.MustCompile(`(?m)^\s*syntax\s*=\s*["']proto[23]["']\s*;`)
	protoMessageRe = regexp.MustCompile(`(?m)^\s*message\s+[A-Za-z_][A-Za-z0-9_]*\s*\{`)
)

// DetectFormat classifies schema text. It returns an *AmbiguousFormatError
// when the text matches no format or more than one; callers must then pass
// an explicit format.
func DetectFormat(text string) (SchemaFormat, error) {
	var candidates []SchemaFormat
	if obj, ok := decodeJSONObject(text); ok {
		if looksLikeJSONSchema(obj) {
			candidates = append(candidates, JSONSchema)
		}
		if looksLikeAvroRecord(obj) {
			candidates = append(candidates, Avro)
		}
	}
	if protoSyntaxRe.MatchString(text) && protoMessageRe.MatchString(text) {
		candidates = append(candidates, Protobuf)
	}
	if len(candidates) != 1 {
		return FormatUnknown, &AmbiguousFormatError{Candidates: candidates}
	}
	return candidates[0], nil
}

// DetectFormatHint returns the format named by hint when it is non-empty,
// and falls back to DetectFormat otherwise.
func DetectFormatHint(text, hint string) (SchemaFormat, error) {
	if strings.TrimSpace(hint) != "" {
		return ParseSchemaFormat(hint)
	}
	return DetectFormat(text)
}

func decodeJSONObject(text string) (map[string]any, bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "{") {
		return nil, false
	}
	doc, err := jsontext.Decode([]byte(t), jsontext.Options{})
	if err != nil {
		return nil, false
	}
	obj, ok := doc.Value.(map[string]any)
	return obj, ok
}

func looksLikeJSONSchema(obj map[string]any) bool {
	if _, ok := obj["$schema"]; ok {
		return true
	}
	_, hasType := obj["type"]
	_, hasProps := obj["properties"]
	return hasType && hasProps
}

func looksLikeAvroRecord(obj map[string]any) bool {
	if t, _ := obj["type"].(string); t != "record" {
		return false
	}
	_, ok := obj["fields"].([]any)
	return ok
}
