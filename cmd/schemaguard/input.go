package main

import (
	"os"
	"path/filepath"
	"strings"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/internal/jsontext"
	"github.com/reoring/schemaguard/validator/protobuf"
)

type schemaInput struct {
	text   string
	format sg.SchemaFormat
}

// readSchema loads a schema file and resolves its format from hint, or by
// detection when hint is empty. YAML files are converted to JSON first.
func readSchema(path, hint string) (schemaInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schemaInput{}, err
	}
	if isYAML(path) {
		if data, err = jsontext.FromYAML(data); err != nil {
			return schemaInput{}, err
		}
	}
	text := string(data)
	if hint == "" && strings.EqualFold(filepath.Ext(path), ".proto") {
		hint = sg.Protobuf.String()
	}
	format, err := sg.DetectFormatHint(text, hint)
	if err != nil {
		return schemaInput{}, err
	}
	return schemaInput{text: text, format: format}, nil
}

// readInstance loads a JSON or YAML instance document as JSON bytes.
func readInstance(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return jsontext.FromYAML(data)
	}
	return data, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// describe returns a short summary for protobuf files, which carry more
// structure than the detected format shows.
func describe(in schemaInput) string {
	if in.format != sg.Protobuf {
		return ""
	}
	doc, _ := protobuf.New().Parse(in.text, sg.DefaultConfig().MaxRecursionDepth)
	if d, ok := doc.(interface{ Describe() string }); ok {
		return d.Describe()
	}
	return ""
}
