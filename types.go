package schemaguard

import (
	"fmt"
	"strings"
)

// SchemaFormat identifies one of the supported schema languages.
type SchemaFormat int

const (
	FormatUnknown SchemaFormat = iota
	JSONSchema
	Avro
	Protobuf
)

// Formats lists the supported formats in declaration order.
func Formats() []SchemaFormat { return []SchemaFormat{JSONSchema, Avro, Protobuf} }

func (f SchemaFormat) String() string {
	switch f {
	case JSONSchema:
		return "json-schema"
	case Avro:
		return "avro"
	case Protobuf:
		return "protobuf"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the supported formats.
func (f SchemaFormat) Valid() bool { return f >= JSONSchema && f <= Protobuf }

// ParseSchemaFormat accepts the canonical names plus a few common aliases.
func ParseSchemaFormat(s string) (SchemaFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json-schema", "jsonschema", "json_schema", "json":
		return JSONSchema, nil
	case "avro":
		return Avro, nil
	case "protobuf", "proto", "proto3", "proto2":
		return Protobuf, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f SchemaFormat) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
	}
	return []byte(f.String()), nil
}

func (f *SchemaFormat) UnmarshalText(b []byte) error {
	v, err := ParseSchemaFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Severity expresses the severity level of a finding. Info < Warning < Error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "info":
		*s = SeverityInfo
	case "warning", "warn":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("schemaguard: unknown severity %q", string(b))
	}
	return nil
}

// Stage is one of the seven pipeline stages, in execution order.
type Stage int

const (
	StageStructural Stage = iota
	StageType
	StageSemantic
	StageCompatibility
	StageSecurity
	StagePerformance
	StageCustom
)

// AllStages returns every stage in execution order.
func AllStages() []Stage {
	return []Stage{StageStructural, StageType, StageSemantic, StageCompatibility, StageSecurity, StagePerformance, StageCustom}
}

func (s Stage) String() string {
	switch s {
	case StageStructural:
		return "structural"
	case StageType:
		return "type"
	case StageSemantic:
		return "semantic"
	case StageCompatibility:
		return "compatibility"
	case StageSecurity:
		return "security"
	case StagePerformance:
		return "performance"
	case StageCustom:
		return "custom"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for _, st := range AllStages() {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("schemaguard: unknown stage %q", string(b))
}
