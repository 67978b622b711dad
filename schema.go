package schemaguard

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// Metadata is optional descriptive information attached to a Schema.
type Metadata struct {
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Owner       string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	Custom      map[string]string `json:"custom,omitempty" yaml:"custom,omitempty"`
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	return &Metadata{
		Description: m.Description,
		Tags:        slices.Clone(m.Tags),
		Owner:       m.Owner,
		Custom:      maps.Clone(m.Custom),
	}
}

// Schema is an immutable schema version. Construct with NewSchema; a new
// version is a new value.
type Schema struct {
	namespace string
	name      string
	version   SemanticVersion
	format    SchemaFormat
	content   string
	hash      string
	id        uuid.UUID
	metadata  *Metadata
}

// NewSchema builds a Schema and derives its content hash and identifier.
func NewSchema(namespace, name string, version SemanticVersion, format SchemaFormat, content string) Schema {
	return Schema{
		namespace: namespace,
		name:      name,
		version:   version,
		format:    format,
		content:   content,
		hash:      ContentHash(content),
		id:        SchemaID(namespace, name, version),
	}
}

// WithMetadata returns a copy carrying md.
func (s Schema) WithMetadata(md Metadata) Schema {
	s.metadata = md.clone()
	return s
}

func (s Schema) Namespace() string        { return s.namespace }
func (s Schema) Name() string             { return s.name }
func (s Schema) Version() SemanticVersion { return s.version }
func (s Schema) Format() SchemaFormat     { return s.format }
func (s Schema) Content() string          { return s.content }
func (s Schema) ContentHash() string      { return s.hash }
func (s Schema) ID() uuid.UUID            { return s.id }

// Metadata returns a copy of the metadata, or nil.
func (s Schema) Metadata() *Metadata { return s.metadata.clone() }

// Subject is the namespace.name pair identifying the version family.
func (s Schema) Subject() string {
	if s.namespace == "" {
		return s.name
	}
	return s.namespace + "." + s.name
}

// Ref returns the reference used in compatibility results.
func (s Schema) Ref() VersionRef {
	return VersionRef{ID: s.id, Subject: s.Subject(), Version: s.version}
}

// ContentHash returns the SHA-256 hex digest of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SchemaID derives a stable name-based UUID for namespace/name@version.
func SchemaID(namespace, name string, version SemanticVersion) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("schemaguard:"+namespace+"/"+name+"@"+version.String()))
}

// VersionRef identifies one schema version.
type VersionRef struct {
	ID      uuid.UUID       `json:"id"`
	Subject string          `json:"subject"`
	Version SemanticVersion `json:"version"`
}

// SortVersions returns a copy of history ordered oldest to newest by
// semantic version. Equal versions keep their relative order.
func SortVersions(history []Schema) []Schema {
	out := slices.Clone(history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].version.Compare(out[j].version) < 0
	})
	return out
}
