package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gofrs/uuid"
)

var (
	reNoSlug  = regexp.MustCompile(`[^a-z0-9-]+`)
	reHyphens = regexp.MustCompile(`-{2,}`)
)

// NormalizeSlug lowercases s, turns every run of characters outside
// [a-z0-9-] into a single hyphen and trims leading and trailing hyphens.
func NormalizeSlug(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	slug = reNoSlug.ReplaceAllLiteralString(slug, "-")
	slug = reHyphens.ReplaceAllLiteralString(slug, "-")
	return strings.Trim(slug, "-")
}

// SchemaError reports a malformed form or field definition.
type SchemaError struct {
	FieldID string
	Message string
}

func (e *SchemaError) Error() string {
	if e.FieldID == "" {
		return e.Message
	}
	return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
}

// NewFieldID returns a fresh field id.
func NewFieldID() string {
	return "f_" + uuid.Must(uuid.NewV4()).String()
}

// Prepare readies an admin-authored form for storage: the slug is normalized
// (derived from the title when empty), settings default to an empty map and
// fields without an id get one. Ids already present are never touched.
func (f *Form) Prepare() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	if strings.TrimSpace(f.Slug) == "" {
		f.Slug = f.Title
	}
	f.Slug = NormalizeSlug(f.Slug)
	if f.Settings == nil {
		f.Settings = map[string]any{}
	}
	if f.Fields == nil {
		f.Fields = []Field{}
	}
	for i := range f.Fields {
		if strings.TrimSpace(f.Fields[i].ID) == "" {
			f.Fields[i].ID = NewFieldID()
		}
		if f.Fields[i].Type != FieldFile {
			f.Fields[i].Multiple = false
		}
	}
}

// Check validates the structural invariants of the form.
func (f *Form) Check() error {
	if f.Title == "" {
		return &SchemaError{Message: "title is required"}
	}
	if f.Slug == "" {
		return &SchemaError{Message: "slug is required"}
	}
	seen := make(map[string]bool, len(f.Fields))
	for _, field := range f.Fields {
		if field.ID == "" {
			return &SchemaError{Message: "field id is required"}
		}
		if seen[field.ID] {
			return &SchemaError{FieldID: field.ID, Message: "duplicate field id"}
		}
		seen[field.ID] = true
		if !field.Type.Valid() {
			return &SchemaError{FieldID: field.ID, Message: fmt.Sprintf("unknown field type %q", field.Type)}
		}
	}
	return nil
}

// DanglingConditionals lists the ids of fields whose conditional points at
// themselves or at a field that is not in the form. Such rules are kept and
// evaluated as if the dependency had no answer.
func (f *Form) DanglingConditionals() []string {
	var ids []string
	for _, field := range f.Fields {
		c := field.Conditional
		if c == nil || c.FieldID == "" {
			continue
		}
		if _, ok := f.Field(c.FieldID); !ok || c.FieldID == field.ID {
			ids = append(ids, field.ID)
		}
	}
	return ids
}
