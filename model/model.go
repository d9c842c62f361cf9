package model

import "time"

type Form struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
	Fields      []Field        `json:"fields"`
	CreatedBy   string         `json:"createdBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Archived    bool           `json:"archived"`
}

type Field struct {
	ID          string         `json:"id"`
	Type        FieldType      `json:"type"`
	Label       string         `json:"label,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Validation  *Validation    `json:"validation,omitempty"`
	Conditional *Conditional   `json:"conditional,omitempty"`
	Multiple    bool           `json:"multiple,omitempty"`
	Styles      map[string]any `json:"styles,omitempty"`
}

// Validation holds the declarative constraints of a field. Every bound is
// optional; a nil pointer means "not set".
type Validation struct {
	MinLength      *int     `json:"minLength,omitempty"`
	MaxLength      *int     `json:"maxLength,omitempty"`
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	Pattern        string   `json:"pattern,omitempty"`
	PatternMessage string   `json:"patternMessage,omitempty"`
}

type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpContains  Operator = "contains"
)

// Conditional makes a field visible only when the answer to FieldID
// satisfies Op against Value.
type Conditional struct {
	FieldID string   `json:"fieldId"`
	Op      Operator `json:"op,omitempty"`
	Value   any      `json:"value"`
}

type Response struct {
	ID          string         `json:"id"`
	FormID      string         `json:"formId"`
	SubmittedAt time.Time      `json:"submittedAt"`
	Values      map[string]any `json:"values"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	Meta        map[string]any `json:"meta"`
}

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

const RoleAdmin = "admin"

// SubmitText is the label of the submit button, from settings.submitText.
func (f *Form) SubmitText() string {
	if s, ok := f.Settings["submitText"].(string); ok && s != "" {
		return s
	}
	return "Submit"
}

// Field returns the field with the given id.
func (f *Form) Field(id string) (*Field, bool) {
	for i := range f.Fields {
		if f.Fields[i].ID == id {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// DisplayName is the label, falling back to the id.
func (f *Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// HasOptions reports whether the field renders a list of choices.
func (f *Field) HasOptions() bool {
	return f.Type.UsesOptions() && len(f.Options) > 0
}

func (f *Field) HasOption(opt string) bool {
	for _, o := range f.Options {
		if o == opt {
			return true
		}
	}
	return false
}
