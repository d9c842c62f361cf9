package model

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldEmail    FieldType = "email"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldFile     FieldType = "file"
)

// FieldTypes lists every field type in palette order.
var FieldTypes = []FieldType{
	FieldText,
	FieldTextarea,
	FieldSelect,
	FieldRadio,
	FieldCheckbox,
	FieldEmail,
	FieldDate,
	FieldNumber,
	FieldFile,
}

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldSelect, FieldRadio, FieldCheckbox,
		FieldEmail, FieldDate, FieldNumber, FieldFile:
		return true
	}
	return false
}

// UsesOptions reports whether the options list is meaningful for t.
func (t FieldType) UsesOptions() bool {
	switch t {
	case FieldSelect, FieldRadio, FieldCheckbox:
		return true
	case FieldText, FieldTextarea, FieldEmail, FieldDate, FieldNumber, FieldFile:
		return false
	}
	return false
}

// TextLike reports whether values of t are plain strings typed by the user.
func (t FieldType) TextLike() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldDate, FieldNumber:
		return true
	case FieldSelect, FieldRadio, FieldCheckbox, FieldFile:
		return false
	}
	return false
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ft := FieldType(s)
	if !ft.Valid() {
		return errors.Errorf("unknown field type %q", s)
	}
	*t = ft
	return nil
}
