package models

import (
	"fmt"

	dErrors "onboarding/pkg/domain-errors"
)

// FieldName keys the signup form's descriptor table.
type FieldName string

const (
	FieldFirstName    FieldName = "firstName"
	FieldMiddleName   FieldName = "middleName"
	FieldLastName     FieldName = "lastName"
	FieldDOB          FieldName = "dob"
	FieldSSN          FieldName = "ssn"
	FieldAddressLine1 FieldName = "addressLine1"
	FieldAddressLine2 FieldName = "addressLine2"
	FieldCity         FieldName = "city"
	FieldState        FieldName = "state"
	FieldZip          FieldName = "zip"
	FieldCountry      FieldName = "country"
)

// FieldOrder is the display and validation order of the form.
var FieldOrder = []FieldName{
	FieldFirstName,
	FieldMiddleName,
	FieldLastName,
	FieldDOB,
	FieldSSN,
	FieldAddressLine1,
	FieldAddressLine2,
	FieldCity,
	FieldState,
	FieldZip,
	FieldCountry,
}

// AddressFields are the fields driven by the address selector.
var AddressFields = []FieldName{
	FieldAddressLine1,
	FieldCity,
	FieldState,
	FieldZip,
	FieldCountry,
}

// IsAddressField reports whether name is driven by the address selector.
func IsAddressField(name FieldName) bool {
	for _, f := range AddressFields {
		if f == name {
			return true
		}
	}
	return false
}

// ParseFieldName validates a field name coming from a transport.
func ParseFieldName(s string) (FieldName, error) {
	for _, f := range FieldOrder {
		if string(f) == s {
			return f, nil
		}
	}
	return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown field: %s", s))
}

// FieldResult is the outcome of running one field validator.
type FieldResult struct {
	Valid   bool
	Message string
	// Value is the normalized value to store when Valid.
	Value string
}

// FieldEntry is one row of the form: current value, last validation outcome
// and whether the user may write it.
type FieldEntry struct {
	Name      FieldName `json:"name"`
	Value     string    `json:"value"`
	Error     string    `json:"error,omitempty"`
	Validated bool      `json:"validated"`
	Editable  bool      `json:"editable"`
}

// FormState holds one entry per field in FieldOrder.
type FormState struct {
	Fields []FieldEntry `json:"fields"`
}

// NewFormState builds an empty form. Address fields start read-only until
// the user chooses to add a new address.
func NewFormState() FormState {
	fields := make([]FieldEntry, 0, len(FieldOrder))
	for _, name := range FieldOrder {
		fields = append(fields, FieldEntry{
			Name:     name,
			Editable: !IsAddressField(name),
		})
	}
	return FormState{Fields: fields}
}

// Entry returns a pointer into the table so callers can update in place.
func (f *FormState) Entry(name FieldName) *FieldEntry {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Value returns the current value of name, or "" when absent.
func (f *FormState) Value(name FieldName) string {
	if e := f.Entry(name); e != nil {
		return e.Value
	}
	return ""
}

// Prefill seeds personal fields from credentials. Address fields are left to
// the address reconciler.
func (f *FormState) Prefill(c *Credentials) {
	if c == nil {
		return
	}
	seed := map[FieldName]string{
		FieldFirstName:  c.FullName.FirstName,
		FieldMiddleName: c.FullName.MiddleName,
		FieldLastName:   c.FullName.LastName,
		FieldDOB:        c.BirthDate,
		FieldSSN:        c.SSN,
	}
	for name, value := range seed {
		if e := f.Entry(name); e != nil {
			e.Value = value
		}
	}
}

// HasErrors reports whether any entry currently carries an error.
func (f *FormState) HasErrors() bool {
	for _, e := range f.Fields {
		if e.Error != "" {
			return true
		}
	}
	return false
}

// Errors returns field -> message for every failing entry.
func (f *FormState) Errors() map[FieldName]string {
	out := make(map[FieldName]string)
	for _, e := range f.Fields {
		if e.Error != "" {
			out[e.Name] = e.Error
		}
	}
	return out
}

// Clone returns a deep copy.
func (f FormState) Clone() FormState {
	fields := make([]FieldEntry, len(f.Fields))
	copy(fields, f.Fields)
	return FormState{Fields: fields}
}
