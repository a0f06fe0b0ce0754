// Package address keeps the address selector and the five address fields in
// sync. Select is pure: it computes a Patch from the credentials and the
// chosen option; Apply writes the patch into a form.
package address

import (
	"fmt"

	"onboarding/internal/registration/models"
	dErrors "onboarding/pkg/domain-errors"
)

// FieldValidator runs a single field rule.
type FieldValidator interface {
	ValidateField(name models.FieldName, value string) models.FieldResult
}

// FieldUpdate is one address field change. Values are only written when
// SetValue is true; Revalidate asks Apply to rerun the field rule.
type FieldUpdate struct {
	Field      models.FieldName
	Value      string
	SetValue   bool
	Editable   bool
	Revalidate bool
}

// Patch is the outcome of an option change.
type Patch struct {
	Selection models.AddressSelection
	Updates   []FieldUpdate
}

// Select maps the chosen option onto the address fields. A nil option means
// the user cleared the selector.
func Select(creds *models.Credentials, option *int) (Patch, error) {
	if option == nil {
		return clearedPatch(), nil
	}
	id := *option
	if id == models.AddNewAddressOptionID {
		return addNewPatch(), nil
	}
	if creds == nil || id < 1 || id > len(creds.Addresses) {
		return Patch{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown address option: %d", id))
	}
	return existingPatch(id, creds.Addresses[id-1]), nil
}

// clearedPatch drops the selection and locks the fields without touching
// their values.
func clearedPatch() Patch {
	updates := make([]FieldUpdate, 0, len(models.AddressFields))
	for _, f := range models.AddressFields {
		updates = append(updates, FieldUpdate{Field: f})
	}
	return Patch{Selection: models.AddressSelection{}, Updates: updates}
}

func addNewPatch() Patch {
	updates := make([]FieldUpdate, 0, len(models.AddressFields))
	for _, f := range models.AddressFields {
		updates = append(updates, FieldUpdate{Field: f, SetValue: true, Editable: true})
	}
	return Patch{Selection: models.Select(models.AddNewAddressOptionID), Updates: updates}
}

// existingPatch copies the stored address verbatim. Only non-empty values are
// revalidated so empty optional parts do not flash errors.
func existingPatch(id int, a models.Address) Patch {
	values := []struct {
		field models.FieldName
		value string
	}{
		{models.FieldAddressLine1, a.Line1},
		{models.FieldCity, a.City},
		{models.FieldState, a.State},
		{models.FieldZip, a.ZipCode},
		{models.FieldCountry, a.Country},
	}
	updates := make([]FieldUpdate, 0, len(values))
	for _, v := range values {
		updates = append(updates, FieldUpdate{
			Field:      v.field,
			Value:      v.value,
			SetValue:   true,
			Revalidate: v.value != "",
		})
	}
	return Patch{Selection: models.Select(id), Updates: updates}
}

// Apply writes a patch into form and returns the resulting selection.
func Apply(form *models.FormState, patch Patch, v FieldValidator) models.AddressSelection {
	for _, u := range patch.Updates {
		entry := form.Entry(u.Field)
		if entry == nil {
			continue
		}
		entry.Editable = u.Editable
		if !u.SetValue {
			continue
		}
		entry.Value = u.Value
		entry.Error = ""
		entry.Validated = false
		if u.Revalidate && v != nil {
			res := v.ValidateField(u.Field, u.Value)
			entry.Validated = true
			if !res.Valid {
				entry.Error = res.Message
			}
		}
	}
	return patch.Selection
}

// Options derives the selector options for credentials.
func Options(creds *models.Credentials) []models.AddressOption {
	return models.BuildAddressOptions(creds)
}
