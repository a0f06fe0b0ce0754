package models

import "strings"

// FullName is the legal name carried by one-click credentials.
type FullName struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

// Address is one known address of the identity.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Label is the display concatenation used for address options.
func (a Address) Label() string {
	return strings.Join([]string{a.Line1, a.City, a.State, a.ZipCode}, ", ")
}

// Credentials are prefetched identity data issued through the one-click
// channel. They are read-only to the registration core.
type Credentials struct {
	FullName  FullName  `json:"fullName"`
	BirthDate string    `json:"birthDate,omitempty"`
	SSN       string    `json:"ssn,omitempty"`
	Addresses []Address `json:"address,omitempty"`
}

// AddNewAddressOptionID is the sentinel option that switches the address
// block to manual entry.
const AddNewAddressOptionID = 0

// AddressOption is a derived choice shown in the address selector.
// ID 0 is the "add new" sentinel, IDs 1..N map to Credentials.Addresses.
type AddressOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// AddressSelection is the user's current choice in the address selector.
//
// Invariants:
//   - IsAddingNew is true iff SelectedIndex points at AddNewAddressOptionID
//   - both are unset until the user makes a first choice
type AddressSelection struct {
	SelectedIndex *int `json:"selectedIndex"`
	IsAddingNew   bool `json:"isAddingNew"`
}

// HasSelection reports whether the user picked any option.
func (s AddressSelection) HasSelection() bool {
	return s.SelectedIndex != nil
}

// Select returns the selection for option id.
func Select(id int) AddressSelection {
	return AddressSelection{SelectedIndex: &id, IsAddingNew: id == AddNewAddressOptionID}
}
