package models

import "fmt"

// SearchDomain selects which records a search runs over
type SearchDomain string

const (
	DomainClients SearchDomain = "clients"
	DomainCredits SearchDomain = "credits"
)

// ParseSearchDomain maps user input onto a SearchDomain.
func ParseSearchDomain(s string) (SearchDomain, error) {
	switch SearchDomain(s) {
	case DomainClients, "":
		return DomainClients, nil
	case DomainCredits:
		return DomainCredits, nil
	}
	return "", fmt.Errorf("unknown search domain %q", s)
}

// SearchField is a column a search can match on.
type SearchField string

const (
	FieldName       SearchField = "name"
	FieldPhone      SearchField = "phone"
	FieldCredit     SearchField = "credit"
	FieldCreditDate SearchField = "credit_date"
	FieldVersement  SearchField = "versement"
	FieldPaid       SearchField = "paid"
)

// Fields returns the ordered candidate fields scanned for the domain.
func (d SearchDomain) Fields() []SearchField {
	switch d {
	case DomainClients:
		return []SearchField{FieldName, FieldPhone, FieldCredit}
	case DomainCredits:
		return []SearchField{FieldCreditDate, FieldVersement, FieldPaid}
	}
	return nil
}

// Exact reports whether the field is matched by equality instead of substring.
func (f SearchField) Exact() bool {
	return f == FieldPaid
}
