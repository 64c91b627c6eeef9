package testutil

import (
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
)

// TestIdentifiers are well-known registry numbers used across tests.
var TestIdentifiers = struct {
	OrganizationINN  string
	OrganizationOGRN string
	IndividualINN    string
	IndividualOGRN   string
}{
	OrganizationINN:  "7707083893",
	OrganizationOGRN: "1027700132195",
	IndividualINN:    "500100732259",
	IndividualOGRN:   "304500116000157",
}

// RecordBuilder provides a fluent interface for building registry rows as the
// registry sends them (capitalised, pointer fields).
type RecordBuilder struct {
	record models.RegistryRecord
}

// NewOrganizationRecord returns a builder for an active organisation row.
func NewOrganizationRecord() *RecordBuilder {
	return &RecordBuilder{record: models.RegistryRecord{
		Kind:         ptr("ul"),
		Organization: ptr(`ПАО СБЕРБАНК`),
		Head:         ptr("ПРЕЗИДЕНТ, ПРЕДСЕДАТЕЛЬ ПРАВЛЕНИЯ: ГРЕФ ГЕРМАН ОСКАРОВИЧ"),
		INN:          ptr(TestIdentifiers.OrganizationINN),
		OGRN:         ptr(TestIdentifiers.OrganizationOGRN),
		KPP:          ptr("773601001"),
		Address:      ptr("Г. МОСКВА, УЛ. ВАВИЛОВА, Д. 19"),
		Token:        ptr("org-row-token"),
	}}
}

// NewIndividualRecord returns a builder for an active sole proprietor row.
func NewIndividualRecord() *RecordBuilder {
	return &RecordBuilder{record: models.RegistryRecord{
		Kind:  ptr("fl"),
		Name:  ptr("ИВАНОВ ИВАН ИВАНОВИЧ"),
		INN:   ptr(TestIdentifiers.IndividualINN),
		OGRN:  ptr(TestIdentifiers.IndividualOGRN),
		Token: ptr("ip-row-token"),
	}}
}

func (b *RecordBuilder) TerminatedOn(date string) *RecordBuilder {
	b.record.TerminatedOn = ptr(date)
	return b
}

func (b *RecordBuilder) WithToken(token string) *RecordBuilder {
	b.record.Token = ptr(token)
	return b
}

// Without removes the fields with the given wire keys.
func (b *RecordBuilder) Without(keys ...string) *RecordBuilder {
	for _, key := range keys {
		switch key {
		case "k":
			b.record.Kind = nil
		case "n":
			b.record.Name = nil
		case "c":
			b.record.Organization = nil
		case "g":
			b.record.Head = nil
		case "i":
			b.record.INN = nil
		case "o":
			b.record.OGRN = nil
		case "p":
			b.record.KPP = nil
		case "a":
			b.record.Address = nil
		case "e":
			b.record.TerminatedOn = nil
		case "t":
			b.record.Token = nil
		}
	}
	return b
}

func (b *RecordBuilder) Build() *models.RegistryRecord {
	r := b.record
	return &r
}

func ptr(s string) *string {
	return &s
}
