package service

import (
	"fmt"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
)

const opConvert = "convert_record"

// ToSummary converts a raw registry row into a CompanySummary.
// A missing required key means the registry changed its schema; it is reported as
// malformed_response and never filled with a default.
func ToSummary(record *models.RegistryRecord, now time.Time) (*models.CompanySummary, error) {
	if record == nil {
		return nil, registryerr.New(registryerr.CategoryMalformedResponse, opConvert, "record is nil", nil)
	}
	if record.Kind == nil {
		return nil, missingKeys("k")
	}

	summary := &models.CompanySummary{
		AsOf:   now,
		Active: record.TerminatedOn == nil,
	}
	if record.TerminatedOn != nil {
		summary.TerminatedOn = *record.TerminatedOn
	}

	if record.IsIndividual() {
		if missing := absent(map[string]*string{"n": record.Name, "i": record.INN, "o": record.OGRN}); len(missing) > 0 {
			return nil, missingKeys(missing...)
		}
		summary.Kind = models.KindIndividual
		summary.Name = models.TitleCase(*record.Name)
		summary.INN = *record.INN
		summary.OGRN = *record.OGRN
		return summary, nil
	}

	if missing := absent(map[string]*string{
		"c": record.Organization,
		"g": record.Head,
		"i": record.INN,
		"o": record.OGRN,
		"p": record.KPP,
		"a": record.Address,
	}); len(missing) > 0 {
		return nil, missingKeys(missing...)
	}
	summary.Kind = models.KindOrganization
	summary.Name = *record.Organization
	summary.Head = models.TitleCase(*record.Head)
	summary.INN = *record.INN
	summary.OGRN = *record.OGRN
	summary.KPP = *record.KPP
	summary.Address = models.TitleCase(*record.Address)
	return summary, nil
}

// absent returns the wire keys whose values are missing, in wire-key order.
func absent(fields map[string]*string) []string {
	var missing []string
	for _, key := range []string{"k", "n", "c", "g", "i", "o", "p", "a"} {
		if v, ok := fields[key]; ok && v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

func missingKeys(keys ...string) error {
	return registryerr.New(registryerr.CategoryMalformedResponse, opConvert, fmt.Sprintf("record is missing keys %q", keys), nil)
}
