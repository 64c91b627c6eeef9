package models

import (
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
)

// Identifier is a taxpayer (INN) or registration (OGRN/OGRNIP) number.
// It only ever contains decimal digits.
type Identifier string

// ParseIdentifier validates caller input. Only the digit-only shape is checked;
// telling an INN from an OGRN is left to the registry. Surrounding whitespace is
// rejected like any other non-digit; presentation layers trim before calling.
func ParseIdentifier(raw string) (Identifier, error) {
	if raw == "" {
		return "", registryerr.User(registryerr.CategoryInvalidIdentifier, "parse_identifier", registryerr.MsgInvalidIdentifier)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", registryerr.User(registryerr.CategoryInvalidIdentifier, "parse_identifier", registryerr.MsgInvalidIdentifier)
		}
	}
	return Identifier(raw), nil
}

func (id Identifier) String() string { return string(id) }

// Kind guesses the number type from its length. Used for labels only.
func (id Identifier) Kind() string {
	switch len(id) {
	case 10, 12:
		return "inn"
	case 13, 15:
		return "ogrn"
	default:
		return "unknown"
	}
}

// SearchToken correlates a token-acquisition call with the following lookup.
type SearchToken string

// ExtractionToken identifies a document-generation job. The registry may reissue it.
type ExtractionToken string

// DownloadReference is the URL the generated document can be fetched from.
type DownloadReference string

// ExtractionStatus is the registry's view of a document-generation job.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionReady   ExtractionStatus = "ready"
)

// EntityKind discriminates the two record shapes.
type EntityKind string

const (
	KindIndividual   EntityKind = "individual"
	KindOrganization EntityKind = "organization"
)

// individualFlag is the registry's "k" value for sole proprietors.
const individualFlag = "fl"

// RegistryRecord is the first row of a search result, kept as the registry sent it.
// Fields are pointers so that a missing key can be told apart from an empty value.
type RegistryRecord struct {
	Kind         *string `json:"k,omitempty"`
	Name         *string `json:"n,omitempty"`
	Organization *string `json:"c,omitempty"`
	Head         *string `json:"g,omitempty"`
	INN          *string `json:"i,omitempty"`
	OGRN         *string `json:"o,omitempty"`
	KPP          *string `json:"p,omitempty"`
	Address      *string `json:"a,omitempty"`
	TerminatedOn *string `json:"e,omitempty"`
	Token        *string `json:"t,omitempty"`
}

// IsIndividual reports whether the record describes a sole proprietor.
func (r *RegistryRecord) IsIndividual() bool {
	return r.Kind != nil && *r.Kind == individualFlag
}

// ExtractionPayload is the raw body of a vyp-request or vyp-status response.
type ExtractionPayload struct {
	Token  *string `json:"t,omitempty"`
	Status *string `json:"status,omitempty"`
}

// CompanySummary is the render-ready projection of a RegistryRecord.
type CompanySummary struct {
	Kind         EntityKind `json:"kind"`
	Name         string     `json:"name"`
	Head         string     `json:"head,omitempty"`
	INN          string     `json:"inn"`
	OGRN         string     `json:"ogrn"`
	KPP          string     `json:"kpp,omitempty"`
	Address      string     `json:"address,omitempty"`
	Active       bool       `json:"active"`
	TerminatedOn string     `json:"terminated_on,omitempty"`
	AsOf         time.Time  `json:"as_of"`
}
