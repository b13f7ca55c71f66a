// Package address manages the user address book and postal-code autofill.
package address

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/postal"
)

// Source tells where city and state came from.
type Source string

const (
	SourceDirectory Source = "directory"
	SourceManual    Source = "manual"
)

// PartialAddress is an address as typed by the user.
type PartialAddress struct {
	RecipientName string
	Phone         string
	StreetLine1   string
	StreetLine2   string
	PostalCode    string
	City          string
	State         string
}

// Resolution is a complete, normalized address.
type Resolution struct {
	Address PartialAddress
	Source  Source
}

// Autofill is the result of looking up a postal code. When the directory
// cannot answer, City and State are empty and ManualEntryRequired is set.
type Autofill struct {
	PostalCode          string `json:"postal_code"`
	City                string `json:"city"`
	State               string `json:"state"`
	ManualEntryRequired bool   `json:"manual_entry_required"`
}

type directory interface {
	Lookup(ctx context.Context, postalCode string) (*postal.Place, error)
}

// Resolver validates addresses and fills city/state from the postal
// directory. A nil directory means every address is entered manually.
type Resolver struct {
	directory directory
	logg      *logger.Logger
}

func NewResolver(dir directory, logg *logger.Logger) *Resolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{directory: dir, logg: logg}
}

// Autofill looks up postalCode. Directory failures degrade to manual entry
// and are not errors; only a malformed code is.
func (r *Resolver) Autofill(ctx context.Context, postalCode string) (*Autofill, error) {
	code := strings.TrimSpace(postalCode)
	if !postal.ValidCode(code) {
		return nil, pkgerrors.Field("postal_code", "postal code must be 6 digits")
	}
	result := &Autofill{PostalCode: code, ManualEntryRequired: true}
	if r.directory == nil {
		return result, nil
	}

	place, err := r.directory.Lookup(ctx, code)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			r.logg.Warn(r.logg.WithField(ctx, "postal_code", code), "postal directory unavailable, falling back to manual entry")
		}
		return result, nil
	}
	result.City = place.City
	result.State = place.State
	result.ManualEntryRequired = false
	return result, nil
}

// Resolve validates in and returns it normalized. A directory answer
// overrides the supplied city and state; otherwise the supplied values are
// kept as manual entry and must be present.
func (r *Resolver) Resolve(ctx context.Context, in PartialAddress) (*Resolution, error) {
	addr := PartialAddress{
		RecipientName: strings.TrimSpace(in.RecipientName),
		Phone:         digitsOnly(in.Phone),
		StreetLine1:   strings.TrimSpace(in.StreetLine1),
		StreetLine2:   strings.TrimSpace(in.StreetLine2),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
	}

	if addr.RecipientName == "" {
		return nil, pkgerrors.Field("recipient_name", "recipient name is required")
	}
	if addr.Phone == "" {
		return nil, pkgerrors.Field("phone", "phone is required")
	}
	if len(addr.Phone) != 10 {
		return nil, pkgerrors.Field("phone", "phone must have exactly 10 digits")
	}
	if addr.StreetLine1 == "" {
		return nil, pkgerrors.Field("street_line1", "street line 1 is required")
	}
	if addr.PostalCode == "" {
		return nil, pkgerrors.Field("postal_code", "postal code is required")
	}

	fill, err := r.Autofill(ctx, addr.PostalCode)
	if err != nil {
		return nil, err
	}
	source := SourceManual
	if !fill.ManualEntryRequired {
		addr.City = fill.City
		addr.State = fill.State
		source = SourceDirectory
	}

	if addr.City == "" {
		return nil, pkgerrors.Field("city", "city is required")
	}
	if addr.State == "" {
		return nil, pkgerrors.Field("state", "state is required")
	}
	return &Resolution{Address: addr, Source: source}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
