package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type addressRequest struct {
	RecipientName string `json:"recipient_name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,phone"`
	StreetLine1   string `json:"street_line1" validate:"required,max=200"`
	StreetLine2   string `json:"street_line2" validate:"max=200"`
	PostalCode    string `json:"postal_code" validate:"required,pincode"`
	City          string `json:"city" validate:"max=100"`
	State         string `json:"state" validate:"max=100"`
	IsDefault     bool   `json:"is_default"`
}

func (req addressRequest) input() address.Input {
	return address.Input{
		RecipientName: validators.SanitizeString(req.RecipientName, 120),
		Phone:         validators.SanitizeString(req.Phone, 32),
		StreetLine1:   validators.SanitizeString(req.StreetLine1, 200),
		StreetLine2:   validators.SanitizeString(req.StreetLine2, 200),
		PostalCode:    validators.SanitizeString(req.PostalCode, 6),
		City:          validators.SanitizeString(req.City, 100),
		State:         validators.SanitizeString(req.State, 100),
		IsDefault:     req.IsDefault,
	}
}

type addressResponse struct {
	ID            uuid.UUID `json:"id"`
	RecipientName string    `json:"recipient_name"`
	Phone         string    `json:"phone"`
	StreetLine1   string    `json:"street_line1"`
	StreetLine2   *string   `json:"street_line2,omitempty"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	PostalCode    string    `json:"postal_code"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAddressResponse(a *models.Address) addressResponse {
	return addressResponse{
		ID:            a.ID,
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		StreetLine1:   a.StreetLine1,
		StreetLine2:   a.StreetLine2,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
		IsDefault:     a.IsDefault,
		CreatedAt:     a.CreatedAt,
	}
}

type addressBook interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input address.Input) (*models.Address, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input address.Input) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Lookup(ctx context.Context, postalCode string) (*address.Autofill, error)
}

func AddressList(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]addressResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newAddressResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AddressCreate stores a new address. City and state may be omitted when the
// postal directory can fill them in.
func AddressCreate(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), userID, req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressResponse(created))
	}
}

func AddressUpdate(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Update(r.Context(), userID, addressID, req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAddressResponse(updated))
	}
}

func AddressDelete(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), userID, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func AddressSetDefault(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.SetDefault(r.Context(), userID, addressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAddressResponse(updated))
	}
}

// AddressPincodeLookup autofills city and state. A directory outage answers
// 200 with manual_entry_required rather than an error.
func AddressPincodeLookup(svc addressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fill, err := svc.Lookup(r.Context(), chi.URLParam(r, "postalCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fill)
	}
}
