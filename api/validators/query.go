package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// QueryInt reads an optional integer query parameter bounded to [min, max].
func QueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Field(key, key+" must be a whole number")
	}
	if value < min || value > max {
		return 0, pkgerrors.Field(key, key+" must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return value, nil
}

// QueryEnum reads an optional filter and checks it with parse. An absent
// parameter yields nil.
func QueryEnum[T ~string](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.Field(key, err.Error())
	}
	return &value, nil
}

// QueryString reads an optional free text parameter.
func QueryString(r *http.Request, key string) string {
	return queryValue(r, key)
}

// URLParamUUID reads a chi path parameter that must be a UUID.
func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.Field(key, key+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Field(key, "invalid "+key)
	}
	return id, nil
}
