package analytics

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockcast/api/validators"
	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/season"
	pkgerrors "github.com/angelmondragon/stockcast/pkg/errors"
)

const (
	maxParamLen   = 128
	maxScopeLimit = 500

	maxMovementTop = 10000
)

// forecastRequest is the POST /forecasts body. scope_limit 0 selects every
// customer.
type forecastRequest struct {
	ScopeLimit  *int     `json:"scope_limit" validate:"omitempty,min=0,max=500"`
	CustomerIDs []string `json:"customer_ids" validate:"omitempty,max=500,unique,dive,required,max=128"`
}

// resolveScope applies the same defaults to GET and POST: an explicit limit
// wins, an explicit customer list alone forecasts all of those customers, and
// otherwise the configured default applies.
func resolveScope(limit *int, customers []string, defaultScope int) int {
	switch {
	case limit != nil:
		return *limit
	case len(customers) > 0:
		return 0
	default:
		return defaultScope
	}
}

// pathParam reads and unescapes a chi URL parameter so product names with
// spaces survive the round trip.
func pathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"field": key})
	}
	value = validators.SanitizeString(value, maxParamLen)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

func parseKind(r *http.Request) (aggregate.Kind, error) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return aggregate.KindWeather, nil
	}
	kind, err := aggregate.ParseKind(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "kind must be weather or festival").WithDetails(map[string]any{"field": "kind"})
	}
	return kind, nil
}

func parseFestival(r *http.Request) (season.Festival, error) {
	raw, err := pathParam(r, "festival")
	if err != nil {
		return "", err
	}
	festival, ok := season.ParseFestival(raw)
	if !ok {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown festival %q", raw).
			WithDetails(map[string]any{"field": "festival", "allowed": season.FestivalLabels()})
	}
	return festival, nil
}
