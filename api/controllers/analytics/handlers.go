package analytics

import (
	"net/http"

	"github.com/angelmondragon/stockcast/api/responses"
	"github.com/angelmondragon/stockcast/api/validators"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

func TransactionsSummary(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := service.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func ProductList(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := service.Products(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if products == nil {
			products = []string{}
		}
		responses.WriteSuccess(w, products)
	}
}

// Movement serves GET /movement?top=N. top=0 lists every product.
func Movement(service Service, defaultTop int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top, err := validators.ParseQueryInt(r, "top", defaultTop, 0, maxMovementTop)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := service.MovementSummary(r.Context(), top)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func ProductMonthly(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		product, err := pathParam(r, "product")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithProduct(ctx, product)
		rows, err := service.AggregateMonthly(ctx, product)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, emptyIfNil(rows))
	}
}

func ProductSeasonal(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		product, err := pathParam(r, "product")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithProduct(ctx, product)
		kind, err := parseKind(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		from, to, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := service.AggregateSeasonal(ctx, product, kind, from, to)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, emptyIfNil(rows))
	}
}

func ProductTrend(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		product, err := pathParam(r, "product")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithProduct(ctx, product)
		from, to, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		trend, err := service.ProductTrend(ctx, product, from, to)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, trend)
	}
}

func ProductFestival(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		product, err := pathParam(r, "product")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithProduct(ctx, product)
		festival, err := parseFestival(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		from, to, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := service.FestivalDrilldown(ctx, product, festival, from, to)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, emptyIfNil(rows))
	}
}

func CustomerProfile(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		customerID, err := pathParam(r, "customerId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithCustomerID(ctx, customerID)
		profile, err := service.CustomerProfile(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func NextPurchase(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		predictions, err := service.EstimateNextPurchase(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, emptyIfNil(predictions))
	}
}

// ForecastList serves GET /forecasts?scope_limit=N&customer_ids=a,b.
// scope_limit is 0 (every customer) to 500.
func ForecastList(service Service, defaultScope int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var limit *int
		if r.URL.Query().Has("scope_limit") {
			value, err := validators.ParseQueryInt(r, "scope_limit", defaultScope, 0, maxScopeLimit)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			limit = &value
		}
		customers := validators.ParseQueryList(r, "customer_ids", maxParamLen)
		req := analytics.ForecastRequest{
			ScopeLimit: resolveScope(limit, customers, defaultScope),
			Customers:  customers,
		}
		writeForecasts(w, r, service, req, logg)
	}
}

// ForecastRun serves POST /forecasts.
func ForecastRun(service Service, defaultScope int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body forecastRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req := analytics.ForecastRequest{
			ScopeLimit: resolveScope(body.ScopeLimit, body.CustomerIDs, defaultScope),
			Customers:  body.CustomerIDs,
		}
		writeForecasts(w, r, service, req, logg)
	}
}

func writeForecasts(w http.ResponseWriter, r *http.Request, service Service, req analytics.ForecastRequest, logg *logger.Logger) {
	ctx := logg.WithFields(r.Context(), map[string]any{
		"scope_limit": req.ScopeLimit,
		"customers":   len(req.Customers),
	})
	results, err := service.ForecastStock(ctx, req)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, emptyIfNil(results))
}

func InvalidateCache(service Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := service.Invalidate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]int64{"freshness_token": token})
	}
}

func emptyIfNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
