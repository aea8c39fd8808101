package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tournevent/shipquote/internal/locale"
	"github.com/tournevent/shipquote/internal/quote"
	"github.com/tournevent/shipquote/pkg/shipping"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var validate = validator.New()

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeCode := chi.URLParam(r, "store")

	var body quoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	items, err := s.lineItems(body.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_price", err.Error())
		return
	}

	q, err := s.service.GetShippingQuote(ctx, quote.Request{
		CartID:     body.CartID,
		StoreCode:  storeCode,
		CustomerID: body.CustomerID,
		Delivery:   body.Delivery.address(),
		Items:      items,
		Locale:     locale.ParseTag(body.Locale, language.Und),
		IPAddress:  clientIP(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var summary *shipping.ShippingSummary
	if q.FreeShipping || q.SelectedOption != nil {
		sum, err := s.service.Summary(q, "")
		if err == nil {
			summary = &sum
		}
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(q, summary))
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	storeCode := chi.URLParam(r, "store")
	tag := locale.ParseTag(r.URL.Query().Get("lang"), language.Und)

	countries, err := s.service.ShipToCountries(r.Context(), storeCode, tag)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := make([]countryDTO, 0, len(countries))
	for _, c := range countries {
		resp = append(resp, countryDTO{Code: c.Code, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))

	var modules []shipping.IntegrationModule
	if country != "" {
		modules = s.registry.ModulesForCountry(country)
	} else {
		for _, code := range s.registry.Codes() {
			if meta, ok := s.registry.Metadata(code); ok {
				modules = append(modules, meta)
			}
		}
	}
	resp := make([]moduleDTO, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, moduleDTO{Code: m.Code, Name: m.Name, Regions: m.Regions, Custom: m.Custom})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfigureModule(w http.ResponseWriter, r *http.Request) {
	storeCode := chi.URLParam(r, "store")
	moduleCode := chi.URLParam(r, "module")

	var body moduleConfigurationDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	cfg := shipping.ModuleConfiguration{
		ModuleCode:         moduleCode,
		Active:             body.Active,
		Priority:           body.Priority,
		Environment:        body.Environment,
		IntegrationKeys:    body.IntegrationKeys,
		IntegrationOptions: body.IntegrationOptions,
	}
	if err := s.service.ConfigureModule(r.Context(), storeCode, cfg); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shipping.ErrStoreNotFound):
		return http.StatusNotFound, "store_not_found"
	case errors.Is(err, shipping.ErrModuleNotFound):
		return http.StatusNotFound, "module_not_found"
	case errors.Is(err, shipping.ErrNoLineItems):
		return http.StatusBadRequest, "no_line_items"
	case errors.Is(err, shipping.ErrMissingCountry):
		return http.StatusBadRequest, "missing_country"
	case errors.Is(err, shipping.ErrInvalidPackage):
		return http.StatusBadRequest, "invalid_package"
	case errors.Is(err, shipping.ErrRejectedConfiguration):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, shipping.ErrInvalidConfiguration):
		return http.StatusInternalServerError, "configuration_error"
	case errors.Is(err, shipping.ErrModuleFailed):
		if shipping.IsRetryable(err) {
			return http.StatusServiceUnavailable, "module_unavailable"
		}
		return http.StatusBadGateway, "module_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorDTO{Error: code, Message: message})
}
