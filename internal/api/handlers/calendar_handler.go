package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "staysync/internal/api/context"
	"staysync/internal/engine/calendar"
	"staysync/internal/pkg/errors"
)

// CalendarHandler serves a property's calendar from the feed cache and
// backs the manual refresh and feed URL configuration actions.
type CalendarHandler struct {
	service *calendar.Service
}

func NewCalendarHandler(service *calendar.Service) *CalendarHandler {
	return &CalendarHandler{service: service}
}

func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	propertyID := paramFrom(r, "property_id")

	result, err := h.service.GetPropertyEvents(r.Context(), propertyID)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *CalendarHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	propertyID := paramFrom(r, "property_id")

	result, err := h.service.Refresh(r.Context(), propertyID)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *CalendarHandler) SetFeedURL(w http.ResponseWriter, r *http.Request) {
	propertyID := paramFrom(r, "property_id")

	var req struct {
		ICalURL string `json:"ical_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := h.service.SetFeedURL(r.Context(), propertyID, req.ICalURL); err != nil {
		if fe, ok := err.(*calendar.FetchError); ok {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeValidationFailed, fe.Message, map[string]string{"kind": string(fe.Kind)})
			return
		}
		writeCalendarError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeCalendarError(w http.ResponseWriter, err error) {
	if err == calendar.ErrPropertyNotFound {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Property not found", nil)
		return
	}
	errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
}

// paramFrom pulls an httprouter param injected by the router wrapper.
func paramFrom(r *http.Request, name string) string {
	params, ok := r.Context().Value(apiContext.Params).(httprouter.Params)
	if !ok {
		return ""
	}
	return params.ByName(name)
}
