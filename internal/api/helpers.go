// Package api implements the HTTP REST API a UI uses to drive the counters.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/micro-nova/defect-tally/internal/controller"
	"github.com/micro-nova/defect-tally/internal/events"
	"github.com/micro-nova/defect-tally/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// Controller is the interface the handlers use to read and change counters.
type Controller interface {
	CurrentCounts() []models.Counter
	Increment(index int) (int, error)
	ResetOne(index int) error
	ResetAll() error
}

// EventBus is the interface for subscribing to counter change events.
type EventBus interface {
	Subscribe(id string) <-chan events.Update
	Unsubscribe(id string)
	Seq() uint64
}

// counterView is one counter as rendered to clients.
type counterView struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func views(counters []models.Counter) []counterView {
	out := make([]counterView, len(counters))
	for i, c := range counters {
		out[i] = counterView{Index: i, Name: c.Name, Count: c.Count}
	}
	return out
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON AppError response.
func writeError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)
	writeJSON(w, appErr.Status, appErr)
}

// toAppError maps domain errors onto API errors.
func toAppError(err error) *models.AppError {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var oor *models.OutOfRangeError
	if errors.As(err, &oor) {
		e := models.ErrNotFound(oor.Error())
		e.Code = "OUT_OF_RANGE"
		e.Field = "index"
		return e
	}
	if errors.Is(err, controller.ErrShutDown) {
		return &models.AppError{Code: "SHUTTING_DOWN", Message: err.Error(), Status: http.StatusServiceUnavailable}
	}
	return models.ErrInternal(err.Error())
}

// intParam reads an integer path parameter by name.
func intParam(r *http.Request, name string) (int, error) {
	s := chi.URLParam(r, name)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.ErrBadRequest("invalid " + name + " parameter")
	}
	return n, nil
}
