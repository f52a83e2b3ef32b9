package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/micro-nova/defect-tally/internal/models"
)

// resetRequest is the optional JSON body of the reset endpoints.
type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handlers) getCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views(h.ctrl.CurrentCounts()))
}

func (h *Handlers) getCounter(w http.ResponseWriter, r *http.Request) {
	idx, err := intParam(r, "idx")
	if err != nil {
		writeError(w, err)
		return
	}
	counters := h.ctrl.CurrentCounts()
	if idx < 0 || idx >= len(counters) {
		writeError(w, &models.OutOfRangeError{Index: idx, Len: len(counters)})
		return
	}
	writeJSON(w, http.StatusOK, views(counters)[idx])
}

func (h *Handlers) increment(w http.ResponseWriter, r *http.Request) {
	idx, err := intParam(r, "idx")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.ctrl.Increment(idx)
	if err != nil {
		writeError(w, err)
		return
	}
	name := h.ctrl.CurrentCounts()[idx].Name
	writeJSON(w, http.StatusOK, counterView{Index: idx, Name: name, Count: n})
}

func (h *Handlers) resetCounter(w http.ResponseWriter, r *http.Request) {
	idx, err := intParam(r, "idx")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireConfirm(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctrl.ResetOne(idx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views(h.ctrl.CurrentCounts()))
}

func (h *Handlers) resetAll(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctrl.ResetAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views(h.ctrl.CurrentCounts()))
}

// requireConfirm accepts either ?confirm=true or a {"confirm": true} body.
// The counter store never asks; confirming a reset is the client's job and
// this endpoint only checks that it happened.
func requireConfirm(r *http.Request) error {
	if q := r.URL.Query().Get("confirm"); q != "" {
		ok, err := strconv.ParseBool(q)
		if err != nil {
			return models.ErrBadRequest("invalid confirm parameter")
		}
		if ok {
			return nil
		}
		return models.ErrConfirmationRequired
	}
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return models.ErrConfirmationRequired
		}
		return models.ErrBadRequest("invalid JSON body")
	}
	if !req.Confirm {
		return models.ErrConfirmationRequired
	}
	return nil
}
