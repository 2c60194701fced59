package httpapi

import (
	"net/http"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/inquiry"
	"github.com/BearBump/GTLTrack/internal/services/lookup"
	"github.com/BearBump/GTLTrack/internal/services/siteinfo"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type trackResponse struct {
	State   string                 `json:"state"`
	LR      string                 `json:"lr,omitempty"`
	Record  *models.ShipmentRecord `json:"record,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// track serves both /track/{lr} and /track?lr=.
func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	lr := chi.URLParam(r, "lr")
	if lr == "" {
		lr = r.URL.Query().Get("lr")
	}

	// Flow на каждый запрос: HTTP без состояния, машина состояний нужна только для маппинга
	res, err := lookup.NewFlow(s.d.Tracker).Submit(r.Context(), lr)
	out := trackResponse{State: res.State.String(), LR: res.LR, Record: res.Record, Message: res.Message}
	if errors.Is(err, lookup.ErrEmptyLR) {
		writeJSON(w, http.StatusBadRequest, out)
		return
	}

	switch res.State {
	case lookup.Found:
		writeJSON(w, http.StatusOK, out)
	case lookup.NotFound:
		writeJSON(w, http.StatusNotFound, out)
	default:
		logStoreError(r, err)
		writeJSON(w, http.StatusBadGateway, out)
	}
}

func (s *Server) submitInquiry(w http.ResponseWriter, r *http.Request) {
	var req inquiry.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.d.Inquiry.Submit(r.Context(), req)
	var ve *inquiry.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusUnprocessableEntity, ve.Message)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) branches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, siteinfo.Branches())
}

func (s *Server) contacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Contacts)
}
