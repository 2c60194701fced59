package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/admin"
	"github.com/BearBump/GTLTrack/internal/services/auth"
	"github.com/BearBump/GTLTrack/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string `json:"token,omitempty"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.d.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if s.opts.SessionTTL > 0 {
		c.MaxAge = int(s.opts.SessionTTL.Seconds())
	}
	http.SetCookie(w, c)
	slog.Info("admin logged in", "email", sess.Email)
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, Email: sess.Email, IsAdmin: sess.IsAdmin})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Auth.Logout(r.Context(), sessionToken(r)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Email: sess.Email, IsAdmin: sess.IsAdmin})
}

func filterFrom(r *http.Request) admin.Filter {
	q := r.URL.Query()
	return admin.Filter{Search: q.Get("search"), Status: q.Get("status")}
}

func (s *Server) listShipments(w http.ResponseWriter, r *http.Request) {
	snap, err := s.d.Admin.List(r.Context(), filterFrom(r))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type statsResponse struct {
	Stats  admin.Stats         `json:"stats"`
	Counts []admin.StatusCount `json:"counts"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.d.Admin.List(r.Context(), admin.Filter{})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: snap.Stats, Counts: snap.Counts})
}

func (s *Server) createShipment(w http.ResponseWriter, r *http.Request) {
	var rec models.ShipmentRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := s.d.Admin.Create(r.Context(), rec)
	if s.writeSaveError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) updateShipment(w http.ResponseWriter, r *http.Request) {
	var rec models.ShipmentRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := s.d.Admin.Update(r.Context(), chi.URLParam(r, "lr"), rec)
	if s.writeSaveError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deleteShipment(w http.ResponseWriter, r *http.Request) {
	err := s.d.Admin.Delete(r.Context(), chi.URLParam(r, "lr"), r.URL.Query().Get("confirm") == "true")
	if errors.Is(err, admin.ErrConfirmRequired) {
		writeError(w, http.StatusBadRequest, "add ?confirm=true to delete")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSaveError maps validation errors to 400 and everything else to a store failure.
func (s *Server) writeSaveError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, shipments.ErrEmptyLR),
		errors.Is(err, shipments.ErrInvalidLR),
		errors.Is(err, admin.ErrUnknownStatus),
		errors.Is(err, admin.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeStoreError(w, r, err)
	}
	return true
}

func (s *Server) exportShipments(w http.ResponseWriter, r *http.Request) {
	rows, err := s.d.Admin.Export(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, admin.ExportFilename(s.d.Admin.Now())))
	if err := admin.ExportCSV(w, rows); err != nil {
		slog.Warn("write csv export", "error", err.Error())
	}
}

// streamShipments pushes the admin list as server-sent events on every change.
func (s *Server) streamShipments(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates := make(chan admin.Snapshot, 1)
	_, stop, err := s.d.Admin.Watch(r.Context(), filterFrom(r), func(snap admin.Snapshot) {
		// последний снапшот важнее промежуточных
		select {
		case <-updates:
		default:
		}
		updates <- snap
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			b, err := json.Marshal(snap)
			if err != nil {
				slog.Error("marshal snapshot", "error", err.Error())
				continue
			}
			if _, err := fmt.Fprintf(w, "event: shipments\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
