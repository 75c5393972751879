package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/Sternrassler/user-console/pkg/client"
	"github.com/Sternrassler/user-console/pkg/listing"
	"github.com/Sternrassler/user-console/pkg/pagination"
	"github.com/go-chi/chi/v5"
)

// filterInput is one filter field of the page form.
type filterInput struct {
	Field listing.Field
	Label string
	Type  string
	Value string
}

type pageData struct {
	Inputs []filterInput
	View   listing.View
}

func newPageData(snap listing.State) pageData {
	inputs := make([]filterInput, 0, len(listing.Fields))
	for _, f := range listing.Fields {
		in := filterInput{Field: f, Type: "text", Value: snap.Filters.Get(f)}
		switch f {
		case listing.FieldName:
			in.Label = "Name"
		case listing.FieldCity:
			in.Label = "City"
		case listing.FieldJob:
			in.Label = "Job"
		case listing.FieldAge:
			in.Label = "Age"
			in.Type = "number"
		}
		inputs = append(inputs, in)
	}
	return pageData{Inputs: inputs, View: listing.BuildView(snap)}
}

// controller returns the session's controller, starting a session and
// setting the cookie when the request has none.
func (s *Server) controller(w http.ResponseWriter, r *http.Request) *listing.Controller {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if ctrl, ok := s.sessions.Get(cookie.Value); ok {
			return ctrl
		}
	}

	id, ctrl := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info().Str("session", id).Msg("Console session created")
	return ctrl
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(w, r)
	ctrl.Mount(r.Context())
	s.render(w, r, ctrl, "page")
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(w, r)
	ctrl.Mount(r.Context())
	s.render(w, r, ctrl, "listing")
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctrl := s.controller(w, r)

	// htmx posts one field at a time; a plain form submit carries them all.
	if name := r.PostForm.Get("field"); name != "" {
		field := listing.Field(name)
		value := r.PostForm.Get("value")
		if _, ok := r.PostForm["value"]; !ok {
			value = r.PostForm.Get(name)
		}
		if err := ctrl.SetFilter(r.Context(), field, value); err != nil {
			if errors.Is(err, listing.ErrUnknownField) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		current := ctrl.Snapshot().Filters
		for _, f := range listing.Fields {
			values, ok := r.PostForm[string(f)]
			if !ok || values[0] == current.Get(f) {
				continue
			}
			if err := ctrl.SetFilter(r.Context(), f, values[0]); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	s.respondAfterAction(w, r, ctrl)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(w, r)
	ctrl.ClearFilters(r.Context())
	s.respondAfterAction(w, r, ctrl)
}

func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.Error(w, "page must be a number", http.StatusBadRequest)
		return
	}

	ctrl := s.controller(w, r)
	ctrl.GoToPage(r.Context(), n)
	s.respondAfterAction(w, r, ctrl)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(w, r)
	ctrl.Retry(r.Context())
	s.respondAfterAction(w, r, ctrl)
}

// respondAfterAction renders the listing partial for htmx and redirects
// plain form posts back to the page.
func (s *Server) respondAfterAction(w http.ResponseWriter, r *http.Request, ctrl *listing.Controller) {
	if IsHTMXRequest(r) {
		Trigger(w, "listing-updated")
		s.render(w, r, ctrl, "listing")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, ctrl *listing.Controller, name string) {
	data := newPageData(ctrl.Snapshot())

	var buf bytes.Buffer
	var err error
	if name == "listing" {
		err = s.templates.ExecuteTemplate(&buf, name, data.View)
	} else {
		err = s.templates.ExecuteTemplate(&buf, name, data)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}

// handleExport streams every page of the session's current filter as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.controller(w, r).Snapshot()

	q := snap.Query()
	q.Page = 1
	q.PerPage = s.config.ExportPageSize

	fetcher := pagination.NewBatchFetcher(s.api.ListingPages(q), s.config.Export)
	pages, err := fetcher.FetchAllPages(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Int("fetched_pages", len(pages)).Msg("CSV export failed")
		http.Error(w, "export failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Write([]string{"id", "name", "age", "city", "job"})
	rows := 0
	for _, n := range nums {
		page, err := client.DecodeUserPage(pages[n])
		if err != nil {
			s.logger.Error().Err(err).Int("page", n).Msg("CSV export failed")
			http.Error(w, "export failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		for _, u := range page.Items {
			cw.Write(listing.RecordRow(u).Cells)
			rows++
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Int("pages", len(nums)).Int("rows", rows).Msg("Exported user listing")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the user API answers its liveness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("User API not reachable")
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}
