package http

import (
	"context"
	"net/http"
	"strings"

	"mess/internal/core"
	"mess/internal/services"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Members())
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := s.svc.AddMember(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveMember(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.ToggleMember(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMealsForDate(w http.ResponseWriter, r *http.Request) {
	meals, err := s.svc.MealsForDate(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleUpdateMeal(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slot := core.MealSlot(strings.ToLower(strings.TrimSpace(req.Slot)))
	rec, err := s.svc.UpdateMeal(r.Context(), roleOf(r), req.Date, req.MemberID, slot, req.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateMealCount(w http.ResponseWriter, r *http.Request) {
	var req mealCountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	rec, err := s.svc.UpdateMealCount(r.Context(), roleOf(r), req.Date, req.MemberID, req.LunchCount, req.DinnerCount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// collection registers list, add and remove routes for one record type
// under /api/{name}.
func (s *Server) collection(mux *http.ServeMux, name string, list, add http.HandlerFunc, remove func(context.Context, string) error) {
	mux.HandleFunc("GET /api/"+name, list)
	mux.HandleFunc("POST /api/"+name, add)
	mux.HandleFunc("DELETE /api/"+name+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := remove(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// listOf serves one collection of the current snapshot.
func listOf[T any](svc *services.LedgerService, pick func(core.Snapshot) []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := pick(svc.Snapshot())
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// addOf decodes a record and hands it to add.
func addOf[T any](add func(context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec T
		if err := decodeJSON(w, r, &rec); err != nil {
			writeServiceError(w, r, err)
			return
		}
		created, err := add(r.Context(), rec)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
