package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sasbridge/internal/favorites"
)

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	all, err := s.favorites.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if all == nil {
		all = []favorites.Favorite{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	var f favorites.Favorite
	if err := decodeJSON(w, r, &f); err != nil {
		respondError(w, r, err)
		return
	}

	saved, err := s.favorites.Save(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleUpdateFavorite replaces the favorite named in the URL; the body's
// name is ignored.
func (s *Server) handleUpdateFavorite(w http.ResponseWriter, r *http.Request) {
	var f favorites.Favorite
	if err := decodeJSON(w, r, &f); err != nil {
		respondError(w, r, err)
		return
	}
	f.Name = chi.URLParam(r, "name")

	saved, err := s.favorites.Save(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.favorites.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
