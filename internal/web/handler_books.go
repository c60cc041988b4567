package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/shelfinv/internal/domain"
)

// maxAvailableBooks caps the add dialog's candidate list.
const maxAvailableBooks = 7

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	st, err := s.storeView(r.Context(), allStores, r.URL.Query().Get("refresh") == "1")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, st.view.BooksWithStores())
}

type availableBooksResponse struct {
	Books []domain.Book `json:"books"`
	Total int           `json:"total"`
}

func (s *Server) handleAvailableBooks(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		badRequest(w, "invalid store id")
		return
	}

	st, err := s.storeView(r.Context(), storeID, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	books, total := st.view.AvailableBooks(query, maxAvailableBooks)
	if books == nil {
		books = []domain.Book{}
	}
	respond(w, http.StatusOK, availableBooksResponse{Books: books, Total: total})
}
