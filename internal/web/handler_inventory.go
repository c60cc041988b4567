package web

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/inventory"
)

type inventoryRow struct {
	domain.StoreBook
	State        string `json:"state"`
	WorkingPrice string `json:"working_price,omitempty"`
}

type inventoryResponse struct {
	Store  *domain.Store  `json:"store"`
	Search string         `json:"search,omitempty"`
	Books  []inventoryRow `json:"books"`
	Notice string         `json:"notice,omitempty"`
}

type rowResponse struct {
	ID           domain.ID `json:"id"`
	State        string    `json:"state"`
	WorkingPrice string    `json:"working_price,omitempty"`
}

// priceInput accepts a price as either a JSON string or a JSON number and
// keeps its text for validation.
type priceInput string

func (p *priceInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = priceInput(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	*p = priceInput(data)
	return nil
}

type addRequest struct {
	BookID domain.ID  `json:"book_id"`
	Price  priceInput `json:"price"`
}

type saveRequest struct {
	Price priceInput `json:"price"`
}

func (s *Server) handleStoreInventory(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		badRequest(w, "invalid store id")
		return
	}

	st, err := s.storeView(r.Context(), storeID, r.URL.Query().Get("refresh") == "1")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	books := st.view.StoreBooksMatching(search)
	rows := make([]inventoryRow, 0, len(books))
	for _, b := range books {
		row := inventoryRow{StoreBook: b, State: inventory.Viewing.String()}
		if b.InventoryID != nil {
			row.State = st.editor.State(*b.InventoryID).String()
			row.WorkingPrice, _ = st.editor.WorkingPrice(*b.InventoryID)
		}
		rows = append(rows, row)
	}

	respond(w, http.StatusOK, inventoryResponse{
		Store:  st.view.CurrentStore(),
		Search: search,
		Books:  rows,
		Notice: st.takeNotice(),
	})
}

func (s *Server) handleAddInventory(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		badRequest(w, "invalid store id")
		return
	}

	var req addRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	st, err := s.storeView(r.Context(), storeID, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, done, err := st.editor.Add(r.Context(), req.BookID, string(req.Price))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.propagate(st, done)
	respond(w, http.StatusAccepted, item)
}

func (s *Server) handleEditInventory(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.rowTarget(w, r)
	if !ok {
		return
	}

	if err := st.editor.Edit(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondRow(w, http.StatusOK, st, id)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.rowTarget(w, r)
	if !ok {
		return
	}

	st.editor.Cancel(id)
	s.respondRow(w, http.StatusOK, st, id)
}

// handleSaveInventory sets the working price and saves it. A row that is not
// being edited is put into editing first.
func (s *Server) handleSaveInventory(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.rowTarget(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if st.editor.State(id) != inventory.Editing {
		if err := st.editor.Edit(id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := st.editor.SetWorkingPrice(id, string(req.Price)); err != nil {
		s.writeError(w, r, err)
		return
	}
	done, err := st.editor.Save(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.propagate(st, done)
	s.respondRow(w, http.StatusAccepted, st, id)
}

// handleDeleteInventory removes a row when the request carries confirm=true.
// Without it nothing changes and the confirmation prompt is returned.
func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.rowTarget(w, r)
	if !ok {
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	var prompt string
	done, err := st.editor.Delete(r.Context(), id, inventory.ConfirmFunc(func(p string) bool {
		prompt = p
		return confirmed
	}))
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.writeError(w, r, err)
			return
		}
		respond(w, status, errorResponse{Error: msg, Prompt: prompt})
		return
	}
	s.propagate(st, done)
	w.WriteHeader(http.StatusAccepted)
}

// rowTarget resolves the store state and inventory id of a row route,
// writing the error response itself when it cannot.
func (s *Server) rowTarget(w http.ResponseWriter, r *http.Request) (*storeState, domain.ID, bool) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		badRequest(w, "invalid store id")
		return nil, 0, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid inventory id")
		return nil, 0, false
	}

	st, err := s.storeView(r.Context(), storeID, false)
	if err != nil {
		s.writeError(w, r, err)
		return nil, 0, false
	}
	return st, id, true
}

func (s *Server) respondRow(w http.ResponseWriter, status int, st *storeState, id domain.ID) {
	working, _ := st.editor.WorkingPrice(id)
	respond(w, status, rowResponse{
		ID:           id,
		State:        st.editor.State(id).String(),
		WorkingPrice: working,
	})
}
