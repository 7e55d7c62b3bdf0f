// Package handler exposes the lending engine over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"libris/internal/lending"
	lendingservice "libris/internal/lending/service"
	id "libris/pkg/domain"
	"libris/pkg/platform/httputil"
	"libris/pkg/requestcontext"
)

type Handler struct {
	svc    *lendingservice.Service
	logger *slog.Logger
}

func New(svc *lendingservice.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the lending routes on the router. The router is
// expected to already carry the authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/books/{bookID}/borrow", h.borrow)
	r.Post("/books/{bookID}/return", h.returnBook)
	r.Get("/books/{bookID}/history", h.history)
	r.Get("/loans", h.currentLoans)
}

// LoanResponse is the wire shape of a ledger record.
type LoanResponse struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	BorrowerID string     `json:"borrower_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	Returned   bool       `json:"returned"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

func toLoanResponse(loan *lending.LoanRecord) LoanResponse {
	return LoanResponse{
		ID:         loan.ID.String(),
		BookID:     loan.BookID.String(),
		BorrowerID: loan.BorrowerID.String(),
		BorrowedAt: loan.BorrowedAt,
		DueAt:      loan.DueAt,
		Returned:   loan.Returned,
		ReturnedAt: loan.ReturnedAt,
	}
}

func toLoanResponses(loans []*lending.LoanRecord) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, loan := range loans {
		out = append(out, toLoanResponse(loan))
	}
	return out
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	loan, err := h.svc.Borrow(r.Context(), bookID)
	if err != nil {
		h.fail(w, r, "borrow", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLoanResponse(loan))
}

func (h *Handler) returnBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	loan, err := h.svc.Return(r.Context(), bookID)
	if err != nil {
		h.fail(w, r, "return", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	history, err := h.svc.History(r.Context(), bookID)
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanResponses(history))
}

func (h *Handler) currentLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.CurrentLoans(r.Context())
	if err != nil {
		h.fail(w, r, "current loans", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanResponses(loans))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
