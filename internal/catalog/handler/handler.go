// Package handler exposes the catalog over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"libris/internal/catalog"
	catalogservice "libris/internal/catalog/service"
	id "libris/pkg/domain"
	"libris/pkg/platform/httputil"
	"libris/pkg/requestcontext"
)

type Handler struct {
	svc    *catalogservice.Service
	logger *slog.Logger
}

func New(svc *catalogservice.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the catalog routes on the router. The router is
// expected to already carry the authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/books", h.list)
	r.Post("/books", h.add)
	r.Get("/books/{bookID}", h.get)
	r.Put("/books/{bookID}", h.update)
	r.Delete("/books/{bookID}", h.delete)
}

type bookRequest struct {
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	PublishedDate *time.Time `json:"published_date"`
}

func (req bookRequest) toBook() *catalog.Book {
	return &catalog.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Description:   req.Description,
		Status:        catalog.BookStatus(req.Status),
		PublishedDate: req.PublishedDate,
	}
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[bookRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	book, err := h.svc.Add(ctx, req.toBook())
	if err != nil {
		h.fail(w, r, "add book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[bookRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	book := req.toBook()
	book.ID = bookID
	updated, err := h.svc.Update(ctx, book)
	if err != nil {
		h.fail(w, r, "update book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), bookID); err != nil {
		h.fail(w, r, "delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	bookID, err := id.ParseBookID(chi.URLParam(r, "bookID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	book, err := h.svc.Get(r.Context(), bookID)
	if err != nil {
		h.fail(w, r, "get book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, "list books", err)
		return
	}
	if books == nil {
		books = []*catalog.Book{}
	}
	httputil.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
