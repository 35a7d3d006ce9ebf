package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		StatusResponse{
			RequestID: requestID,
			Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			Message:   "Hello. Books store api is available. Enjoy :)",
		},
	); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send status response", zap.Error(err))
	}
}

// GetAllBooks godoc
// @Summary List all books
// @Produce json
// @Success 200 {array} Book
// @Router /books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger := api.GetLoggerFromContext(r.Context())
	books := api.bookService.GetAll(r.Context())
	logger.Info("success to get all books", zap.Int("books.total", len(books)))
	if err := WriteResponse(r.Context(), w, http.StatusOK, books); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// GetAvailableBooks godoc
// @Summary List available books
// @Produce json
// @Success 200 {array} Book
// @Router /books/available [get]
func (api *APIHandler) GetAvailableBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger := api.GetLoggerFromContext(r.Context())
	books := api.bookService.GetAvailable(r.Context())
	logger.Info("success to get available books", zap.Int("books.total", len(books)))
	if err := WriteResponse(r.Context(), w, http.StatusOK, books); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// CreateBook godoc
// @Summary Create a book
// @Accept json
// @Produce json
// @Param book body BookPayload true "title, author and available are required"
// @Success 201 {object} Book
// @Failure 400 {object} APIError
// @Failure 500 {object} APIError
// @Router /books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload BookPayload
	logger := api.GetLoggerFromContext(r.Context())
	err := DecodeBookRequestBody(r, &payload)
	if err != nil {
		logger.Error("failed to create book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusBadRequest, MsgInvalidBody))
		return
	}

	err = ValidateCreateBookRequestBody(&payload)
	if err != nil {
		logger.Error("failed to create book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusBadRequest, MsgRequiredFields))
		return
	}

	book, err := api.bookService.Add(r.Context(), payload)
	if err != nil {
		logger.Error("failed to create book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusInternalServerError, MsgFailedSave))
		return
	}
	logger.Info("success to create book", zap.Int("book.id", book.ID))
	if err = WriteResponse(r.Context(), w, http.StatusCreated, book); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// UpdateBook godoc
// @Summary Update some fields of a book
// @Accept json
// @Produce json
// @Param id path int true "book id, digits only: 1abc is rejected with 400"
// @Param book body BookPayload false "fields to overwrite"
// @Success 200 {object} Book
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 500 {object} APIError
// @Router /books/{id} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	logger := api.GetLoggerFromContext(r.Context())
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		logger.Error("book id provided is not valid", zap.String("book.id", ps.ByName("id")), zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusBadRequest, MsgInvalidID))
		return
	}
	logger = logger.With(zap.Int("book.id", id))

	var payload BookPayload
	if err = DecodeBookRequestBody(r, &payload); err != nil {
		logger.Error("failed to update book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusBadRequest, MsgInvalidBody))
		return
	}

	book, err := api.bookService.Update(r.Context(), id, payload)
	if errors.Is(err, ErrBookNotFound) {
		logger.Error("book does not exist")
		api.sendError(w, r, NewAPIError(http.StatusNotFound, MsgBookNotFound))
		return
	}
	if err != nil {
		logger.Error("failed to update book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusInternalServerError, MsgFailedUpdate))
		return
	}
	logger.Info("success to update book")
	if err = WriteResponse(r.Context(), w, http.StatusOK, book); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// DeleteBook godoc
// @Summary Delete a book
// @Produce json
// @Param id path int true "book id, digits only: 1abc is rejected with 400"
// @Success 200 {object} Book
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 500 {object} APIError
// @Router /books/{id} [delete]
func (api *APIHandler) DeleteBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	logger := api.GetLoggerFromContext(r.Context())
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		logger.Error("book id provided is not valid", zap.String("book.id", ps.ByName("id")), zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusBadRequest, MsgInvalidID))
		return
	}
	logger = logger.With(zap.Int("book.id", id))

	book, err := api.bookService.Delete(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		logger.Error("book does not exist")
		api.sendError(w, r, NewAPIError(http.StatusNotFound, MsgBookNotFound))
		return
	}
	if err != nil {
		logger.Error("failed to delete book", zap.Error(err))
		api.sendError(w, r, NewAPIError(http.StatusInternalServerError, MsgFailedDelete))
		return
	}
	logger.Info("success to delete book")
	if err = WriteResponse(r.Context(), w, http.StatusOK, book); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, errResp *APIError) {
	if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send error response", zap.Error(err))
	}
}
