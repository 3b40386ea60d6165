package response

import (
	"errors"
	"net/http"

	"github.com/econify/econify/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorKind classifies an AppError independently of its message.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindPermission   ErrorKind = "permission"
	KindUnauthorized ErrorKind = "unauthorized"
	KindConflict     ErrorKind = "conflict"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error string    `json:"error"`
	Code  ErrorKind `json:"code"`
}

// MessageBody is the JSON shape of a bare acknowledgement.
type MessageBody struct {
	Message string `json:"message"`
}

// AppError represents a structured application error with HTTP status and error kind.
type AppError struct {
	HTTPStatus int       // HTTP status code (e.g. 400, 404, 500)
	Kind       ErrorKind // Application-level error kind
	Message    string    // Human-readable error message
}

func (e *AppError) Error() string {
	return e.Message
}

// Pre-defined error constructors

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindValidation, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Kind: KindPermission, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func NewConflict(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Kind: KindConflict, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Kind: KindInternal, Message: msg}
}

// KindOf returns the kind of err, or KindInternal when err is not an *AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data as the body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with data as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message sends a 200 OK response carrying only a message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageBody{Message: msg})
}

// Error sends an error response. If err is an *AppError, its kind and status
// are used; otherwise the cause is logged and a generic 500 is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: appErr.Message, Code: appErr.Kind})
		return
	}
	logger.FromContext(c).Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal server error", Code: KindInternal})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: msg, Code: KindValidation})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: msg, Code: KindUnauthorized})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: msg, Code: KindPermission})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: msg, Code: KindNotFound})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: msg, Code: KindInternal})
}
