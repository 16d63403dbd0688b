package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response helpers mirror the wire contract: success payloads are written
// as-is, validation failures answer 400 with a field-to-message mapping as
// the body, and auth/permission/lookup failures answer with a detail object.

// OK writes a 200 response with the given payload.
func OK(ctx *gin.Context, payload interface{}) {
	ctx.JSON(http.StatusOK, payload)
}

// Created writes a 201 response with the given payload.
func Created(ctx *gin.Context, payload interface{}) {
	ctx.JSON(http.StatusCreated, payload)
}

// ValidationErrors writes a 400 whose body is the field→message map itself.
func ValidationErrors(ctx *gin.Context, errs gin.H) {
	ctx.JSON(http.StatusBadRequest, errs)
}

// AuthError rejects a request lacking valid credentials.
func AuthError(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusUnauthorized, gin.H{"detail": message})
}

// Forbidden rejects a valid caller performing a disallowed action.
func Forbidden(ctx *gin.Context, body gin.H) {
	ctx.JSON(http.StatusForbidden, body)
}

// NotFound reports an absent or inactive entity.
func NotFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

// ServerError reports an unexpected storage or internal failure.
func ServerError(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusInternalServerError, gin.H{"detail": message})
}
