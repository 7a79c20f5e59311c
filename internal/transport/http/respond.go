package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

// Error codes surfaced to clients. Conflict codes are final: stop retrying
// and refresh the listing. BUSY is safe to retry with backoff.
const (
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeAlreadyAccepted = "ALREADY_ACCEPTED"
	codeSlotConflict    = "SLOT_CONFLICT"
	codeSlotFull        = "SLOT_FULL"
	codeBusy            = "BUSY"
	codeInternal        = "INTERNAL_ERROR"
)

func ok(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, codeInternal
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, codeValidation
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrAlreadyAccepted):
		status, code = http.StatusConflict, codeAlreadyAccepted
	case errors.Is(err, domain.ErrSlotConflict):
		status, code = http.StatusConflict, codeSlotConflict
	case errors.Is(err, domain.ErrSlotFull):
		status, code = http.StatusConflict, codeSlotFull
	case errors.Is(err, domain.ErrBusy):
		status, code = http.StatusServiceUnavailable, codeBusy
	}
	c.JSON(status, gin.H{"success": false, "error": code})
}
