// Package apierr maps service errors to HTTP responses.
package apierr

import (
	"errors"
	"log"
	"net/http"

	"course-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

// Status returns the HTTP status for err and whether its message is safe to
// show to the caller.
func Status(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, service.ErrVerificationFailed):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrConfiguration),
		errors.Is(err, service.ErrInternal),
		errors.Is(err, service.ErrAnomaly):
		return http.StatusInternalServerError, false
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusBadGateway, false
	default:
		return http.StatusInternalServerError, false
	}
}

// Message is the text returned to the caller for err.
func Message(err error) string {
	status, safe := Status(err)
	if safe {
		return err.Error()
	}
	switch status {
	case http.StatusBadGateway:
		return "Payment provider unavailable, please retry"
	default:
		return "Internal server error"
	}
}

func Write(c *gin.Context, err error) {
	status, safe := Status(err)
	if !safe {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": Message(err)})
}
