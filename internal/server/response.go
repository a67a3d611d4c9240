package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/armsync"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// respondEngineError maps engine errors onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	var inv *arm.ErrInvalidOutcome
	var rec *armsync.ErrInvalidRecord
	switch {
	case errors.As(err, &inv):
		respondError(c, http.StatusBadRequest, "invalid_outcome", err)
	case errors.As(err, &rec):
		respondError(c, http.StatusUnprocessableEntity, "invalid_record", err)
	case errors.Is(err, arm.ErrNoEligibleQuestions):
		respondError(c, http.StatusUnprocessableEntity, "no_eligible_questions", err)
	case errors.Is(err, arm.ErrArmNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
	case arm.IsStoreUnavailable(err):
		respondError(c, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		respondError(c, http.StatusInternalServerError, "internal", err)
	}
}
