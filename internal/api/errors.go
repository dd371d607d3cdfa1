package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: "internal error", Code: apperrors.CodeInternal}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		if status < http.StatusInternalServerError || status == http.StatusBadGateway {
			resp.Error = appErr.Message
		}
	}
	c.JSON(status, resp)
}

// fail logs err with the request route and writes the mapped response
func (s *Server) fail(c *gin.Context, err error) {
	s.errors.Handle(c.Request.Context(), err, "route", c.FullPath(), "method", c.Request.Method)
	writeError(c, err)
}
