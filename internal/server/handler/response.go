package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/golangast/marabou/internal/service"
)

// Response represents the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents response metadata
type MetaInfo struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

func newMeta(c *gin.Context) *MetaInfo {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &MetaInfo{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
}

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
		Meta:    newMeta(c),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		Meta: newMeta(c),
	})
}

// ErrorResponse is the HTTP form of a service error.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapServiceError maps service errors to HTTP error responses.
func MapServiceError(err error) ErrorResponse {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: "query is empty"}
	case errors.Is(err, service.ErrModelNotLoaded):
		return ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "MODEL_NOT_LOADED", Message: "model not loaded"}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
}

// HandleServiceError sends the mapped error envelope for err.
func HandleServiceError(c *gin.Context, err error) {
	e := MapServiceError(err)
	respondError(c, e.StatusCode, e.Code, e.Message)
}

// HandleInvalidRequest handles a generic invalid request error.
func HandleInvalidRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}
