package response

import (
	"chemformula/internal/apperr"
	"chemformula/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint replies with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func Message(message string, data interface{}) Response {
	return Response{Success: true, Data: data, Message: message}
}

func Error(err string) Response {
	return Response{Success: false, Error: err}
}

// OK writes a success envelope with an optional message.
func OK(c *gin.Context, status int, data interface{}, message ...string) {
	resp := Success(data)
	if len(message) > 0 {
		resp.Message = message[0]
	}
	c.JSON(status, resp)
}

// Fail maps err to its HTTP status and writes an error envelope. Server-side
// failures are logged with the original error.
func Fail(c *gin.Context, log *logger.Logger, err error) {
	status := apperr.Status(err)
	if status >= 500 && log != nil {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, Error(apperr.PublicMessage(err)))
}
