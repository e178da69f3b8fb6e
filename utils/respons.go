package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondTypedError memetakan taksonomi error ke kode HTTP yang sesuai.
func RespondTypedError(c *gin.Context, err error) {
	switch {
	case IsNotFound(err):
		RespondError(c, http.StatusNotFound, err)
	case IsRemoteRejection(err):
		RespondError(c, http.StatusBadGateway, err)
	case IsTransport(err):
		RespondError(c, http.StatusServiceUnavailable, err)
	default:
		RespondError(c, http.StatusInternalServerError, err)
	}
}
