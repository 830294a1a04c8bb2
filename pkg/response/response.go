package response

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

// Envelope represents the common response contract of the ops endpoints.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Error sends an error response with the given status.
func Error(c *gin.Context, status int, err error) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Error: appErrors.FromError(err)})
}
