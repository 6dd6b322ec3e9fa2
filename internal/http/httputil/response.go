package httputil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/common"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes data as the response body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Error(c *gin.Context, status int, err string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err})
}

func BadRequest(c *gin.Context, err string) {
	Error(c, http.StatusBadRequest, err)
}

// HandleError maps err through the domain taxonomy onto a status code.
func HandleError(c *gin.Context, err error) {
	httpErr := common.HTTPErrorFromDomain(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("[http] request failed")
	}
	if httpErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(httpErr.RetryAfter))
	}
	Error(c, httpErr.StatusCode, httpErr.Message)
}

// Aliases for compatibility
func HandleSuccess(c *gin.Context, data interface{}) {
	Success(c, data)
}

func HandleBadRequest(c *gin.Context, err string) {
	BadRequest(c, err)
}
