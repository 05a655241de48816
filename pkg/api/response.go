package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RecaptchaSuccess is reported on a fully processed submission
const RecaptchaSuccess = "success"

// Envelope is the body of every form submission response
type Envelope struct {
	Data            any     `json:"data"`
	Error           *string `json:"error"`
	Status          int     `json:"status"`
	RecaptchaResult string  `json:"recaptcha_result,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{
		Data:            data,
		Status:          http.StatusOK,
		RecaptchaResult: RecaptchaSuccess,
	})
}

func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{
		Error:  &msg,
		Status: status,
	})
}
