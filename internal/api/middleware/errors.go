package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yoockh/prepdeck/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func abort(c *gin.Context, code utils.Code, msg string) {
	c.AbortWithStatusJSON(utils.HTTPStatus(utils.E(code, "", msg, nil)), apiError{Code: code, Message: msg})
}
