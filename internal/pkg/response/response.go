// Package response writes the API envelope {code, msg, data}. Errors are
// carried in the envelope code rather than the HTTP status so widget embeds
// behind strict proxies still receive the body.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type apiErr struct {
	code    int
	message string
}

func (e *apiErr) Error() string {
	return e.message
}

func (e *apiErr) Code() uint32 {
	return uint32(e.code)
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, &apiErr{code: code, message: message})
}
