package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeInternalServer     = 50000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeInvalidCredentials = 40101
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Fail emits the flat error shape used by the upload and event endpoints:
// {"error": "...", ...extra}. Clients resume chunked uploads from the extra
// fields (missingChunks, limits), so they sit at the top level rather than
// inside an envelope.
func Fail(c *gin.Context, httpStatus int, message string, extra gin.H) {
	body := gin.H{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(httpStatus, body)
}
