package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/docchat-dev/docchat/internal/ai"
	"github.com/docchat-dev/docchat/internal/pkg/errcode"
	"github.com/docchat-dev/docchat/internal/rag"
	"github.com/docchat-dev/docchat/internal/vectorstore"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// ErrorFrom maps domain errors onto response codes so handlers never
// inspect error types themselves.
func ErrorFrom(c *gin.Context, err error) {
	var (
		uerr *rag.UnsupportedFileTypeError
		perr *ai.ProviderError
		kerr *ai.UnknownProviderError
		serr *vectorstore.StoreError
		ierr *rag.EngineInitError
	)
	switch {
	case errors.As(err, &uerr):
		Error(c, errcode.ErrInvalidFile, uerr.Error())
	case errors.As(err, &kerr):
		Error(c, errcode.ErrAIUnavailable, kerr.Error())
	case errors.As(err, &perr):
		Error(c, errcode.ErrAIUnavailable, perr.Error())
	case errors.As(err, &serr):
		Error(c, errcode.ErrStoreUnavailable, serr.Error())
	case errors.As(err, &ierr):
		Error(c, errcode.ErrAIUnavailable, ierr.Error())
	default:
		Error(c, errcode.ErrInternal, err.Error())
	}
}
