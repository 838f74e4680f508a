package testinfra

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// ExecuteRequest runs a request against the given router and returns the
// response status, body and recorder.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code, w.Body.String(), w
}
