package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"draftflow/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

func TestTracingIngress(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)

	router := gin.Default()
	router.Use(TracingIngress())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("should open a root span without inbound trace headers", func(t *testing.T) {
		tracer.Reset()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].OperationName).To(Equal("GET /test"))
		Expect(spans[0].ParentID).To(Equal(0))
	})

	t.Run("should continue the trace carried by the request", func(t *testing.T) {
		tracer.Reset()

		clientSpan := tracer.StartSpan("client")
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		Expect(tracer.Inject(clientSpan.Context(), opentracing.HTTPHeaders,
			opentracing.HTTPHeadersCarrier(req.Header))).To(BeNil())

		status, _, _ := testinfra.ExecuteRequest(req, router)
		clientSpan.Finish()
		Expect(status).To(Equal(http.StatusOK))

		spans := tracer.FinishedSpans()
		Expect(spans).To(HaveLen(2))
		serverSpan := spans[0]
		Expect(serverSpan.OperationName).To(Equal("GET /test"))
		Expect(serverSpan.ParentID).ToNot(BeZero())
		Expect(serverSpan.SpanContext.TraceID).To(
			Equal(clientSpan.Context().(mocktracer.MockSpanContext).TraceID))
	})
}
