package studio

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tt-studio/console/internal/metrics"
)

const (
	HeaderBrowserID = "X-Browser-ID"
	HeaderRequestID = "X-Request-ID"
)

const tracerName = "github.com/tt-studio/console/internal/studio"

// BrowserID tags every request with the client's browser id so the backend
// can scope deployments and chat sessions to it.
func BrowserID(id string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if id == "" || req.Header.Get(HeaderBrowserID) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(HeaderBrowserID, id)
			return next.RoundTrip(req)
		})
	}
}

// RequestID sets a fresh request id on requests that do not carry one.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(HeaderRequestID, uuid.NewString())
			return next.RoundTrip(req)
		})
	}
}

// Logging logs every backend round trip at debug level.
func Logging(logger zerolog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			event := logger.Debug().
				Str("method", req.Method).
				Str("route", RouteFromContext(req.Context())).
				Str("url", req.URL.String()).
				Dur("duration", time.Since(start))
			if err != nil {
				event.Err(err).Msg("backend request failed")
				return resp, err
			}
			event.Int("status", resp.StatusCode).Msg("backend request")
			return resp, nil
		})
	}
}

// Instrument records request counts and latency, labelled by route template.
func Instrument() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			route := RouteFromContext(req.Context())
			start := time.Now()
			resp, err := next.RoundTrip(req)

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			metrics.BackendRequestsTotal.WithLabelValues(req.Method, route, status).Inc()
			metrics.BackendRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return resp, err
		})
	}
}

// Tracing starts a client span per request and propagates its context to the
// backend. Spans go to the globally registered tracer provider.
func Tracing() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			route := RouteFromContext(req.Context())
			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
					attribute.String("url.full", req.URL.String()),
				),
			)
			defer span.End()

			req = req.Clone(ctx)
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

			resp, err := next.RoundTrip(req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}
			return resp, nil
		})
	}
}
