package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/metrics"
	"rentflow/tracing"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"

	identityKey = "identity"
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// errorResponse is the body written for every failed request.
type errorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

func errorHandler(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}

		var herr *httperror.HTTPError
		if errors.As(err, &herr) {
			code = herr.Code
			message = herr.Message
			if herr.Meta != nil {
				meta = herr.Meta
			}
		}

		entry := logger.WithContext(ctx).WithError(err).WithField("status", code)
		if code >= http.StatusInternalServerError {
			entry.Error("api is returning an error")
		} else {
			entry.Debug("api is returning an error")
		}

		_ = c.JSON(code, errorResponse{
			Message:   message,
			RequestID: requestIDFrom(ctx),
			TraceID:   tracing.TraceID(ctx),
			Meta:      meta,
		})
	}
}

// requestContext stores the request id on the request context and echoes it back.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), ctxKeyRequestID, requestID)))
			return next(c)
		}
	}
}

func requestLogger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			logger.WithContext(req.Context()).WithFields(map[string]any{
				"request_id":    requestIDFrom(req.Context()),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"response_size": strconv.FormatInt(res.Size, 10),
			}).Info("Request")

			return nil
		}
	}
}

// httpMetrics counts requests by route template once the response is final.
func httpMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
			return err
		}
	}
}

type tokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// authenticate verifies the Authorization header, with or without a Bearer prefix,
// and stores the caller identity on the echo context.
func authenticate(verifier tokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				return apperr.Unauthorized("You are not authorized!")
			}
			id, err := verifier.Verify(token)
			if err != nil {
				return apperr.Unauthorized("You are not authorized!")
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func callerFrom(c echo.Context) identity.Identity {
	id, _ := c.Get(identityKey).(identity.Identity)
	return id
}
