package http

import (
	"log/slog"
	"slices"
	"time"
)

type Middleware func(next RouteHandler) RouteHandler

// RecoverMiddleware turns a panic into a 500 and asks for the connection to
// be closed.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	return func(next RouteHandler) RouteHandler {
		return func(ctx *RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in route handler",
						"request_id", ctx.RequestID(),
						"uri", ctx.Request.URI,
						"panic", r,
					)

					ctx.Response.Reset()
					ctx.Response.WithStatus(StatusInternalServerError).WithText("Internal server error")
					ctx.Response.SetHeader(headerConnection, "close")
				}
			}()

			next(ctx)
		}
	}
}

// AllowMethods answers 501 for any method outside methods.
func AllowMethods(methods ...string) Middleware {
	return func(next RouteHandler) RouteHandler {
		return func(ctx *RequestCtx) {
			if !slices.Contains(methods, ctx.Request.Method) {
				ctx.Response.WithStatus(StatusNotImplemented).WithText("Not implemented")
				return
			}

			next(ctx)
		}
	}
}

func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next RouteHandler) RouteHandler {
		return func(ctx *RequestCtx) {
			start := time.Now()
			next(ctx)

			status := ctx.Response.Status
			if status == 0 {
				status = StatusOK
			}
			logger.Info("request",
				"request_id", ctx.RequestID(),
				"method", ctx.Request.Method,
				"uri", ctx.Request.URI,
				"status", status,
				"bytes", len(ctx.Response.Body),
				"duration", time.Since(start),
			)
		}
	}
}
