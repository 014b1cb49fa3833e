package http

import (
	"strings"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

type Router struct {
	Routes     []Route
	Middleware []Middleware
}

func NewRouter() Router {
	return Router{
		Routes: make([]Route, 0),
	}
}

func (router *Router) GET(path string, handler RouteHandler, middleware ...Middleware) {
	router.Any([]string{MethodGet}, path, handler, middleware...)
}

func (router *Router) POST(path string, handler RouteHandler, middleware ...Middleware) {
	router.Any([]string{MethodPost}, path, handler, middleware...)
}

func (router *Router) Any(methods []string, path string, handler RouteHandler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.Routes = append(router.Routes, Route{
		Methods: methods,
		Path:    path,
		Handler: handler,
	})
}

func (router *Router) Group(path string, groupFunc func(group *Router), middlewareList ...Middleware) {
	group := NewRouter()

	groupFunc(&group)

	for _, route := range group.Routes {
		route.Path = path + route.Path
		for _, middleware := range middlewareList {
			route.Handler = middleware(route.Handler)
		}

		router.Routes = append(router.Routes, route)
	}
}

// Use registers middleware wrapped around every request, routed or not.
// Later middleware wraps earlier middleware.
func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

// Handler resolves routes, sends the response, and keeps the connection
// open unless either side asked for Connection: close.
func (router *Router) Handler() Handler {
	dispatch := func(ctx *RequestCtx) {
		router.lookup(ctx.Request.Method, requestPath(ctx.Request.URI))(ctx)
	}
	for _, middleware := range router.Middleware {
		dispatch = middleware(dispatch)
	}

	return func(ctx *RequestCtx) Disposition {
		dispatch(ctx)

		disposition := KeepAlive
		if wantsClose(ctx.Request.Headers) || wantsClose(ctx.Response.Headers) {
			ctx.Response.SetHeader(headerConnection, "close")
			disposition = Close
		}

		if !ctx.Sent() {
			if err := ctx.Send(); err != nil {
				return Close
			}
		}
		return disposition
	}
}

func (router *Router) lookup(method, path string) RouteHandler {
	pathMatched := false
	for _, route := range router.Routes {
		if !route.matchPath(path) {
			continue
		}
		pathMatched = true

		if route.matchMethod(method) {
			return route.Handler
		}
	}

	if pathMatched {
		return MethodNotAllowedHandler
	}
	return NotFoundHandler
}

func requestPath(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

func wantsClose(headers Headers) bool {
	v, ok := headers.Get(headerConnection)
	return ok && strings.EqualFold(strings.TrimSpace(v), "close")
}
