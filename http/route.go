package http

import "strings"

// RouteHandler builds the response for a routed request. The router sends it.
type RouteHandler func(ctx *RequestCtx)

type Route struct {
	Methods []string
	Path    string // a trailing "/*" matches every path below the prefix
	Handler RouteHandler
}

func (route Route) matchPath(path string) bool {
	if prefix, ok := strings.CutSuffix(route.Path, "/*"); ok {
		return strings.HasPrefix(path, prefix+"/")
	}
	return route.Path == path
}

func (route Route) matchMethod(method string) bool {
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

var NotFoundHandler RouteHandler = func(ctx *RequestCtx) {
	ctx.Response.WithStatus(StatusNotFound).WithText("Not found")
}

var MethodNotAllowedHandler RouteHandler = func(ctx *RequestCtx) {
	ctx.Response.WithStatus(StatusMethodNotAllowed).WithText("Method not allowed")
}
