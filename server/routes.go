package server

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kbukum/chatstream/logger"
)

var systemPaths = map[string]bool{
	"/health": true,
	"/live":   true,
	"/ready":  true,
	"/info":   true,
}

// Route is a registered method and path with a readable handler name.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// Routes lists the Gin routes, API routes first.
func (s *Server) Routes() []Route {
	ginRoutes := s.engine.Routes()
	sort.Slice(ginRoutes, func(i, j int) bool {
		iSys, jSys := systemPaths[ginRoutes[i].Path], systemPaths[ginRoutes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if ginRoutes[i].Path != ginRoutes[j].Path {
			return ginRoutes[i].Path < ginRoutes[j].Path
		}
		return methodOrder(ginRoutes[i].Method) < methodOrder(ginRoutes[j].Method)
	})

	routes := make([]Route, 0, len(ginRoutes))
	for _, r := range ginRoutes {
		routes = append(routes, Route{Method: r.Method, Path: r.Path, Handler: formatHandlerName(r.Handler)})
	}
	return routes
}

func (s *Server) logRoutes() {
	for _, r := range s.Routes() {
		s.log.Debug("route", logger.Fields("method", r.Method, "path", r.Path, "handler", r.Handler))
	}
}

// formatHandlerName turns Gin's handler path, e.g.
// "github.com/kbukum/chatstream/chat.(*Handler).Stream-fm", into
// "Handler.Stream".
func formatHandlerName(fullPath string) string {
	name := strings.TrimSuffix(fullPath, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	// Closures: "endpoint.Health.func1" -> "health"
	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				name = strings.ToLower(parts[i])
				break
			}
		}
	}

	// Drop a lowercase package prefix.
	if pkg, rest, ok := strings.Cut(name, "."); ok && rest != "" && !strings.ContainsFunc(pkg, unicode.IsUpper) {
		name = rest
	}
	return name
}

func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
