package middleware

import "github.com/aretw0/sessionkit/pkg/ports"

// Middleware allows wrapping a Cache to add behavior.
type Middleware func(ports.Cache) ports.Cache

// Chain applies middlewares so that the first one is the outermost.
func Chain(cache ports.Cache, middlewares ...Middleware) ports.Cache {
	for i := len(middlewares) - 1; i >= 0; i-- {
		cache = middlewares[i](cache)
	}
	return cache
}
