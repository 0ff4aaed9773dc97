package eventbus

import (
	"context"
	"fmt"
	"log/slog"
)

// Router fans one subscription out to handlers keyed by routing key and
// schema version.
type Router struct {
	logger *slog.Logger
	routes map[string]map[int]Handler
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger: logger,
		routes: make(map[string]map[int]Handler),
	}
}

// Handle registers h for version 1 of routingKey.
func (r *Router) Handle(routingKey string, h Handler) *Router {
	return r.HandleVersion(routingKey, DefaultSchemaVersion, h)
}

func (r *Router) HandleVersion(routingKey string, version int, h Handler) *Router {
	versions, ok := r.routes[routingKey]
	if !ok {
		versions = make(map[int]Handler)
		r.routes[routingKey] = versions
	}
	versions[version] = h
	return r
}

// Dispatch is a Handler. Messages for unknown routing keys are acknowledged
// and ignored; an unknown schema version is a permanent failure.
func (r *Router) Dispatch(ctx context.Context, msg Message) error {
	versions, ok := r.routes[msg.RoutingKey]
	if !ok {
		r.logger.Debug("no route for event, ignoring", "routing_key", msg.RoutingKey)
		return nil
	}

	h, ok := versions[msg.Version]
	if !ok {
		return Permanent(fmt.Errorf("%s v%d: %w", msg.RoutingKey, msg.Version, ErrUnsupportedVersion))
	}
	return h(ctx, msg)
}
