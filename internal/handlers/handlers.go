// Package handlers contains the post-saga event subscribers: accounting,
// analytics and notifications. Handlers never participate in a saga's
// transactional boundary; their failures are retried and reported by the
// bus, not compensated.
package handlers

import (
	"github.com/motorent/rentord/internal/eventbus"
)

// Register subscribes every mapping against the bus and returns the
// subscription IDs, so the composition root can unsubscribe on shutdown.
func Register(bus *eventbus.EnhancedBus, mappings ...map[string]eventbus.Handler) []string {
	var ids []string
	for _, mapping := range mappings {
		for eventType, handler := range mapping {
			ids = append(ids, bus.Subscribe(eventType, handler, nil))
		}
	}
	return ids
}
