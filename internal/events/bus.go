// Package events defines the domain events exchanged between modules.
// The bus implementation lives in platform/events.
package events

import (
	platformevents "raccordement_backend/platform/events"
	"raccordement_backend/platform/logger"
)

type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
