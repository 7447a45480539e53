package services

import (
	"context"

	"fincontrol/internal/events"
	"fincontrol/internal/log"
)

// Publisher broadcasts change events to other instances.
type Publisher interface {
	Publish(ctx context.Context, ev events.ChangeEvent) error
}

// Invalidator drops cached per-user state.
type Invalidator interface {
	Invalidate(userID string)
}

// changeNotifier runs after every successful mutation: the local snapshot is
// dropped at once and the other instances are told to do the same.
type changeNotifier struct {
	cache     Invalidator
	publisher Publisher
	logger    *log.Logger
}

func (n changeNotifier) changed(ctx context.Context, kind events.EntityKind, op, userID, entityID string) {
	if n.cache != nil {
		n.cache.Invalidate(userID)
	}
	n.logger.InfoContext(ctx, "Record changed",
		log.FieldKind, string(kind),
		log.FieldOperation, op,
		log.FieldUserID, userID,
		"entity_id", entityID)
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, events.NewChangeEvent(kind, op, userID, entityID)); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish change event",
			log.FieldKind, string(kind),
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}

// HandleChange applies an event received from another instance.
func HandleChange(cache Invalidator, logger *log.Logger) func(context.Context, events.ChangeEvent) {
	return func(ctx context.Context, ev events.ChangeEvent) {
		cache.Invalidate(ev.UserID)
		logger.DebugContext(ctx, "Snapshot invalidated by change event",
			log.FieldUserID, ev.UserID,
			log.FieldKind, string(ev.Kind),
			log.FieldOperation, ev.Op)
	}
}
