package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EntityKind names the kind of record that changed.
type EntityKind string

const (
	KindTransaction EntityKind = "transaction"
	KindTag         EntityKind = "tag"
	KindUser        EntityKind = "user"
)

// ChangeEvent announces a successful mutation made through one dashboard
// instance. It carries ids only; receivers refetch what they need.
type ChangeEvent struct {
	Kind      EntityKind `json:"kind"`
	Op        string     `json:"op"`
	UserID    string     `json:"user_id"`
	EntityID  string     `json:"entity_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewChangeEvent(kind EntityKind, op, userID, entityID string) ChangeEvent {
	return ChangeEvent{
		Kind:      kind,
		Op:        op,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (e ChangeEvent) Validate() error {
	switch e.Kind {
	case KindTransaction, KindTag, KindUser:
	default:
		return fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	if e.UserID == "" {
		return errors.New("missing user id")
	}
	return nil
}

func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes and validates an event body.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}
