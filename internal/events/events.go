// Package events describes ledger changes and fans them out to whoever
// keeps a copy of ledger data: connected browsers and downstream consumers.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	EntityIncome  = "income"
	EntityExpense = "expense"
	EntityBudget  = "budget"
	EntityGroup   = "group"
	EntityMember  = "member"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event announces that a row changed. GroupID is empty for personal ledger
// changes, in which case UserID names the owner.
type Event struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity"`
	Action   string    `json:"action"`
	ID       string    `json:"id,omitempty"`
	GroupID  string    `json:"groupId,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// New builds an Event with Type derived from entity and action.
func New(entity, action, id, groupID, userID string) Event {
	return Event{
		Type:     fmt.Sprintf("%s_%s", entity, action),
		Entity:   entity,
		Action:   action,
		ID:       id,
		GroupID:  groupID,
		UserID:   userID,
		Occurred: time.Now().UTC(),
	}
}

// RoutingKey is the topic key for brokers, e.g. "ledger.income.created".
func (e Event) RoutingKey() string {
	return "ledger." + e.Entity + "." + e.Action
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every member, returning the joined errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
