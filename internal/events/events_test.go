package events

import (
	"context"
	"errors"
	"testing"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestNew(t *testing.T) {
	e := New(EntityIncome, ActionCreated, "i1", "g1", "u1")
	if e.Type != "income_created" {
		t.Errorf("type = %q, want %q", e.Type, "income_created")
	}
	if e.RoutingKey() != "ledger.income.created" {
		t.Errorf("routing key = %q", e.RoutingKey())
	}
	if e.Occurred.IsZero() {
		t.Error("expected occurred timestamp")
	}
}

func TestMultiPublishesToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("broker down")}
	m := Multi{a, nil, b}

	err := m.Publish(context.Background(), New(EntityBudget, ActionDeleted, "b1", "g1", "u1"))
	if err == nil || err.Error() != "broker down" {
		t.Errorf("err = %v, want broker down", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("deliveries = %d, %d; want 1, 1", len(a.got), len(b.got))
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
