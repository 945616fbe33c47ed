package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/database"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db         *sql.DB
	users      *store.UserStore
	groups     *store.GroupStore
	categories *store.CategoryStore
	incomes    *store.IncomeStore
	expenses   *store.ExpenseStore
	budgets    *store.BudgetStore
	summaries  *store.SummaryStore
	published  *recordingPublisher
	loc        *time.Location
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testEnv{
		db:         db,
		users:      store.NewUserStore(db),
		groups:     store.NewGroupStore(db),
		categories: store.NewCategoryStore(db),
		incomes:    store.NewIncomeStore(db),
		expenses:   store.NewExpenseStore(db),
		budgets:    store.NewBudgetStore(db),
		summaries:  store.NewSummaryStore(db),
		published:  &recordingPublisher{},
		loc:        time.UTC,
	}
}

func (e *testEnv) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), id, id+"@example.com", id)
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func (e *testEnv) group(t *testing.T, name, creatorID string) *model.Group {
	t.Helper()
	g, err := e.groups.Create(context.Background(), name, creatorID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func (e *testEnv) category(t *testing.T, typ, name string) string {
	t.Helper()
	cats, err := e.categories.List(context.Background(), typ)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %s/%s not seeded", typ, name)
	return ""
}

// serve routes a single request through a mux registered with pattern so
// path values resolve as they do in the server. userID, when set, becomes
// the authenticated caller.
func serve(t *testing.T, h http.HandlerFunc, pattern, target string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	return serveHandler(t, h, pattern, target, body, userID)
}

func serveHandler(t *testing.T, h http.Handler, pattern, target string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	method, _, _ := strings.Cut(pattern, " ")

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, r)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ID: userID, Email: userID + "@example.com", Name: userID}))
	}

	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
