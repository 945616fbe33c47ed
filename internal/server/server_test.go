package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/wadake/internal/client"
	"github.com/dukerupert/wadake/internal/config"
	"github.com/dukerupert/wadake/internal/database"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/model"
)

type testServer struct {
	*httptest.Server
	srv    *Server
	client *client.Client
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		JWTSecret:           "test-secret",
		InviteRequiresAdmin: true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, cfg, time.UTC, nil, nil, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, srv: srv, client: client.New(ts.URL, ts.Client())}
}

func (ts *testServer) login(t *testing.T, id, name string) client.Credentials {
	t.Helper()
	resp, err := ts.client.IssueToken(context.Background(), client.TokenUser{
		ID:       id,
		Email:    id + "@example.com",
		FullName: name,
	}, "", "")
	if err != nil {
		t.Fatalf("issue token for %s: %v", id, err)
	}
	return client.Credentials{Token: resp.Token}
}

func (ts *testServer) category(t *testing.T, cred client.Credentials, typ string) string {
	t.Helper()
	cats, err := ts.client.ListCategories(context.Background(), cred, typ)
	if err != nil || len(cats) == 0 {
		t.Fatalf("list %s categories: %v (%d)", typ, err, len(cats))
	}
	return cats[0].ID
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing request id", path)
		}
	}
}

func TestPanicLogCarriesRequestID(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv := New(db, &config.Config{JWTSecret: "test-secret"}, time.UTC, nil, nil, logger)

	h := srv.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incomes", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	id := rec.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("missing request id header")
	}
	if !strings.Contains(buf.String(), "request_id="+id) {
		t.Errorf("panic log does not carry request id %s:\n%s", id, buf.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()

	_, err := ts.client.ListIncomes(ctx, client.Credentials{}, "")
	if !client.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("no token: err = %v, want 401", err)
	}

	_, err = ts.client.ListIncomes(ctx, client.Credentials{Token: "garbage"}, "")
	if !client.IsStatus(err, http.StatusForbidden) {
		t.Errorf("bad token: err = %v, want 403", err)
	}
}

func TestPersonalLedgerFlow(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()
	alice := ts.login(t, "alice", "Alice")

	me, err := ts.client.Me(ctx, alice)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != "alice" || me.Name != "Alice" {
		t.Errorf("me = %+v", me)
	}

	incomeCat := ts.category(t, alice, model.CategoryIncome)
	expenseCat := ts.category(t, alice, model.CategoryExpense)

	inc, err := ts.client.CreateIncome(ctx, alice, "", client.EntryRequest{
		CategoryID: incomeCat, Amount: 300000, Date: "2024-03-25",
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if _, err := ts.client.CreateExpense(ctx, alice, "", client.EntryRequest{
		CategoryID: expenseCat, Amount: 120000, Date: "2024-03-02",
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	stale := inc.Version
	updated, err := ts.client.UpdateIncome(ctx, alice, "", inc.ID, client.EntryRequest{
		CategoryID: incomeCat, Amount: 310000, Date: "2024-03-25", Version: &stale,
	})
	if err != nil {
		t.Fatalf("update income: %v", err)
	}
	if updated.Version != stale+1 {
		t.Errorf("version = %d, want %d", updated.Version, stale+1)
	}

	_, err = ts.client.UpdateIncome(ctx, alice, "", inc.ID, client.EntryRequest{
		CategoryID: incomeCat, Amount: 1, Date: "2024-03-25", Version: &stale,
	})
	if !client.IsStatus(err, http.StatusConflict) {
		t.Errorf("stale update: err = %v, want 409", err)
	}

	rep, err := ts.client.Monthly(ctx, alice, "", 2024, time.March)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if rep.Summary.TotalIncome != 310000 || rep.Summary.TotalExpense != 120000 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if rep.Summary.NetIncome != 190000 {
		t.Errorf("net income = %d, want 190000", rep.Summary.NetIncome)
	}

	if err := ts.client.DeleteIncome(ctx, alice, "", inc.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	incomes, err := ts.client.ListIncomes(ctx, alice, "")
	if err != nil {
		t.Fatalf("list incomes: %v", err)
	}
	if len(incomes) != 0 {
		t.Errorf("incomes after delete = %d", len(incomes))
	}

	// Another user cannot see or touch alice's entries.
	bob := ts.login(t, "bob", "Bob")
	expenses, err := ts.client.ListExpenses(ctx, bob, "")
	if err != nil {
		t.Fatalf("bob list expenses: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("bob sees %d expenses", len(expenses))
	}
}

func TestGroupFlow(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()
	alice := ts.login(t, "alice", "Alice")
	bob := ts.login(t, "bob", "Bob")

	g, err := ts.client.CreateGroup(ctx, alice, "Household")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	// Outsiders are refused on every group-scoped route.
	if _, err := ts.client.ListExpenses(ctx, bob, g.ID); !client.IsStatus(err, http.StatusForbidden) {
		t.Errorf("outsider list: err = %v, want 403", err)
	}
	if _, err := ts.client.Monthly(ctx, bob, g.ID, 2024, time.March); !client.IsStatus(err, http.StatusForbidden) {
		t.Errorf("outsider summary: err = %v, want 403", err)
	}
	if _, err := ts.client.ListGroups(ctx, bob, "alice"); !client.IsStatus(err, http.StatusForbidden) {
		t.Errorf("list other user's groups: err = %v, want 403", err)
	}

	if _, err := ts.client.Invite(ctx, alice, g.ID, "bob", ""); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := ts.client.Invite(ctx, alice, g.ID, "bob", ""); !client.IsStatus(err, http.StatusConflict) {
		t.Errorf("duplicate invite: err = %v, want 409", err)
	}
	if _, err := ts.client.Invite(ctx, bob, g.ID, "alice", ""); !client.IsStatus(err, http.StatusForbidden) {
		t.Errorf("member invite: err = %v, want 403", err)
	}

	members, err := ts.client.Members(ctx, bob, g.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}

	groups, err := ts.client.ListGroups(ctx, bob, "bob")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != g.ID {
		t.Errorf("groups = %+v", groups)
	}

	expenseCat := ts.category(t, bob, model.CategoryExpense)
	if _, err := ts.client.CreateExpense(ctx, bob, g.ID, client.EntryRequest{
		CategoryID: expenseCat, Amount: 5000, Date: "2024-03-10",
	}); err != nil {
		t.Fatalf("create group expense: %v", err)
	}
	if _, err := ts.client.CreateBudget(ctx, alice, g.ID, client.BudgetRequest{
		Amount: 80000, Purpose: "groceries", Date: "2024-03-01",
	}); err != nil {
		t.Fatalf("create budget: %v", err)
	}

	// Group entries stay out of the personal ledger.
	personal, err := ts.client.ListExpenses(ctx, bob, "")
	if err != nil {
		t.Fatalf("personal expenses: %v", err)
	}
	if len(personal) != 0 {
		t.Errorf("personal expenses = %d, want 0", len(personal))
	}

	rep, err := ts.client.Monthly(ctx, alice, g.ID, 2024, time.March)
	if err != nil {
		t.Fatalf("group monthly: %v", err)
	}
	if rep.GroupID != g.ID || rep.Summary.TotalExpense != 5000 || rep.Summary.TotalBudget != 80000 {
		t.Errorf("group report = %+v", rep)
	}
}

func TestGroupSummaryPostRoute(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()
	alice := ts.login(t, "alice", "Alice")
	bob := ts.login(t, "bob", "Bob")

	g, err := ts.client.CreateGroup(ctx, alice, "Trip")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	post := func(cred client.Credentials) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/summary/groups/"+g.ID+"/yearly?year=2024", nil)
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("post yearly: %v", err)
		}
		return resp
	}

	resp := post(alice)
	var body client.YearlyReport
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("member status = %d", resp.StatusCode)
	}
	if body.GroupID != g.ID || body.Year != 2024 {
		t.Errorf("report = %+v", body)
	}

	resp = post(bob)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", resp.StatusCode)
	}
}

func TestTokenRateLimited(t *testing.T) {
	ts := setupServer(t)

	var last int
	for i := 0; i < 11; i++ {
		resp, err := http.Post(ts.URL+"/api/auth/token", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatalf("post token: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th request status = %d, want 429", last)
	}
}

func TestChangeFeed(t *testing.T) {
	ts := setupServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	alice := ts.login(t, "alice", "Alice")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := ws.Dial(ctx, wsURL, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + alice.Token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for ts.srv.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cat := ts.category(t, alice, model.CategoryIncome)
	inc, err := ts.client.CreateIncome(ctx, alice, "", client.EntryRequest{
		CategoryID: cat, Amount: 1000, Date: "2024-03-01",
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if e.Entity != events.EntityIncome || e.Action != events.ActionCreated || e.ID != inc.ID {
		t.Errorf("event = %+v", e)
	}
}
