package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
	"github.com/dukerupert/wadake/internal/summary"
)

type memberLookup interface {
	GetMember(ctx context.Context, groupID, userID string) (*model.Membership, error)
}

// SummaryHandler serves period reports. The ledger is the caller's personal
// one unless a group is named by the {groupId} path value or the groupId
// query parameter.
type SummaryHandler struct {
	summaries  *store.SummaryStore
	categories *store.CategoryStore
	groups     memberLookup
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func NewSummaryHandler(ss *store.SummaryStore, cs *store.CategoryStore, groups memberLookup, loc *time.Location, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{
		summaries:  ss,
		categories: cs,
		groups:     groups,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}
}

type dailyResponse struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Date    string `json:"date"`
	model.Report
}

type monthlyResponse struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	model.Report
}

type yearlyResponse struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Year    int    `json:"year"`
	model.Report
}

type trendResponse struct {
	GroupID string             `json:"groupId,omitempty"`
	Trends  []model.TrendPoint `json:"trends"`
}

// scope resolves the ledger to report on. Path-scoped routes have already
// passed RequireMember; the query form is checked here.
func (h *SummaryHandler) scope(w http.ResponseWriter, r *http.Request) (store.Scope, bool) {
	if groupID := r.PathValue("groupId"); groupID != "" {
		return store.InGroup(groupID), true
	}
	groupID := r.URL.Query().Get("groupId")
	if groupID == "" {
		return store.Personal(auth.UserID(r.Context())), true
	}

	m, err := h.groups.GetMember(r.Context(), groupID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("check membership", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return store.Scope{}, false
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "not a member of this group")
		return store.Scope{}, false
	}
	return store.InGroup(groupID), true
}

func (h *SummaryHandler) report(ctx context.Context, scope store.Scope, win summary.Window) (model.Report, error) {
	totals, err := h.summaries.Totals(ctx, scope, win.Start, win.End)
	if err != nil {
		return model.Report{}, err
	}
	income, err := h.summaries.ByCategory(ctx, model.CategoryIncome, scope, win.Start, win.End)
	if err != nil {
		return model.Report{}, err
	}
	expense, err := h.summaries.ByCategory(ctx, model.CategoryExpense, scope, win.Start, win.End)
	if err != nil {
		return model.Report{}, err
	}
	incomeNames, err := h.categories.NamesByIDs(ctx, model.CategoryIncome, categoryIDs(income))
	if err != nil {
		return model.Report{}, err
	}
	expenseNames, err := h.categories.NamesByIDs(ctx, model.CategoryExpense, categoryIDs(expense))
	if err != nil {
		return model.Report{}, err
	}
	return summary.Build(totals, income, expense, incomeNames, expenseNames), nil
}

func (h *SummaryHandler) trend(ctx context.Context, scope store.Scope) ([]model.TrendPoint, error) {
	months := summary.TrendMonths(h.now(), h.loc)
	points := make([]model.TrendPoint, 0, len(months))
	for _, m := range months {
		totals, err := h.summaries.Totals(ctx, scope, m.Window.Start, m.Window.End)
		if err != nil {
			return nil, err
		}
		points = append(points, summary.Point(m, totals))
	}
	return points, nil
}

func categoryIDs(rows []summary.CategoryRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CategoryID
	}
	return ids
}

func (h *SummaryHandler) Daily(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	date := h.now().In(h.loc)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation(dateOnly, s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	rep, err := h.report(r.Context(), scope, summary.Daily(date, h.loc))
	if err != nil {
		h.serverError(w, "daily", err)
		return
	}
	writeJSON(w, http.StatusOK, dailyResponse{
		Period:  summary.PeriodDaily,
		GroupID: scope.GroupID,
		Date:    date.Format(dateOnly),
		Report:  rep,
	})
}

func (h *SummaryHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	now := h.now().In(h.loc)
	year, ok := queryInt(w, r, "year", now.Year(), 1, 9999)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", int(now.Month()), 1, 12)
	if !ok {
		return
	}

	rep, err := h.report(r.Context(), scope, summary.Monthly(year, time.Month(month), h.loc))
	if err != nil {
		h.serverError(w, "monthly", err)
		return
	}
	writeJSON(w, http.StatusOK, monthlyResponse{
		Period:  summary.PeriodMonthly,
		GroupID: scope.GroupID,
		Year:    year,
		Month:   month,
		Report:  rep,
	})
}

func (h *SummaryHandler) Yearly(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	year, ok := queryInt(w, r, "year", h.now().In(h.loc).Year(), 1, 9999)
	if !ok {
		return
	}

	rep, err := h.report(r.Context(), scope, summary.Yearly(year, h.loc))
	if err != nil {
		h.serverError(w, "yearly", err)
		return
	}
	writeJSON(w, http.StatusOK, yearlyResponse{
		Period:  summary.PeriodYearly,
		GroupID: scope.GroupID,
		Year:    year,
		Report:  rep,
	})
}

func (h *SummaryHandler) Trend(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	points, err := h.trend(r.Context(), scope)
	if err != nil {
		h.serverError(w, "trend", err)
		return
	}
	writeJSON(w, http.StatusOK, trendResponse{GroupID: scope.GroupID, Trends: points})
}

// TrendChart renders the same series as Trend as a PNG.
func (h *SummaryHandler) TrendChart(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	points, err := h.trend(r.Context(), scope)
	if err != nil {
		h.serverError(w, "trend chart", err)
		return
	}

	var buf bytes.Buffer
	if err := summary.RenderTrend(&buf, points); err != nil {
		h.serverError(w, "trend chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *SummaryHandler) serverError(w http.ResponseWriter, period string, err error) {
	h.logger.Error("build summary", "period", period, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to build summary")
}

// queryInt reads an optional integer query parameter bounded by [lo, hi],
// writing a 400 when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		writeError(w, http.StatusBadRequest, name+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
		return 0, false
	}
	return n, true
}
