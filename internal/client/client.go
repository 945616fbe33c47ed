// Package client is a typed Go client for the wadake HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/wadake/internal/model"
)

// Credentials authenticate one call. The client never stores them.
type Credentials struct {
	Token string
}

func (c Credentials) apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL. A nil httpClient gets a
// default with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, cred Credentials, method, path string, in, out any, header http.Header) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	cred.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ledgerPath is the personal path when groupID is empty.
func ledgerPath(groupID, resource string) string {
	if groupID == "" {
		return "/api/" + resource
	}
	return "/api/groups/" + url.PathEscape(groupID) + "/" + resource
}

// Auth

type TokenUser struct {
	ID       string
	Email    string
	FullName string
}

type TokenResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// IssueToken exchanges an identity for a session token. issuerKey is sent
// when the server requires one; accessToken when it verifies upstream.
func (c *Client) IssueToken(ctx context.Context, u TokenUser, accessToken, issuerKey string) (*TokenResponse, error) {
	body := map[string]any{
		"user": map[string]any{
			"id":            u.ID,
			"email":         u.Email,
			"user_metadata": map[string]string{"full_name": u.FullName},
		},
	}
	if accessToken != "" {
		body["accessToken"] = accessToken
	}
	var header http.Header
	if issuerKey != "" {
		header = http.Header{"X-Issuer-Key": {issuerKey}}
	}

	var out TokenResponse
	if err := c.do(ctx, Credentials{}, http.MethodPost, "/api/auth/token", body, &out, header); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, cred Credentials) (*model.User, error) {
	var out struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, cred, http.MethodGet, "/api/auth/me", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Ledger entries

// EntryRequest is the body for creating or updating an income or expense.
// Version, when set, makes the update conditional.
type EntryRequest struct {
	CategoryID  string  `json:"categoryId"`
	Amount      int64   `json:"amount"`
	Memo        *string `json:"memo,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date"`
	Version     *int64  `json:"version,omitempty"`
}

func (c *Client) ListIncomes(ctx context.Context, cred Credentials, groupID string) ([]model.Income, error) {
	var out []model.Income
	err := c.do(ctx, cred, http.MethodGet, ledgerPath(groupID, "incomes"), nil, &out, nil)
	return out, err
}

func (c *Client) CreateIncome(ctx context.Context, cred Credentials, groupID string, in EntryRequest) (*model.Income, error) {
	var out model.Income
	if err := c.do(ctx, cred, http.MethodPost, ledgerPath(groupID, "incomes"), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateIncome(ctx context.Context, cred Credentials, groupID, id string, in EntryRequest) (*model.Income, error) {
	var out model.Income
	if err := c.do(ctx, cred, http.MethodPut, ledgerPath(groupID, "incomes")+"/"+url.PathEscape(id), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteIncome(ctx context.Context, cred Credentials, groupID, id string) error {
	return c.do(ctx, cred, http.MethodDelete, ledgerPath(groupID, "incomes")+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListExpenses(ctx context.Context, cred Credentials, groupID string) ([]model.Expense, error) {
	var out []model.Expense
	err := c.do(ctx, cred, http.MethodGet, ledgerPath(groupID, "expenses"), nil, &out, nil)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, cred Credentials, groupID string, in EntryRequest) (*model.Expense, error) {
	var out model.Expense
	if err := c.do(ctx, cred, http.MethodPost, ledgerPath(groupID, "expenses"), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExpense(ctx context.Context, cred Credentials, groupID, id string, in EntryRequest) (*model.Expense, error) {
	var out model.Expense
	if err := c.do(ctx, cred, http.MethodPut, ledgerPath(groupID, "expenses")+"/"+url.PathEscape(id), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteExpense(ctx context.Context, cred Credentials, groupID, id string) error {
	return c.do(ctx, cred, http.MethodDelete, ledgerPath(groupID, "expenses")+"/"+url.PathEscape(id), nil, nil, nil)
}

// Budgets

type BudgetRequest struct {
	Amount  int64  `json:"amount"`
	Purpose string `json:"purpose"`
	Date    string `json:"date"`
	Version *int64 `json:"version,omitempty"`
}

// ListBudgets lists a group's budgets, or the personal budgets when groupID
// is empty.
func (c *Client) ListBudgets(ctx context.Context, cred Credentials, groupID string) ([]model.Budget, error) {
	var out []model.Budget
	err := c.do(ctx, cred, http.MethodGet, ledgerPath(groupID, "budgets"), nil, &out, nil)
	return out, err
}

func (c *Client) CreateBudget(ctx context.Context, cred Credentials, groupID string, in BudgetRequest) (*model.Budget, error) {
	var out model.Budget
	if err := c.do(ctx, cred, http.MethodPost, ledgerPath(groupID, "budgets"), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBudget(ctx context.Context, cred Credentials, groupID, id string, in BudgetRequest) (*model.Budget, error) {
	var out model.Budget
	if err := c.do(ctx, cred, http.MethodPut, ledgerPath(groupID, "budgets")+"/"+url.PathEscape(id), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBudget(ctx context.Context, cred Credentials, groupID, id string) error {
	return c.do(ctx, cred, http.MethodDelete, ledgerPath(groupID, "budgets")+"/"+url.PathEscape(id), nil, nil, nil)
}

// Categories

// ListCategories lists categories of typ, or all of them when typ is empty.
func (c *Client) ListCategories(ctx context.Context, cred Credentials, typ string) ([]model.Category, error) {
	path := "/api/categories"
	if typ != "" {
		path += "/" + url.PathEscape(typ)
	}
	var out []model.Category
	err := c.do(ctx, cred, http.MethodGet, path, nil, &out, nil)
	return out, err
}

// Groups

func (c *Client) CreateGroup(ctx context.Context, cred Credentials, name string) (*model.Group, error) {
	var out model.Group
	if err := c.do(ctx, cred, http.MethodPost, "/api/groups", map[string]string{"name": name}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListGroups(ctx context.Context, cred Credentials, userID string) ([]model.Group, error) {
	var out []model.Group
	err := c.do(ctx, cred, http.MethodGet, "/api/groups/user/"+url.PathEscape(userID), nil, &out, nil)
	return out, err
}

func (c *Client) Invite(ctx context.Context, cred Credentials, groupID, userID, role string) (*model.Membership, error) {
	body := map[string]string{"userId": userID}
	if role != "" {
		body["role"] = role
	}
	var out model.Membership
	if err := c.do(ctx, cred, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/invite", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Members(ctx context.Context, cred Credentials, groupID string) ([]model.Membership, error) {
	var out []model.Membership
	err := c.do(ctx, cred, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/members", nil, &out, nil)
	return out, err
}

// Summaries

type DailyReport struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Date    string `json:"date"`
	model.Report
}

type MonthlyReport struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	model.Report
}

type YearlyReport struct {
	Period  string `json:"period"`
	GroupID string `json:"groupId,omitempty"`
	Year    int    `json:"year"`
	model.Report
}

type Trend struct {
	GroupID string             `json:"groupId,omitempty"`
	Trends  []model.TrendPoint `json:"trends"`
}

func summaryPath(period, groupID string, q url.Values) string {
	if groupID != "" {
		q.Set("groupId", groupID)
	}
	path := "/api/summary/" + period
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

// Daily reports on date (YYYY-MM-DD), or today when date is empty.
func (c *Client) Daily(ctx context.Context, cred Credentials, groupID, date string) (*DailyReport, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out DailyReport
	if err := c.do(ctx, cred, http.MethodGet, summaryPath("daily", groupID, q), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Monthly(ctx context.Context, cred Credentials, groupID string, year int, month time.Month) (*MonthlyReport, error) {
	q := url.Values{"year": {strconv.Itoa(year)}, "month": {strconv.Itoa(int(month))}}
	var out MonthlyReport
	if err := c.do(ctx, cred, http.MethodGet, summaryPath("monthly", groupID, q), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Yearly(ctx context.Context, cred Credentials, groupID string, year int) (*YearlyReport, error) {
	q := url.Values{"year": {strconv.Itoa(year)}}
	var out YearlyReport
	if err := c.do(ctx, cred, http.MethodGet, summaryPath("yearly", groupID, q), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Trend(ctx context.Context, cred Credentials, groupID string) (*Trend, error) {
	var out Trend
	if err := c.do(ctx, cred, http.MethodGet, summaryPath("trend", groupID, url.Values{}), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
