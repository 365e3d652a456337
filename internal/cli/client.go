package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — sync run из API.
type RunResponse struct {
	ID             string          `json:"id"`
	Job            string          `json:"job"`
	Status         string          `json:"status"`
	Trigger        string          `json:"trigger"`
	Force          bool            `json:"force"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      string          `json:"started_at,omitempty"`
	FinishedAt     string          `json:"finished_at,omitempty"`
	DurationMs     int64           `json:"duration_ms,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Job       string `json:"job"`
	CronExpr  string `json:"cron_expr"`
	Timezone  string `json:"timezone"`
	Enabled   bool   `json:"enabled"`
	NextDueAt string `json:"next_due_at,omitempty"`
	LastRunAt string `json:"last_run_at,omitempty"`
	LastRunID string `json:"last_run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SyncResult — итог синхронной синхронизации.
type SyncResult struct {
	Job     string `json:"job"`
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
}

// --- Request types ---

// CreateRunRequest — постановка sync run в очередь.
type CreateRunRequest struct {
	Job     string `json:"job"`
	Force   bool   `json:"force,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	Name     string `json:"name"`
	Job      string `json:"job"`
	CronExpr string `json:"cron_expr"`
	Timezone string `json:"timezone,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — обновление расписания.
type UpdateScheduleRequest struct {
	Name     *string `json:"name,omitempty"`
	Job      *string `json:"job,omitempty"`
	CronExpr *string `json:"cron_expr,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Job    string
	Status string
	Limit  int
}

// AdminListOpts — параметры списка react-admin.
type AdminListOpts struct {
	Start   int
	End     int
	Sort    string
	Order   string
	Filters map[string]string
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

// APIError — ответ API с ошибкой.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для YNAB Portal API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token передаётся в заголовке X-Token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			// синхронизация transactions может занять несколько минут
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Sync ---

// Sync синхронно выполняет задачу синхронизации.
func (c *Client) Sync(job string, force bool) (*SyncResult, json.RawMessage, error) {
	path := "/ynab/update-" + url.PathEscape(job)
	if force {
		path += "?force=true"
	}
	raw, _, err := c.raw(http.MethodPost, path, nil)
	if err != nil {
		return nil, nil, err
	}
	var result SyncResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, raw, nil
}

// --- Reports ---

// Report возвращает отчёт как есть.
func (c *Client) Report(path string, params url.Values) (json.RawMessage, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	raw, _, err := c.raw(http.MethodGet, path, nil)
	return raw, err
}

// --- Admin ---

// AdminList возвращает страницу записей ресурса и общее количество.
func (c *Client) AdminList(resource string, opts AdminListOpts) ([]gjson.Result, int, error) {
	params := url.Values{}
	params.Set("_start", strconv.Itoa(opts.Start))
	params.Set("_end", strconv.Itoa(opts.End))
	if opts.Sort != "" {
		params.Set("_sort", opts.Sort)
	}
	if opts.Order != "" {
		params.Set("_order", opts.Order)
	}
	for k, v := range opts.Filters {
		params.Set(k, v)
	}

	raw, header, err := c.raw(http.MethodGet, "/portal/admin/"+url.PathEscape(resource)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	records := gjson.ParseBytes(raw).Array()
	total, err := strconv.Atoi(header.Get("X-Total-Count"))
	if err != nil {
		total = len(records)
	}
	return records, total, nil
}

// AdminGet возвращает запись ресурса.
func (c *Client) AdminGet(resource, id string) (gjson.Result, error) {
	raw, _, err := c.raw(http.MethodGet, "/portal/admin/"+url.PathEscape(resource)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}

// AdminDelete удаляет записи ресурса и возвращает сообщение API.
func (c *Client) AdminDelete(resource string, ids []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(ids) == 1 {
		raw, _, err = c.raw(http.MethodDelete, "/portal/admin/"+url.PathEscape(resource)+"/"+url.PathEscape(ids[0]), nil)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %s.", ids[0]), nil
	}

	params := url.Values{"ids": ids}
	raw, _, err = c.raw(http.MethodDelete, "/portal/admin/"+url.PathEscape(resource)+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "message").String(), nil
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Job != "" {
		params.Set("job", opts.Job)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/portal/sync/runs", params, &runs)
	return runs, err
}

// CreateRun ставит sync run в очередь.
func (c *Client) CreateRun(req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/portal/sync/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/portal/sync/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// --- Schedules ---

// ListSchedules возвращает расписания. Если job не пустой — фильтрует.
func (c *Client) ListSchedules(job string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if job != "" {
		params.Set("job", job)
	}

	var schedules []ScheduleResponse
	err := c.list("/portal/sync/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт расписание.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/portal/sync/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/portal/sync/schedules/"+url.PathEscape(id), &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/portal/sync/schedules/"+url.PathEscape(id), req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	_, _, err := c.raw(http.MethodDelete, "/portal/sync/schedules/"+url.PathEscape(id), nil)
	return err
}

// SetScheduleEnabled включает или выключает расписание.
func (c *Client) SetScheduleEnabled(id string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": enabled}
	err := c.put("/portal/sync/schedules/"+url.PathEscape(id)+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	raw, _, err := c.raw(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var lr listResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	raw, _, err := c.raw(method, path, body)
	if err != nil {
		return err
	}
	if len(raw) == 0 || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.Unmarshal(raw, &dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

// raw выполняет запрос и возвращает тело ответа без разбора.
func (c *Client) raw(method, path string, body any) ([]byte, http.Header, error) {
	resp, err := c.do(method, path, body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := checkError(resp.StatusCode, data); err != nil {
		return nil, nil, err
	}
	return data, resp.Header, nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Token", c.token)
	}

	return c.httpClient.Do(req)
}

func checkError(status int, body []byte) error {
	if status < 400 {
		return nil
	}

	e := &APIError{Status: status}
	if parsed := gjson.ParseBytes(body); parsed.Get("error").Exists() {
		e.Code = parsed.Get("error.code").String()
		e.Message = parsed.Get("error.message").String()
	}
	return e
}
