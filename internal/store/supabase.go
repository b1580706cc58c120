package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/util"
)

// pgrstObjectMedia requests exactly-one-row semantics from PostgREST; a
// request that does not resolve to a single row comes back as 406.
const pgrstObjectMedia = "application/vnd.pgrst.object+json"

// supabaseStore implements Store against the Supabase PostgREST table API
// using the service-role credential.
type supabaseStore struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewSupabase builds the remote record-store backend. The schema is assumed
// to be provisioned; no migration ever runs against it.
func NewSupabase(baseURL, serviceKey string) Store {
	return &supabaseStore{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *supabaseStore) Kind() string { return "supabase" }

func (s *supabaseStore) Close() error { return nil }

// Ping probes a known table, mirroring the startup liveness check.
func (s *supabaseStore) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")
	_, _, err := s.do(ctx, http.MethodGet, models.TableCompanyInfo, params, nil, nil)
	return err
}

func (s *supabaseStore) Get(ctx context.Context, table string, id int64) (Row, error) {
	params := url.Values{}
	params.Set("id", "eq."+strconv.FormatInt(id, 10))
	body, status, err := s.do(ctx, http.MethodGet, table, params, nil, map[string]string{
		"Accept": pgrstObjectMedia,
	})
	if err != nil {
		if status == http.StatusNotAcceptable {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var row Row
	if errDecode := json.Unmarshal(body, &row); errDecode != nil {
		return nil, storeError(table, errDecode)
	}
	return row, nil
}

func (s *supabaseStore) List(ctx context.Context, table string, q Query) ([]Row, error) {
	params := url.Values{}
	for column, value := range q.Filters {
		if values, ok := asSlice(value); ok {
			parts := make([]string, len(values))
			for i, item := range values {
				parts[i] = filterValue(item)
			}
			params.Set(column, "in.("+strings.Join(parts, ",")+")")
			continue
		}
		params.Set(column, "eq."+filterValue(value))
	}
	if q.Search != nil && strings.TrimSpace(q.Search.Term) != "" && len(q.Search.Columns) > 0 {
		term := strings.TrimSpace(q.Search.Term)
		clauses := make([]string, 0, len(q.Search.Columns))
		for _, column := range q.Search.Columns {
			clauses = append(clauses, column+".ilike.*"+term+"*")
		}
		params.Set("or", "("+strings.Join(clauses, ",")+")")
	}
	if q.OrderBy != "" {
		direction := "desc"
		if q.Ascending {
			direction = "asc"
		}
		params.Set("order", q.OrderBy+"."+direction)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	body, _, err := s.do(ctx, http.MethodGet, table, params, nil, nil)
	if err != nil {
		return nil, err
	}
	rows := []Row{}
	if errDecode := json.Unmarshal(body, &rows); errDecode != nil {
		return nil, storeError(table, errDecode)
	}
	return rows, nil
}

func (s *supabaseStore) Insert(ctx context.Context, table string, fields Row) (int64, error) {
	body, _, err := s.do(ctx, http.MethodPost, table, nil, fields, map[string]string{
		"Accept": pgrstObjectMedia,
		"Prefer": "return=representation",
	})
	if err != nil {
		return 0, err
	}
	var row Row
	if errDecode := json.Unmarshal(body, &row); errDecode != nil {
		return 0, storeError(table, errDecode)
	}
	id, ok := util.AsInt64(row["id"])
	if !ok {
		return 0, storeError(table, fmt.Errorf("insert returned no id"))
	}
	return id, nil
}

func (s *supabaseStore) Update(ctx context.Context, table string, id int64, fields Row) (int64, error) {
	params := url.Values{}
	params.Set("id", "eq."+strconv.FormatInt(id, 10))
	_, status, err := s.do(ctx, http.MethodPatch, table, params, fields, map[string]string{
		"Accept": pgrstObjectMedia,
		"Prefer": "return=representation",
	})
	if err != nil {
		// Zero matched rows is not a backend failure; callers report it
		// as not-found.
		if status == http.StatusNotAcceptable {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

func (s *supabaseStore) Delete(ctx context.Context, table string, id int64) (int64, error) {
	params := url.Values{}
	params.Set("id", "eq."+strconv.FormatInt(id, 10))
	body, _, err := s.do(ctx, http.MethodDelete, table, params, nil, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return 0, err
	}
	var rows []Row
	if errDecode := json.Unmarshal(body, &rows); errDecode != nil {
		return 0, storeError(table, errDecode)
	}
	return int64(len(rows)), nil
}

func (s *supabaseStore) Count(ctx context.Context, table string, filters map[string]any) (int64, error) {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")
	for column, value := range filters {
		params.Set(column, "eq."+filterValue(value))
	}

	req, errReq := s.newRequest(ctx, http.MethodGet, table, params, nil)
	if errReq != nil {
		return 0, errReq
	}
	req.Header.Set("Prefer", "count=exact")

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return 0, storeError(table, errDo)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, s.apiError(table, resp.StatusCode, body)
	}

	// Content-Range arrives as "0-0/42" or "*/0".
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, storeError(table, fmt.Errorf("missing count in response"))
	}
	total, errParse := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if errParse != nil {
		return 0, storeError(table, fmt.Errorf("bad content range %q", contentRange))
	}
	return total, nil
}

func (s *supabaseStore) UserByUsername(ctx context.Context, username string) (Row, error) {
	return s.userBy(ctx, "username", username)
}

func (s *supabaseStore) UserByEmail(ctx context.Context, email string) (Row, error) {
	return s.userBy(ctx, "email", email)
}

func (s *supabaseStore) userBy(ctx context.Context, column, value string) (Row, error) {
	params := url.Values{}
	params.Set(column, "eq."+value)
	body, status, err := s.do(ctx, http.MethodGet, models.TableUsers, params, nil, map[string]string{
		"Accept": pgrstObjectMedia,
	})
	if err != nil {
		if status == http.StatusNotAcceptable {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var row Row
	if errDecode := json.Unmarshal(body, &row); errDecode != nil {
		return nil, storeError(models.TableUsers, errDecode)
	}
	return row, nil
}

// newRequest builds a PostgREST request with the service credentials set.
func (s *supabaseStore) newRequest(ctx context.Context, method, table string, params url.Values, payload any) (*http.Request, error) {
	endpoint := s.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		encoded, errMarshal := json.Marshal(payload)
		if errMarshal != nil {
			return nil, storeError(table, errMarshal)
		}
		reader = bytes.NewReader(encoded)
	}

	req, errReq := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if errReq != nil {
		return nil, storeError(table, errReq)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes one PostgREST call and returns the body and status code.
func (s *supabaseStore) do(ctx context.Context, method, table string, params url.Values, payload any, headers map[string]string) ([]byte, int, error) {
	req, errReq := s.newRequest(ctx, method, table, params, payload)
	if errReq != nil {
		return nil, 0, errReq
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return nil, 0, storeError(table, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, resp.StatusCode, storeError(table, errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, s.apiError(table, resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

// pgrstError is the error document PostgREST returns.
type pgrstError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// apiError maps a PostgREST failure onto the store error taxonomy.
func (s *supabaseStore) apiError(table string, status int, body []byte) error {
	var apiErr pgrstError
	_ = json.Unmarshal(body, &apiErr)

	if status == http.StatusConflict || apiErr.Code == "23505" {
		return ErrConflict
	}
	if apiErr.Code == "PGRST116" {
		return ErrNotFound
	}
	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return storeError(table, fmt.Errorf("remote %d: %s", status, message))
}

// filterValue renders a filter operand in PostgREST syntax.
func filterValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
