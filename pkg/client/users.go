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

	"github.com/Sternrassler/user-console/pkg/cache"
	"github.com/Sternrassler/user-console/pkg/pagination"
	"github.com/go-playground/validator/v10"
)

// UsersEndpoint is the user collection on the user API.
const UsersEndpoint = "/api/users"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// UserRecord is a user as returned by the user API.
type UserRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
	City string `json:"city"`
	Job  string `json:"job"`
}

// Query selects one page of the user listing.
type Query struct {
	Page    int
	PerPage int
	Name    string
	City    string
	Job     string
	Age     string
}

// Values encodes the query. All six parameters are always present; unset
// filters are sent as empty strings.
func (q Query) Values() url.Values {
	return url.Values{
		"page":     {strconv.Itoa(q.Page)},
		"per_page": {strconv.Itoa(q.PerPage)},
		"name":     {q.Name},
		"city":     {q.City},
		"job":      {q.Job},
		"age":      {q.Age},
	}
}

// UserPage is one page of the user listing.
type UserPage struct {
	Items      []UserRecord
	TotalPages int
	TotalItems int
}

// DecodeUserPage decodes a listing body. A body that is valid JSON but lacks
// the expected fields decodes to an empty page; a body that is not JSON at
// all is a malformed-response error.
func DecodeUserPage(data []byte) (*UserPage, error) {
	page := &UserPage{Items: []UserRecord{}}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if json.Valid(data) {
			return page, nil
		}
		return nil, &APIError{ErrorClass: ErrorClassMalformed, Message: "decode user listing", Err: err}
	}

	if items, ok := decodeField[[]UserRecord](fields, "items"); ok && items != nil {
		page.Items = items
	}
	if n, ok := decodeField[int](fields, "total_pages"); ok && n > 0 {
		page.TotalPages = n
	}
	if n, ok := decodeField[int](fields, "total_items"); ok && n > 0 {
		page.TotalItems = n
	}

	return page, nil
}

// decodeField decodes one member of a JSON object, reporting false when it
// is absent or of the wrong type.
func decodeField[T any](fields map[string]json.RawMessage, name string) (T, bool) {
	var v T
	raw, ok := fields[name]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// ListUsers fetches one page of the user listing.
func (c *Client) ListUsers(ctx context.Context, q Query) (*UserPage, error) {
	body, err := c.call(ctx, http.MethodGet, UsersEndpoint, q.Values(), nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	page, err := DecodeUserPage(body)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, fmt.Errorf("list users: %w", err)
	}

	c.logger.Debug().
		Int("page", q.Page).
		Int("items", len(page.Items)).
		Int("total_pages", page.TotalPages).
		Int("total_items", page.TotalItems).
		Msg("Fetched user listing")

	return page, nil
}

// ListingPages returns a page fetcher for every page of q's filter, for use
// with pagination.BatchFetcher. The fetched data is the raw listing body.
func (c *Client) ListingPages(q Query) pagination.PageFetcher {
	return pagination.PageFetcherFunc(func(ctx context.Context, pageNum int) ([]byte, int, error) {
		pq := q
		pq.Page = pageNum

		body, err := c.call(ctx, http.MethodGet, UsersEndpoint, pq.Values(), nil, http.StatusOK)
		if err != nil {
			return nil, 0, err
		}

		page, err := DecodeUserPage(body)
		if err != nil {
			return nil, 0, err
		}
		return body, page.TotalPages, nil
	})
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id int64) (*UserRecord, error) {
	body, err := c.call(ctx, http.MethodGet, userPath(id), nil, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return decodeUser(body)
}

// NewUser is the payload for creating a user.
type NewUser struct {
	Name string `json:"name" validate:"required,max=100"`
	Age  int    `json:"age" validate:"gte=0,lte=150"`
	City string `json:"city" validate:"required,max=100"`
	Job  string `json:"job" validate:"required,max=100"`
}

// UserPatch is a partial update; nil fields are left unchanged.
type UserPatch struct {
	Name *string `json:"name,omitempty"`
	Age  *int    `json:"age,omitempty"`
	City *string `json:"city,omitempty"`
	Job  *string `json:"job,omitempty"`
}

// CreateUser validates and creates a user.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*UserRecord, error) {
	if err := c.validate.Struct(u); err != nil {
		return nil, validationError(err)
	}

	body, err := c.call(ctx, http.MethodPost, UsersEndpoint, nil, u, http.StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	c.invalidateListings(ctx)
	return decodeUser(body)
}

// UpdateUser applies a partial update to a user.
func (c *Client) UpdateUser(ctx context.Context, id int64, patch UserPatch) (*UserRecord, error) {
	body, err := c.call(ctx, http.MethodPut, userPath(id), nil, patch, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	c.invalidateListings(ctx)
	return decodeUser(body)
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	if _, err := c.call(ctx, http.MethodDelete, userPath(id), nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	c.invalidateListings(ctx)
	return nil
}

// Ping probes the user API root. Any 2xx counts as healthy.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return fmt.Errorf("ping user API: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	if _, err := c.send(req, 0); err != nil {
		return fmt.Errorf("ping user API: %w", err)
	}
	return nil
}

// call sends one request and returns the body when the status matches want
// (any 2xx when want is 0).
func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload any, want int) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, query, payload)
	if err != nil {
		return nil, err
	}
	return c.send(req, want)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload any) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(c.baseURL.Path, "/") + path
	u.RawPath = ""
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) send(req *http.Request, want int) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{ErrorClass: ErrorClassNetwork, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}

	ok := resp.StatusCode == want
	if want == 0 {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		return nil, statusError(resp.StatusCode, data)
	}

	return data, nil
}

// statusError builds the APIError for an unexpected status, preferring the
// API's own {"error": "..."} message when present.
func statusError(status int, body []byte) *APIError {
	errClass := classifyStatus(status)
	if errClass == "" {
		errClass = ErrorClassServer
	}

	msg := http.StatusText(status)
	var apiBody struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiBody) == nil && apiBody.Error != "" {
		msg = apiBody.Error
	}
	if msg == "" {
		msg = "unexpected status"
	}

	return &APIError{StatusCode: status, ErrorClass: errClass, Message: msg}
}

func decodeUser(body []byte) (*UserRecord, error) {
	var u UserRecord
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassMalformed, Message: "decode user", Err: err}
	}
	return &u, nil
}

func userPath(id int64) string {
	return UsersEndpoint + "/" + strconv.FormatInt(id, 10)
}

// invalidateListings drops cached listings after a mutation.
func (c *Client) invalidateListings(ctx context.Context) {
	if c.cache == nil {
		return
	}
	removed, err := c.cache.InvalidatePrefix(ctx, cache.Key{Endpoint: UsersEndpoint}.Prefix())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate cached listings")
		return
	}
	c.logger.Debug().Int("removed", removed).Msg("Invalidated cached listings")
}

// validationError flattens validator errors into one ErrInvalidUser.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidUser, strings.Join(parts, ", "))
}
