// Package testutil provides a mock user API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// User mirrors a record held by the mock user API.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
	City string `json:"city"`
	Job  string `json:"job"`
}

// SampleUsers is the seed data set of the user API.
func SampleUsers() []User {
	return []User{
		{1, "Mohammad Amini", 28, "Tehran", "Programmer"},
		{2, "Sara Mohammadi", 34, "Isfahan", "Designer"},
		{3, "Ali Rezaei", 22, "Mashhad", "Engineer"},
		{4, "Maryam Karimi", 31, "Tabriz", "Doctor"},
		{5, "Reza Hosseini", 45, "Tehran", "Accountant"},
		{6, "Zahra Nouri", 29, "Shiraz", "Manager"},
		{7, "Amir Ghasemi", 37, "Isfahan", "Architect"},
		{8, "Niloufar Ahmadi", 26, "Tehran", "Designer"},
		{9, "Hassan Farhadi", 33, "Mashhad", "Programmer"},
		{10, "Fatemeh Sharifi", 24, "Tabriz", "Engineer"},
		{11, "Kamran Jafari", 41, "Shiraz", "Manager"},
		{12, "Shima Sadeghi", 38, "Tehran", "Accountant"},
	}
}

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUserAPI is an in-memory user API served by httptest.
type MockUserAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	users    map[int64]User
	nextID   int64

	requestCount int
	queries      []url.Values
	lastHeader   http.Header
}

// NewMockUserAPI starts a mock API seeded with SampleUsers.
func NewMockUserAPI() *MockUserAPI {
	m := &MockUserAPI{
		handlers: make(map[string]http.HandlerFunc),
		users:    make(map[int64]User),
	}
	for _, u := range SampleUsers() {
		m.users[u.ID] = u
		if u.ID >= m.nextID {
			m.nextID = u.ID + 1
		}
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockUserAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUserAPI) Close() {
	m.server.Close()
}

// Reset clears request tracking.
func (m *MockUserAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.queries = nil
	m.lastHeader = nil
}

// SetHandler overrides the handler for an exact path.
func (m *MockUserAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ClearHandler restores the built-in behaviour for path.
func (m *MockUserAPI) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, path)
}

// SetResponse serves a canned response for path.
func (m *MockUserAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received.
func (m *MockUserAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ListQueries returns the query strings of every GET /api/users received.
func (m *MockUserAPI) ListQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries))
	copy(out, m.queries)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUserAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// UserCount returns how many users the mock holds.
func (m *MockUserAPI) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MockUserAPI) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastHeader = r.Header.Clone()
	if r.Method == http.MethodGet && r.URL.Path == "/api/users" {
		m.queries = append(m.queries, r.URL.Query())
	}
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	switch {
	case r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]string{"message": "welcome to the users API"})
	case r.URL.Path == "/api/users":
		switch r.Method {
		case http.MethodGet:
			m.listUsers(w, r)
		case http.MethodPost:
			m.createUser(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/users/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/users/"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.userByID(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockUserAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q, "page", 1)
	perPage := intParam(q, "per_page", 5)

	m.mu.RLock()
	matched := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if matchUser(u, q) {
			matched = append(matched, u)
		}
	}
	m.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}

	start := (page - 1) * perPage
	if page < 1 || perPage < 1 || (start >= total && page != 1) {
		// Out-of-range pages are a 404 on the real API.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "page not found"})
		return
	}
	end := start + perPage
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":       matched[start:end],
		"page":        page,
		"per_page":    perPage,
		"total_items": total,
		"total_pages": totalPages,
	})
}

func (m *MockUserAPI) createUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	for _, k := range []string{"name", "age", "city", "job"} {
		if _, ok := body[k]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "incomplete data"})
			return
		}
	}

	var u User
	json.Unmarshal(body["name"], &u.Name)
	json.Unmarshal(body["age"], &u.Age)
	json.Unmarshal(body["city"], &u.City)
	json.Unmarshal(body["job"], &u.Job)

	m.mu.Lock()
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, u)
}

func (m *MockUserAPI) userByID(w http.ResponseWriter, r *http.Request, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		var patch struct {
			Name *string `json:"name"`
			Age  *int    `json:"age"`
			City *string `json:"city"`
			Job  *string `json:"job"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Age != nil {
			u.Age = *patch.Age
		}
		if patch.City != nil {
			u.City = *patch.City
		}
		if patch.Job != nil {
			u.Job = *patch.Job
		}
		m.users[id] = u
		writeJSON(w, http.StatusOK, u)
	case http.MethodDelete:
		delete(m.users, id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// matchUser applies the API's filters: case-insensitive substring on
// name/city/job, exact match on age. Empty filters match everything.
func matchUser(u User, q url.Values) bool {
	contains := func(field, filter string) bool {
		return filter == "" || strings.Contains(strings.ToLower(field), strings.ToLower(filter))
	}
	if !contains(u.Name, q.Get("name")) || !contains(u.City, q.Get("city")) || !contains(u.Job, q.Get("job")) {
		return false
	}
	if age := q.Get("age"); age != "" && age != strconv.Itoa(u.Age) {
		return false
	}
	return true
}

func intParam(q url.Values, key string, def int) int {
	if v, err := strconv.Atoi(q.Get(key)); err == nil {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewJSONResponse creates a 200 OK response with the given JSON body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewConditionalHandler serves body with etag and answers 304 to a
// matching If-None-Match.
func NewConditionalHandler(etag, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Expires", time.Now().Add(-time.Second).Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
