package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/user-console/internal/testutil"
	"github.com/Sternrassler/user-console/pkg/pagination"
)

func TestQuery_Values(t *testing.T) {
	v := Query{Page: 2, PerPage: 5, City: "Tehran"}.Values()

	for _, key := range []string{"page", "per_page", "name", "city", "job", "age"} {
		if _, ok := v[key]; !ok {
			t.Errorf("parameter %q missing", key)
		}
	}
	if v.Get("page") != "2" || v.Get("per_page") != "5" || v.Get("city") != "Tehran" {
		t.Errorf("unexpected values %v", v)
	}
	if v.Get("name") != "" || v.Get("age") != "" {
		t.Errorf("unset filters must be empty strings, got %v", v)
	}
	if got := v.Encode(); got != "age=&city=Tehran&job=&name=&page=2&per_page=5" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestDecodeUserPage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantItems  int
		wantPages  int
		wantTotal  int
		wantClass  ErrorClass
	}{
		{
			name:      "full page",
			body:      `{"items":[{"id":1,"name":"A","age":30,"city":"X","job":"Y"}],"total_pages":1,"total_items":1,"page":1,"per_page":5}`,
			wantItems: 1, wantPages: 1, wantTotal: 1,
		},
		{
			name: "empty items",
			body: `{"items":[],"total_pages":0,"total_items":0}`,
		},
		{
			name: "missing fields",
			body: `{"message":"hello"}`,
		},
		{
			name: "null items",
			body: `{"items":null,"total_pages":2,"total_items":7}`,
			wantPages: 2, wantTotal: 7,
		},
		{
			name: "wrong types",
			body: `{"items":"nope","total_pages":"3","total_items":4}`,
			wantTotal: 4,
		},
		{
			name: "negative totals",
			body: `{"items":[],"total_pages":-1,"total_items":-5}`,
		},
		{
			name: "array body",
			body: `[1,2,3]`,
		},
		{
			name: "null body",
			body: `null`,
		},
		{
			name:      "not json",
			body:      `<html>oops</html>`,
			wantClass: ErrorClassMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodeUserPage([]byte(tt.body))
			if tt.wantClass != "" {
				if ClassOf(err) != tt.wantClass {
					t.Fatalf("ClassOf(%v) = %q, want %q", err, ClassOf(err), tt.wantClass)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.Items == nil {
				t.Error("Items must never be nil")
			}
			if len(page.Items) != tt.wantItems {
				t.Errorf("len(Items) = %d, want %d", len(page.Items), tt.wantItems)
			}
			if page.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", page.TotalPages, tt.wantPages)
			}
			if page.TotalItems != tt.wantTotal {
				t.Errorf("TotalItems = %d, want %d", page.TotalItems, tt.wantTotal)
			}
		})
	}
}

func TestDecodeUserPage_Record(t *testing.T) {
	page, err := DecodeUserPage([]byte(`{"items":[{"id":1,"name":"A","age":30,"city":"X","job":"Y"}],"total_pages":1,"total_items":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := UserRecord{ID: 1, Name: "A", Age: 30, City: "X", Job: "Y"}
	if page.Items[0] != want {
		t.Errorf("Items[0] = %+v, want %+v", page.Items[0], want)
	}
}

func TestListUsers(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)

	page, err := c.ListUsers(context.Background(), Query{Page: 2, PerPage: 5})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}

	if page.TotalItems != 12 || page.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 12/3", page.TotalItems, page.TotalPages)
	}
	if len(page.Items) != 5 || page.Items[0].ID != 6 || page.Items[4].ID != 10 {
		t.Errorf("unexpected items %+v", page.Items)
	}

	queries := api.ListQueries()
	if len(queries) != 1 {
		t.Fatalf("requests = %d, want 1", len(queries))
	}
	for _, key := range []string{"name", "city", "job", "age"} {
		if _, ok := queries[0][key]; !ok {
			t.Errorf("filter %q not sent", key)
		}
	}
}

func TestListUsers_Filters(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"city substring case-insensitive", Query{City: "tehr"}, 4},
		{"job", Query{Job: "designer"}, 2},
		{"age exact", Query{Age: "28"}, 1},
		{"combined", Query{City: "Tehran", Job: "Accountant"}, 2},
		{"no match", Query{Name: "nobody"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.Page, q.PerPage = 1, 5

			page, err := c.ListUsers(context.Background(), q)
			if err != nil {
				t.Fatalf("ListUsers failed: %v", err)
			}
			if page.TotalItems != tt.want {
				t.Errorf("TotalItems = %d, want %d", page.TotalItems, tt.want)
			}
		})
	}
}

func TestListUsers_ServerError(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()
	api.SetResponse("/api/users", testutil.NewServerErrorResponse())

	c := newTestClient(t, api.URL(), 1)

	_, err := c.ListUsers(context.Background(), Query{Page: 1, PerPage: 5})
	if err == nil {
		t.Fatal("Expected error for 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should mention the status", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d, want 500", StatusCode(err))
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("ClassOf() = %q, want server", ClassOf(err))
	}
}

func TestListUsers_RecoversAfterRetry(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	var calls int32
	api.SetHandler("/api/users", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"items":[],"total_pages":0,"total_items":0}`))
	})

	c := newTestClient(t, api.URL(), 3)

	if _, err := c.ListUsers(context.Background(), Query{Page: 1, PerPage: 5}); err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestListUsers_OutOfRangePageIsClientError(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 3)

	_, err := c.ListUsers(context.Background(), Query{Page: 9, PerPage: 5})
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404", StatusCode(err))
	}
	if api.RequestCount() != 1 {
		t.Errorf("requests = %d, 4xx must not be retried", api.RequestCount())
	}
}

func TestListUsers_Malformed(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()
	api.SetResponse("/api/users", testutil.NewJSONResponse(`{"items": [`))

	c := newTestClient(t, api.URL(), 1)

	_, err := c.ListUsers(context.Background(), Query{Page: 1, PerPage: 5})
	if ClassOf(err) != ErrorClassMalformed {
		t.Errorf("ClassOf(%v) = %q, want malformed", err, ClassOf(err))
	}
}

func TestPing(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	api.SetResponse("/", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})
	err := c.Ping(context.Background())
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("Ping err = %v, want 503", err)
	}
}

func TestUserCRUD(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)
	ctx := context.Background()

	created, err := c.CreateUser(ctx, NewUser{Name: "Parisa Rahimi", Age: 27, City: "Karaj", Job: "Nurse"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.ID != 13 || created.Name != "Parisa Rahimi" {
		t.Errorf("created = %+v", created)
	}

	got, err := c.GetUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if *got != *created {
		t.Errorf("GetUser = %+v, want %+v", got, created)
	}

	age := 28
	updated, err := c.UpdateUser(ctx, created.ID, UserPatch{Age: &age})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Age != 28 || updated.City != "Karaj" {
		t.Errorf("updated = %+v", updated)
	}

	if err := c.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := c.GetUser(ctx, created.ID); StatusCode(err) != http.StatusNotFound {
		t.Errorf("GetUser after delete err = %v, want 404", err)
	}
	if api.UserCount() != 12 {
		t.Errorf("UserCount() = %d, want 12", api.UserCount())
	}
}

func TestCreateUser_Validation(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)

	tests := []struct {
		name  string
		user  NewUser
		field string
	}{
		{"missing name", NewUser{Age: 20, City: "A", Job: "B"}, "name"},
		{"negative age", NewUser{Name: "A", Age: -1, City: "A", Job: "B"}, "age"},
		{"missing job", NewUser{Name: "A", Age: 20, City: "A"}, "job"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateUser(context.Background(), tt.user)
			if !errors.Is(err, ErrInvalidUser) {
				t.Fatalf("err = %v, want ErrInvalidUser", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("err %q should name field %q", err, tt.field)
			}
		})
	}

	if api.RequestCount() != 0 {
		t.Errorf("invalid users must not reach the API, got %d requests", api.RequestCount())
	}
}

func TestListingPages_WithBatchFetcher(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	c := newTestClient(t, api.URL(), 1)

	fetcher := pagination.NewBatchFetcher(c.ListingPages(Query{PerPage: 5}), pagination.DefaultConfig())
	pages, err := fetcher.FetchAllPages(context.Background())
	if err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}

	total := 0
	for n := 1; n <= 3; n++ {
		page, err := DecodeUserPage(pages[n])
		if err != nil {
			t.Fatalf("page %d: %v", n, err)
		}
		total += len(page.Items)
	}
	if total != 12 {
		t.Errorf("records = %d, want 12", total)
	}
}
