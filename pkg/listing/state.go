package listing

import (
	"errors"

	"github.com/Sternrassler/user-console/pkg/client"
)

// ItemsPerPage is the fixed page size of the listing.
const ItemsPerPage = 5

// Field names a filter criterion.
type Field string

const (
	FieldName Field = "name"
	FieldCity Field = "city"
	FieldJob  Field = "job"
	FieldAge  Field = "age"
)

// Fields lists the filter fields in display order.
var Fields = []Field{FieldName, FieldCity, FieldJob, FieldAge}

// ErrUnknownField is returned by SetFilter for a field that is not a filter.
var ErrUnknownField = errors.New("unknown filter field")

// FilterCriteria holds the listing filters. Empty fields match everything.
type FilterCriteria struct {
	Name string
	City string
	Job  string
	// Age is kept as the raw input; the API matches it exactly.
	Age string
}

// Get returns the value of field f.
func (fc FilterCriteria) Get(f Field) string {
	switch f {
	case FieldName:
		return fc.Name
	case FieldCity:
		return fc.City
	case FieldJob:
		return fc.Job
	case FieldAge:
		return fc.Age
	default:
		return ""
	}
}

func (fc *FilterCriteria) set(f Field, value string) error {
	switch f {
	case FieldName:
		fc.Name = value
	case FieldCity:
		fc.City = value
	case FieldJob:
		fc.Job = value
	case FieldAge:
		fc.Age = value
	default:
		return ErrUnknownField
	}
	return nil
}

// IsZero reports whether no filter is set.
func (fc FilterCriteria) IsZero() bool {
	return fc == FilterCriteria{}
}

// PageState tracks the position in the listing.
type PageState struct {
	CurrentPage  int
	ItemsPerPage int
	TotalPages   int
	TotalItems   int
}

// StatusKind is the fetch status tag.
type StatusKind int

const (
	StatusLoading StatusKind = iota
	StatusReady
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the fetch status. Rows is only meaningful when Kind is
// StatusReady, Message only when Kind is StatusError.
type Status struct {
	Kind    StatusKind
	Rows    []client.UserRecord
	Message string
}

// State is a point-in-time copy of a controller.
type State struct {
	Filters FilterCriteria
	Page    PageState
	Status  Status
}

// Query builds the API query for the state.
func (s State) Query() client.Query {
	return client.Query{
		Page:    s.Page.CurrentPage,
		PerPage: s.Page.ItemsPerPage,
		Name:    s.Filters.Name,
		City:    s.Filters.City,
		Job:     s.Filters.Job,
		Age:     s.Filters.Age,
	}
}
