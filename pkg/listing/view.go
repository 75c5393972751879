package listing

import (
	"strconv"

	"github.com/Sternrassler/user-console/pkg/client"
	"github.com/Sternrassler/user-console/pkg/pagination"
)

// NoDataText is shown in the placeholder row of an empty listing.
const NoDataText = "No users found"

// Columns are the table headers, in row order.
var Columns = []string{"ID", "Name", "Age", "City", "Job"}

// Row is one rendered table row.
type Row struct {
	Cells []string
}

// View is everything a template needs to render the listing.
type View struct {
	Filters FilterCriteria

	Loading bool

	// Error is set in the error state; the retry control is shown with it.
	Error     string
	ShowRetry bool

	// ShowTable is false while loading and on error.
	ShowTable bool
	Columns   []string
	Rows      []Row
	// Empty marks a ready listing without rows; render a single placeholder.
	Empty bool

	Pager pagination.Pager
}

// BuildView derives the view model from a snapshot.
func BuildView(s State) View {
	v := View{
		Filters: s.Filters,
		Pager:   pagination.NewPager(s.Page.CurrentPage, s.Page.ItemsPerPage, s.Page.TotalPages, s.Page.TotalItems),
	}

	switch s.Status.Kind {
	case StatusLoading:
		v.Loading = true
	case StatusError:
		v.Error = s.Status.Message
		v.ShowRetry = true
	case StatusReady:
		v.ShowTable = true
		v.Columns = Columns
		v.Rows = make([]Row, 0, len(s.Status.Rows))
		for _, u := range s.Status.Rows {
			v.Rows = append(v.Rows, RecordRow(u))
		}
		v.Empty = len(v.Rows) == 0
	}

	return v
}

// RecordRow renders one user as [id, name, age, city, job].
func RecordRow(u client.UserRecord) Row {
	return Row{Cells: []string{
		strconv.FormatInt(u.ID, 10),
		u.Name,
		strconv.Itoa(u.Age),
		u.City,
		u.Job,
	}}
}
