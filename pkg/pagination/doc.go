// Package pagination holds the page arithmetic behind the console's pager
// and a worker pool that fetches every page of a filtered listing.
//
// The pager is pure: given the current page, the page size and the totals
// reported by the user API it computes the "showing X–Y of Z" bounds, the
// page buttons and which navigation controls are disabled.
//
//	p := pagination.NewPager(2, 5, 3, 12)
//	p.From, p.To, p.Total // 6, 10, 12
//
// The batch fetcher reads page 1 to learn the page count, then spreads
// pages 2..N over a bounded pool of workers:
//
//	fetcher := pagination.NewBatchFetcher(apiClient.ListingPages(query), pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx)
//
// A failing worker stops the fetch early; the pages fetched so far are
// returned together with the error.
package pagination
