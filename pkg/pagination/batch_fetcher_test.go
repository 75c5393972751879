package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesFetcher(total int, fail map[int]error, calls *int32) PageFetcher {
	return PageFetcherFunc(func(ctx context.Context, page int) ([]byte, int, error) {
		atomic.AddInt32(calls, 1)
		if err := fail[page]; err != nil {
			return nil, 0, err
		}
		return []byte(fmt.Sprintf("page-%d", page)), total, nil
	})
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(nil, Config{})
	assert.Equal(t, DefaultConfig().MaxConcurrency, bf.config.MaxConcurrency)
	assert.Equal(t, DefaultConfig().Timeout, bf.config.Timeout)
}

func TestFetchAllPages_SinglePage(t *testing.T) {
	var calls int32
	bf := NewBatchFetcher(pagesFetcher(1, nil, &calls), DefaultConfig())

	pages, err := bf.FetchAllPages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int][]byte{1: []byte("page-1")}, pages)
	assert.EqualValues(t, 1, calls)
}

func TestFetchAllPages_EmptyListing(t *testing.T) {
	var calls int32
	bf := NewBatchFetcher(pagesFetcher(0, nil, &calls), DefaultConfig())

	pages, err := bf.FetchAllPages(context.Background())
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.EqualValues(t, 1, calls)
}

func TestFetchAllPages_ManyPages(t *testing.T) {
	var calls int32
	bf := NewBatchFetcher(pagesFetcher(7, nil, &calls), Config{MaxConcurrency: 3, Timeout: time.Second})

	pages, err := bf.FetchAllPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 7)
	for n := 1; n <= 7; n++ {
		assert.Equal(t, fmt.Sprintf("page-%d", n), string(pages[n]))
	}
	assert.EqualValues(t, 7, calls)
}

func TestFetchAllPages_FirstPageFails(t *testing.T) {
	var calls int32
	boom := errors.New("connection refused")
	bf := NewBatchFetcher(pagesFetcher(3, map[int]error{1: boom}, &calls), DefaultConfig())

	pages, err := bf.FetchAllPages(context.Background())
	assert.Nil(t, pages)
	assert.ErrorIs(t, err, boom)
}

func TestFetchAllPages_WorkerFailureReturnsPartial(t *testing.T) {
	var calls int32
	boom := errors.New("status 500")
	bf := NewBatchFetcher(pagesFetcher(4, map[int]error{3: boom}, &calls), Config{MaxConcurrency: 1, Timeout: time.Second})

	pages, err := bf.FetchAllPages(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page 3")
	assert.Contains(t, pages, 1)
	assert.Contains(t, pages, 2)
	assert.NotContains(t, pages, 3)
}
