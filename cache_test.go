package advisor

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCache is a minimal in-process Cache used by the tests. TTL is
// ignored; entries live until invalidated.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	return nil
}

func (c *memCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string][]byte)
	return nil
}

func TestFetchCaching(t *testing.T) {
	cache := newMemCache()
	e, mock := newMockEngine(t, WithCache(cache, time.Minute))
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT * FROM sections t WHERE t.id = ? LIMIT 1")

	// One database round trip serves both fetches.
	mock.ExpectQuery(query).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow(1, "CS101"))

	first, err := e.FetchOne(ctx, typeSection, "id", int64(1))
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := e.FetchOne(ctx, typeSection, "id", int64(1))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.(*Section).Code, second.(*Section).Code)
	assert.NotSame(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteInvalidatesCache(t *testing.T) {
	cache := newMemCache()
	e, mock := newMockEngine(t, WithCache(cache, time.Minute))
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT * FROM sections t WHERE t.id = ? LIMIT 1")
	rows := func(code string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "code"}).AddRow(1, code)
	}

	mock.ExpectQuery(query).WithArgs(int64(1)).WillReturnRows(rows("CS101"))
	_, err := e.FetchOne(ctx, typeSection, "id", int64(1))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sections").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
	require.NoError(t, e.Upsert(ctx, &Section{ID: 1, Code: "CS102"}))

	// The upsert dropped the sections prefix, so this fetch goes back to
	// the database.
	mock.ExpectQuery(query).WithArgs(int64(1)).WillReturnRows(rows("CS102"))
	got, err := e.FetchOne(ctx, typeSection, "id", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "CS102", got.(*Section).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheDecodeFailureFallsThrough(t *testing.T) {
	cache := newMemCache()
	e, mock := newMockEngine(t, WithCache(cache, time.Minute))
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT * FROM sections t WHERE t.id = ? LIMIT 1")

	require.NoError(t, cache.Set(ctx, fetchKey("sections", "one", "id", int64(1)), []byte("not msgpack"), 0))
	mock.ExpectQuery(query).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow(1, "CS101"))

	got, err := e.FetchOne(ctx, typeSection, "id", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "CS101", got.(*Section).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchKey(t *testing.T) {
	assert.Equal(t, "sections:one:id:7", fetchKey("sections", "one", "id", int64(7)))
	assert.True(t, strings.HasPrefix(fetchKey("sections", "many", "code", "CS101"), "sections:"))
}
