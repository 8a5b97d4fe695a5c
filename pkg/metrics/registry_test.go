package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryLifecycle(t *testing.T) {
	reset()
	t.Cleanup(reset)

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reg := InitRegistry()
	assert.Same(t, reg, InitRegistry())
	assert.True(t, IsEnabled())

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type countingS3 struct{ ops, bytes int }

func (c *countingS3) ObserveOperation(string, time.Duration, error) { c.ops++ }
func (c *countingS3) RecordBytes(_ string, n int64)                 { c.bytes += int(n) }

func TestS3HelpersTolerateNil(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveOperation(nil, "GetObject", time.Millisecond, nil)
		RecordBytes(nil, "GetObject", 10)
	})

	c := &countingS3{}
	ObserveOperation(c, "GetObject", time.Millisecond, nil)
	RecordBytes(c, "GetObject", 10)
	assert.Equal(t, 1, c.ops)
	assert.Equal(t, 10, c.bytes)
}
