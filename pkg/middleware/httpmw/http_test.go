package httpmw

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
	"github.com/hyp3rd/hyperrelay/pkg/consumer"
	"github.com/hyp3rd/hyperrelay/pkg/relay"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	records []AccessRecord
}

func (r *recordingSubmitter) Submit(record AccessRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
}

func (r *recordingSubmitter) all() []AccessRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]AccessRecord(nil), r.records...)
}

func TestContextMiddleware(t *testing.T) {
	middleware := ContextMiddleware(WithIDGenerator(func() string { return "generated" }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ := r.Context().Value(constants.TraceKey{}).(string)
		requestID, _ := r.Context().Value(constants.RequestKey{}).(string)

		assert.Equal(t, "generated", traceID)
		assert.Equal(t, "generated", requestID)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(rr, req)
}

func TestContextMiddlewareHeaders(t *testing.T) {
	middleware := ContextMiddleware(WithGenerateMissingIDs(false))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ := r.Context().Value(constants.TraceKey{}).(string)
		requestID, _ := r.Context().Value(constants.RequestKey{}).(string)

		assert.Equal(t, "trace", traceID)
		assert.Equal(t, "req", requestID)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace")
	req.Header.Set("X-Request-ID", "req")

	handler.ServeHTTP(rr, req)
}

func TestContextMiddlewareWithoutGeneration(t *testing.T) {
	middleware := ContextMiddleware(WithGenerateMissingIDs(false))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, r.Context().Value(constants.TraceKey{}))
		assert.Nil(t, r.Context().Value(constants.RequestKey{}))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestMiddlewareSubmitsAccessRecord(t *testing.T) {
	submitter := &recordingSubmitter{}

	middleware := Middleware(submitter,
		WithTraceHeader("X-Trace"),
		WithRequestHeader("X-Req"),
		WithIDGenerator(func() string { return "generated" }),
	)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders?id=1", nil)
	req.Header.Set("X-Trace", "trace-1")
	req.Header.Set("User-Agent", "relay-test")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	records := submitter.all()
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, http.MethodPost, record.Method)
	assert.Equal(t, "/orders", record.Path)
	assert.Equal(t, http.StatusCreated, record.Status)
	assert.Equal(t, int64(5), record.Bytes)
	assert.Equal(t, "relay-test", record.UserAgent)
	assert.Equal(t, "trace-1", record.TraceID)
	assert.Equal(t, "generated", record.RequestID)
	assert.False(t, record.Time.IsZero())
	assert.GreaterOrEqual(t, record.Duration, time.Duration(0))
}

func TestMiddlewareImplicitStatus(t *testing.T) {
	submitter := &recordingSubmitter{}

	handler := Middleware(submitter)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	records := submitter.all()
	require.Len(t, records, 1)
	assert.Equal(t, http.StatusOK, records[0].Status)
	assert.Zero(t, records[0].Bytes)
	assert.NotEmpty(t, records[0].TraceID)
	assert.NotEmpty(t, records[0].RequestID)
}

type tenantKey struct{}

func TestMiddlewareContextExtractors(t *testing.T) {
	t.Cleanup(hyperrelay.ClearContextExtractors)

	hyperrelay.RegisterContextExtractor(func(ctx context.Context) []hyperrelay.Field {
		return hyperrelay.CorrelationFields(ctx)
	})

	submitter := &recordingSubmitter{}

	tenant := func(ctx context.Context) []hyperrelay.Field {
		if value, ok := ctx.Value(tenantKey{}).(string); ok {
			return []hyperrelay.Field{hyperrelay.Str("tenant", value)}
		}

		return nil
	}

	inner := Middleware(submitter, WithContextExtractors(tenant))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	// Values set by outer middleware are visible to extractors.
	outer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, "acme")))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.RequestHeader, "req-9")

	outer.ServeHTTP(httptest.NewRecorder(), req)

	records := submitter.all()
	require.Len(t, records, 1)
	assert.Equal(t, "acme", records[0].Attributes["tenant"])
	assert.Equal(t, "req-9", records[0].Attributes["request_id"])
	assert.Equal(t, records[0].TraceID, records[0].Attributes["trace_id"])
}

func TestMiddlewareNilSubmitter(t *testing.T) {
	called := false

	handler := Middleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestMiddlewareBehindRelay(t *testing.T) {
	buf := &bytes.Buffer{}

	writer, err := consumer.NewWriter[AccessRecord](buf, nil)
	require.NoError(t, err)

	cfg := hyperrelay.DefaultConfig()
	cfg.Capacity = 16
	cfg.BlockWhenFull = true

	sink, err := relay.New(context.Background(), writer.Handle(), cfg)
	require.NoError(t, err)

	handler := Middleware(sink)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/items", nil))
	}

	require.NoError(t, sink.Close())

	decoder := json.NewDecoder(buf)

	count := 0

	for decoder.More() {
		var record AccessRecord

		require.NoError(t, decoder.Decode(&record))
		assert.Equal(t, http.StatusAccepted, record.Status)
		assert.Equal(t, "/items", record.Path)

		count++
	}

	assert.Equal(t, 3, count)
}
