package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdempotencyTTL = 24 * time.Hour

func createdHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/payments", nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotency_FirstRequestStoresResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cacheKey := idempotencyCacheKey("/api/v1/payroll/payments", anonymousIdempotencyScope, "abc")
	payload, _ := json.Marshal(idempotentResponse{Status: http.StatusCreated, Body: `{"ok":true}`})

	mock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectSetNX(cacheKey+":lock", "locked", idempotencyLockTTL).SetVal(true)
	mock.ExpectSet(cacheKey, string(payload), testIdempotencyTTL).SetVal("OK")
	mock.ExpectDel(cacheKey + ":lock").SetVal(1)

	calls := 0
	rec := httptest.NewRecorder()
	Idempotency(rdb, testIdempotencyTTL)(createdHandler(&calls)).ServeHTTP(rec, postWithKey("abc"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.Header().Get(IdempotentReplayedHeader))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cacheKey := idempotencyCacheKey("/api/v1/payroll/payments", anonymousIdempotencyScope, "abc")
	payload, _ := json.Marshal(idempotentResponse{Status: http.StatusCreated, Body: `{"ok":true}`})

	mock.ExpectGet(cacheKey).SetVal(string(payload))

	calls := 0
	rec := httptest.NewRecorder()
	Idempotency(rdb, testIdempotencyTTL)(createdHandler(&calls)).ServeHTTP(rec, postWithKey("abc"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, calls)
	assert.Equal(t, "true", rec.Header().Get(IdempotentReplayedHeader))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_InFlightRequestConflicts(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cacheKey := idempotencyCacheKey("/api/v1/payroll/payments", anonymousIdempotencyScope, "abc")

	mock.ExpectGet(cacheKey).RedisNil()
	mock.ExpectSetNX(cacheKey+":lock", "locked", idempotencyLockTTL).SetVal(false)

	calls := 0
	rec := httptest.NewRecorder()
	Idempotency(rdb, testIdempotencyTTL)(createdHandler(&calls)).ServeHTTP(rec, postWithKey("abc"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, calls)
	assert.Contains(t, rec.Body.String(), "REQUEST_IN_PROGRESS")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_FailsOpenWhenRedisDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cacheKey := idempotencyCacheKey("/api/v1/payroll/payments", anonymousIdempotencyScope, "abc")

	mock.ExpectGet(cacheKey).SetErr(errors.New("connection refused"))

	calls := 0
	rec := httptest.NewRecorder()
	Idempotency(rdb, testIdempotencyTTL)(createdHandler(&calls)).ServeHTTP(rec, postWithKey("abc"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_IgnoresRequestsWithoutKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	calls := 0
	rec := httptest.NewRecorder()
	Idempotency(rdb, testIdempotencyTTL)(createdHandler(&calls)).ServeHTTP(rec, postWithKey(""))

	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
