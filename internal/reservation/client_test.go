package reservation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickatch/payment-service/common/logger"
	"github.com/tickatch/payment-service/common/retry"
)

func fastRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:        3,
		InitialInterval:    time.Millisecond,
		MaxInterval:        5 * time.Millisecond,
		BackoffCoefficient: 2.0,
	}
}

func newTestNotifier(serverURL string) *HTTPNotifier {
	return NewHTTPNotifier(serverURL, 2*time.Second, fastRetryConfig(), logger.NewTestLogger())
}

func TestApplyResult(t *testing.T) {
	t.Run("결제 결과를 PATCH로 전달한다", func(t *testing.T) {
		var captured map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/api/v1/reservations/payment-result", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).ApplyResult(context.Background(), "SUCCESS", []string{"r1", "r2"})
		require.NoError(t, err)

		assert.Equal(t, "SUCCESS", captured["status"])
		assert.Len(t, captured["reservationIds"], 2)
	})

	t.Run("일시 오류는 재시도 후 성공한다", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).ApplyResult(context.Background(), "FAIL", []string{"r1"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("재시도를 소진하면 에러를 반환한다", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).ApplyResult(context.Background(), "SUCCESS", []string{"r1"})
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

func TestChangeStatus(t *testing.T) {
	t.Run("예매 상태 변경을 요청한다", func(t *testing.T) {
		var captured map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/api/v1/reservations/pending-payment", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		err := newTestNotifier(server.URL).ChangeStatus(context.Background(), []string{"r1"})
		require.NoError(t, err)
		assert.Len(t, captured["reservationIds"], 1)
	})
}
