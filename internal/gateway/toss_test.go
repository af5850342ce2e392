package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickatch/payment-service/common/logger"
)

func newTestClient(serverURL string) *TossClient {
	return NewTossClient(serverURL, "http://localhost:8003", "test_sk", 5*time.Second, logger.NewTestLogger())
}

func TestRequestPaymentKey(t *testing.T) {
	t.Run("키와 콜백 주소를 담아 요청하고 키를 반환한다", func(t *testing.T) {
		var captured map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/payments", r.URL.Path)
			require.NotEmpty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"paymentKey": "pk_issued",
				"status":     "READY",
			})
		}))
		defer server.Close()

		orderID := uuid.New()
		key, err := newTestClient(server.URL).RequestPaymentKey(context.Background(), orderID, "concert", 5000)
		require.NoError(t, err)

		assert.Equal(t, "pk_issued", key)
		assert.Equal(t, orderID.String(), captured["orderId"])
		assert.Equal(t, float64(5000), captured["amount"])
		assert.Equal(t, "http://localhost:8003/api/v1/payments/resp/success", captured["successUrl"])
		assert.Equal(t, "http://localhost:8003/api/v1/payments/resp/fail", captured["failUrl"])
	})

	t.Run("비정상 응답 코드면 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "server error"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).RequestPaymentKey(context.Background(), uuid.New(), "concert", 5000)
		assert.Error(t, err)
	})

	t.Run("응답에 키가 없으면 에러를 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "READY"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).RequestPaymentKey(context.Background(), uuid.New(), "concert", 5000)
		assert.Error(t, err)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("DONE 응답이면 승인이다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/payments/confirm", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"status": "DONE"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Confirm(context.Background(), "pk_test", uuid.New(), 5000)
		require.NoError(t, err)
		assert.True(t, result.Approved)
		assert.Equal(t, "DONE", result.RawStatus)
	})

	t.Run("DONE이 아니면 비승인이다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "ABORTED"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Confirm(context.Background(), "pk_test", uuid.New(), 5000)
		require.NoError(t, err)
		assert.False(t, result.Approved)
		assert.Equal(t, "ABORTED", result.RawStatus)
	})

	t.Run("200이어도 상태가 다르면 비승인이다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"status": "DONE"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Confirm(context.Background(), "pk_test", uuid.New(), 5000)
		require.NoError(t, err)
		assert.False(t, result.Approved)
	})

	t.Run("전송 오류는 에러로 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // 즉시 닫아 연결 실패 유도

		_, err := newTestClient(server.URL).Confirm(context.Background(), "pk_test", uuid.New(), 5000)
		assert.Error(t, err)
	})
}

func TestCancel(t *testing.T) {
	t.Run("CANCELED 응답이면 취소 완료다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/payments/pk_test/cancel", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "CUSTOMER_CANCEL", body["cancelReason"])
			json.NewEncoder(w).Encode(map[string]string{"status": "CANCELED"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Cancel(context.Background(), "pk_test", "CUSTOMER_CANCEL")
		require.NoError(t, err)
		assert.True(t, result.Canceled)
		assert.Empty(t, result.ErrorMessage)
	})

	t.Run("거절되면 메시지를 담아 반환한다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "already canceled"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Cancel(context.Background(), "pk_test", "CUSTOMER_CANCEL")
		require.NoError(t, err)
		assert.False(t, result.Canceled)
		assert.Equal(t, "already canceled", result.ErrorMessage)
	})

	t.Run("메시지가 없으면 기본 문구를 채운다", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "ABORTED"})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL).Cancel(context.Background(), "pk_test", "CUSTOMER_CANCEL")
		require.NoError(t, err)
		assert.False(t, result.Canceled)
		assert.Equal(t, "refund failed", result.ErrorMessage)
	})
}
