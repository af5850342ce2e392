package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tickatch/payment-service/common/retry"
)

// Notifier 예매 서비스 알림 인터페이스
//
// 결제 상태 변경을 예매 서비스에 전달한다. 결제의 정합성과는
// 무관한 best-effort 호출이다.
type Notifier interface {
	ApplyResult(ctx context.Context, status string, reservationIDs []string) error
	ChangeStatus(ctx context.Context, reservationIDs []string) error
}

// HTTPNotifier 예매 서비스 HTTP 클라이언트
type HTTPNotifier struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *zap.Logger
}

// NewHTTPNotifier 예매 서비스 클라이언트 생성
func NewHTTPNotifier(baseURL string, timeout time.Duration, retryCfg retry.Config, logger *zap.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		logger:     logger,
	}
}

type applyResultRequest struct {
	Status         string   `json:"status"`
	ReservationIDs []string `json:"reservationIds"`
}

type changeStatusRequest struct {
	ReservationIDs []string `json:"reservationIds"`
}

// ApplyResult 결제 결과 전달 (SUCCESS / FAIL / CANCEL)
func (n *HTTPNotifier) ApplyResult(ctx context.Context, status string, reservationIDs []string) error {
	return n.patch(ctx, "/api/v1/reservations/payment-result", applyResultRequest{
		Status:         status,
		ReservationIDs: reservationIDs,
	})
}

// ChangeStatus 결제 생성 시 예매 상태 변경 요청
func (n *HTTPNotifier) ChangeStatus(ctx context.Context, reservationIDs []string) error {
	return n.patch(ctx, "/api/v1/reservations/pending-payment", changeStatusRequest{
		ReservationIDs: reservationIDs,
	})
}

func (n *HTTPNotifier) patch(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return retry.Do(ctx, n.retryCfg, n.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, n.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("reservation service returned status %d", resp.StatusCode)
		}
		return nil
	})
}
