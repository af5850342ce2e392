package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickatch/payment-service/common/errors"
)

// 토스 응답의 승인/취소 완료 상태값
const (
	statusDone     = "DONE"
	statusCanceled = "CANCELED"
)

// ConfirmResult 승인 요청 결과
type ConfirmResult struct {
	Approved  bool
	RawStatus string
}

// CancelResult 취소/환불 요청 결과
type CancelResult struct {
	Canceled     bool
	ErrorMessage string
}

// Gateway 외부 결제 게이트웨이 인터페이스
type Gateway interface {
	RequestPaymentKey(ctx context.Context, orderID uuid.UUID, orderName string, amount int64) (string, error)
	Confirm(ctx context.Context, paymentKey string, orderID uuid.UUID, amount int64) (*ConfirmResult, error)
	Cancel(ctx context.Context, paymentKey string, reason string) (*CancelResult, error)
}

// TossClient 토스페이먼츠 HTTP 클라이언트
type TossClient struct {
	baseURL     string
	callbackURL string
	secretKey   string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewTossClient 토스 클라이언트 생성
func NewTossClient(baseURL, callbackURL, secretKey string, timeout time.Duration, logger *zap.Logger) *TossClient {
	return &TossClient{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		secretKey:   secretKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type createPaymentRequest struct {
	Method     string `json:"method"`
	Amount     int64  `json:"amount"`
	OrderID    string `json:"orderId"`
	OrderName  string `json:"orderName"`
	SuccessURL string `json:"successUrl"`
	FailURL    string `json:"failUrl"`
}

type tossPaymentResponse struct {
	PaymentKey string `json:"paymentKey"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Checkout   struct {
		URL string `json:"url"`
	} `json:"checkout"`
}

// RequestPaymentKey 결제 키 발급
func (c *TossClient) RequestPaymentKey(ctx context.Context, orderID uuid.UUID, orderName string, amount int64) (string, error) {
	body := createPaymentRequest{
		Method:     "CARD",
		Amount:     amount,
		OrderID:    orderID.String(),
		OrderName:  orderName,
		SuccessURL: c.callbackURL + "/api/v1/payments/resp/success",
		FailURL:    c.callbackURL + "/api/v1/payments/resp/fail",
	}

	resp, status, err := c.post(ctx, c.baseURL+"/v1/payments", body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGatewayError, "payment key request failed", err)
	}

	if status != http.StatusOK {
		c.logger.Error("payment key request rejected",
			zap.Int("status", status),
			zap.String("gatewayStatus", resp.Status),
			zap.String("message", resp.Message))
		return "", errors.New(errors.ErrCodeGatewayError,
			fmt.Sprintf("payment key request rejected: status=%d", status))
	}

	if resp.PaymentKey == "" {
		c.logger.Error("payment key missing in response", zap.String("orderId", orderID.String()))
		return "", errors.New(errors.ErrCodeGatewayError, "payment key missing in response")
	}

	c.logger.Info("payment key issued",
		zap.String("orderId", orderID.String()),
		zap.String("checkoutUrl", resp.Checkout.URL))
	return resp.PaymentKey, nil
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// Confirm 결제 승인 요청
//
// 전송 오류는 에러로 반환하지만, 게이트웨이가 거절한 경우는
// Approved=false 결과로 반환한다. 호출자는 둘 다 비승인으로 다룬다.
func (c *TossClient) Confirm(ctx context.Context, paymentKey string, orderID uuid.UUID, amount int64) (*ConfirmResult, error) {
	body := confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID.String(),
		Amount:     amount,
	}

	resp, status, err := c.post(ctx, c.baseURL+"/v1/payments/confirm", body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayError, "payment confirm request failed", err)
	}

	c.logger.Info("payment confirm response",
		zap.Int("status", status),
		zap.String("gatewayStatus", resp.Status),
		zap.String("orderId", orderID.String()))

	return &ConfirmResult{
		Approved:  status == http.StatusOK && resp.Status == statusDone,
		RawStatus: resp.Status,
	}, nil
}

type cancelRequest struct {
	CancelReason string `json:"cancelReason"`
}

// Cancel 결제 취소/환불 요청
func (c *TossClient) Cancel(ctx context.Context, paymentKey string, reason string) (*CancelResult, error) {
	body := cancelRequest{CancelReason: reason}

	resp, status, err := c.post(ctx, c.baseURL+"/v1/payments/"+paymentKey+"/cancel", body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayError, "payment cancel request failed", err)
	}

	errorMessage := ""
	canceled := status == http.StatusOK && resp.Status == statusCanceled
	if !canceled {
		errorMessage = resp.Message
		if errorMessage == "" {
			errorMessage = "refund failed"
		}
	}

	return &CancelResult{
		Canceled:     canceled,
		ErrorMessage: errorMessage,
	}, nil
}

func (c *TossClient) post(ctx context.Context, url string, body interface{}) (*tossPaymentResponse, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.encodedAuth())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	parsed := &tossPaymentResponse{}
	if err := json.NewDecoder(resp.Body).Decode(parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return parsed, resp.StatusCode, nil
}

func (c *TossClient) encodedAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
}
