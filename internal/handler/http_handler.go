package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickatch/payment-service/common/errors"
	"github.com/tickatch/payment-service/common/idempotency"
	"github.com/tickatch/payment-service/internal/domain"
	"github.com/tickatch/payment-service/internal/service"
)

// 게이트웨이 콜백 멱등 키 보관 기간
const callbackKeyTTL = 24 * time.Hour

// HTTPHandler HTTP 핸들러
type HTTPHandler struct {
	paymentService service.PaymentService
	idemStore      idempotency.Store
	logger         *zap.Logger
}

// NewHTTPHandler HTTP 핸들러 생성
func NewHTTPHandler(paymentService service.PaymentService, idemStore idempotency.Store, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		paymentService: paymentService,
		idemStore:      idemStore,
		logger:         logger,
	}
}

// Register 라우트 등록
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/v1/payments", h.CreatePayment)
	mux.HandleFunc("/api/v1/payments/resp/success", h.ConfirmPayment)
	mux.HandleFunc("/api/v1/payments/resp/fail", h.FailPayment)
	mux.HandleFunc("/api/v1/payments/refund", h.RefundPayment)
}

// PaymentItemRequest 결제 항목
type PaymentItemRequest struct {
	ReservationID string `json:"reservationId"`
	Price         int64  `json:"price"`
}

// CreatePaymentRequest 결제 생성 요청
type CreatePaymentRequest struct {
	OrderName string               `json:"orderName"`
	Items     []PaymentItemRequest `json:"items"`
}

// CreatePaymentResponse 결제 생성 응답
type CreatePaymentResponse struct {
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	PaymentKey string `json:"paymentKey"`
}

// RefundPaymentRequest 환불 요청
type RefundPaymentRequest struct {
	Reason         string   `json:"reason"`
	ReservationIDs []string `json:"reservationIds"`
}

// ErrorResponse 에러 응답
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreatePayment 결제 생성 API
func (h *HTTPHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	items := make([]service.PaymentItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.PaymentItem{
			ReservationID: item.ReservationID,
			Price:         item.Price,
		})
	}

	cmd := service.CreatePaymentCommand{
		OrderName: req.OrderName,
		Items:     items,
		Actor:     actorFromRequest(r),
	}

	result, err := h.paymentService.CreatePayment(r.Context(), cmd)
	if err != nil {
		h.logger.Error("failed to create payment", zap.Error(err))
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, CreatePaymentResponse{
		PaymentID:  result.PaymentID.String(),
		OrderID:    result.OrderID.String(),
		Status:     string(result.Status),
		PaymentKey: result.PaymentKey,
	})
}

// ConfirmPayment 결제 성공 콜백 API
func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	query := r.URL.Query()
	paymentKey := query.Get("paymentKey")
	orderIDStr := query.Get("orderId")
	amountStr := query.Get("amount")

	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid orderId", "")
		return
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil || paymentKey == "" {
		h.respondError(w, http.StatusBadRequest, "invalid callback parameters", "")
		return
	}

	// 게이트웨이 콜백은 중복 전송될 수 있다: 키를 먼저 선점하고
	// 처리에 실패하면 해제해 재시도를 허용한다
	idemKey := "confirm:" + orderIDStr + ":" + paymentKey
	if !h.reserveCallback(r.Context(), idemKey) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "already processed"})
		return
	}

	cmd := service.ConfirmPaymentCommand{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
		Actor:      actorFromRequest(r),
	}

	if err := h.paymentService.ConfirmPayment(r.Context(), cmd); err != nil {
		h.logger.Error("failed to confirm payment",
			zap.String("orderId", orderIDStr),
			zap.Error(err))
		h.releaseCallback(r.Context(), idemKey)
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// FailPayment 결제 실패 콜백 API
func (h *HTTPHandler) FailPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	message := query.Get("message")
	orderIDStr := query.Get("orderId")

	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid orderId", "")
		return
	}

	idemKey := "fail:" + orderIDStr + ":" + code
	if !h.reserveCallback(r.Context(), idemKey) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "already processed"})
		return
	}

	cmd := service.FailPaymentCommand{
		OrderID: orderID,
		Code:    code,
		Message: message,
		Actor:   actorFromRequest(r),
	}

	if err := h.paymentService.FailPayment(r.Context(), cmd); err != nil {
		h.logger.Error("failed to process fail callback",
			zap.String("orderId", orderIDStr),
			zap.Error(err))
		h.releaseCallback(r.Context(), idemKey)
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "failed"})
}

// RefundPayment 환불 API
func (h *HTTPHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	reason, ok := domain.ParseRefundReason(req.Reason)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid refund reason", "")
		return
	}
	if len(req.ReservationIDs) == 0 {
		h.respondError(w, http.StatusBadRequest, "reservationIds required", "")
		return
	}

	cmd := service.RefundPaymentCommand{
		Reason:         reason,
		ReservationIDs: req.ReservationIDs,
		Actor:          actorFromRequest(r),
	}

	if err := h.paymentService.RefundPayment(r.Context(), cmd); err != nil {
		h.logger.Error("failed to refund payment", zap.Error(err))
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

// HealthCheck 헬스 체크 API
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// actorFromRequest 요청 헤더에서 행위 주체를 읽는다
func actorFromRequest(r *http.Request) domain.Actor {
	actorType := r.Header.Get("X-Actor-Type")
	if actorType == "" {
		actorType = "USER"
	}
	actor := domain.Actor{Type: actorType}
	if raw := r.Header.Get("X-User-Id"); raw != "" {
		if userID, err := uuid.Parse(raw); err == nil {
			actor.UserID = &userID
		}
	}
	return actor
}

// reserveCallback 콜백 멱등 키 선점. 저장소 장애 시에는 통과시킨다:
// 서비스 계층의 상태 가드가 최종 방어선이다.
func (h *HTTPHandler) reserveCallback(ctx context.Context, key string) bool {
	reserved, err := h.idemStore.Reserve(ctx, key, callbackKeyTTL)
	if err != nil {
		h.logger.Warn("idempotency reservation failed", zap.Error(err))
		return true
	}
	return reserved
}

func (h *HTTPHandler) releaseCallback(ctx context.Context, key string) {
	if err := h.idemStore.Release(ctx, key); err != nil {
		h.logger.Warn("failed to release idempotency key", zap.Error(err))
	}
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string, code string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *HTTPHandler) respondDomainError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	h.respondError(w, statusOf(code), err.Error(), string(code))
}

func statusOf(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodePaymentNotFound, errors.ErrCodePaymentKeyNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNoReservationLink,
		errors.ErrCodeInvalidPaymentPrice,
		errors.ErrCodeInvalidPaymentMethod,
		errors.ErrCodeDuplicateReservationID,
		errors.ErrCodeInvalidReservationForPayment:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidTransition,
		errors.ErrCodeMultiplePaymentFound:
		return http.StatusConflict
	case errors.ErrCodeGatewayError,
		errors.ErrCodePaymentKeyGenerationFailed,
		errors.ErrCodePaymentConfirmFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
