package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType 이벤트 타입 정의
type EventType string

const (
	// Payment Events
	EventPaymentLog EventType = "payment.log.v1"
)

// PaymentActionType 결제 로그 액션 타입
type PaymentActionType string

const (
	PaymentActionCreate      PaymentActionType = "CREATE"
	PaymentActionConfirm     PaymentActionType = "CONFIRM"
	PaymentActionCancel      PaymentActionType = "CANCEL"
	PaymentActionConfirmFail PaymentActionType = "CONFIRM_FAIL"
	PaymentActionRefund      PaymentActionType = "REFUND"
	PaymentActionRefundFail  PaymentActionType = "REFUND_FAIL"
)

// BaseEvent 모든 이벤트의 기본 구조
type BaseEvent struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	SchemaVersion int       `json:"schemaVersion"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// PaymentLogEvent 결제 감사 로그 이벤트
type PaymentLogEvent struct {
	BaseEvent
	PaymentID   uuid.UUID         `json:"paymentId"`
	Method      string            `json:"method"`
	RetryCount  int               `json:"retryCount"`
	ActionType  PaymentActionType `json:"actionType"`
	ActorType   string            `json:"actorType"`
	ActorUserID *uuid.UUID        `json:"actorUserId,omitempty"`
}
