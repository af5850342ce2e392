package domain

import (
	"github.com/google/uuid"

	"github.com/tickatch/payment-service/common/errors"
)

// PaymentDetail 게이트웨이 승인 세부 정보
//
// 결제 수단별 닫힌 변형 집합이다. 공통 필드는 paymentKey 하나이고,
// TOSS_CARD 변형만 billingKey를 추가로 가진다.
type PaymentDetail struct {
	ID         uuid.UUID
	Method     PaymentMethod
	PaymentKey string
	BillingKey string // TOSS_CARD 전용
}

// NewTossCardDetail 토스 카드 결제 세부 정보 생성
func NewTossCardDetail() *PaymentDetail {
	return &PaymentDetail{
		ID:     uuid.New(),
		Method: PaymentMethodTossCard,
	}
}

// SetPaymentKey paymentKey 할당 (단 한 번만 가능)
func (d *PaymentDetail) SetPaymentKey(paymentKey string) error {
	if d.PaymentKey != "" {
		return errors.New(errors.ErrCodePaymentKeyGenerationFailed, "payment key already set")
	}
	if paymentKey == "" {
		return errors.New(errors.ErrCodePaymentKeyNotFound, "payment key is empty")
	}
	d.PaymentKey = paymentKey
	return nil
}
