package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tickatch/payment-service/common/errors"
)

// Payment 결제 애그리거트
//
// 상태 전이는 아래 메서드를 통해서만 일어나고, 각 메서드는
// 검증 후 변경(validate-then-mutate)으로 상태를 원자적으로 바꾼다.
// 허용되지 않은 전이는 INVALID_TRANSITION 에러를 반환하고 상태를
// 그대로 둔다.
type Payment struct {
	ID           uuid.UUID
	OrderID      uuid.UUID // 게이트웨이와 공유하는 식별자
	Status       PaymentStatus
	TotalPrice   int64
	Method       PaymentMethod
	RetryCount   int
	CancelReason RefundReason
	ApprovedAt   *time.Time
	CanceledAt   *time.Time
	RefundedAt   *time.Time
	Detail       *PaymentDetail
	Links        []*ReservationLink
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPayment 결제 생성
//
// 총 금액은 예매 항목 금액의 합으로 계산하고 이후 변경되지 않는다.
func NewPayment(infos []ReservationInfo, method PaymentMethod) (*Payment, error) {
	if len(infos) == 0 {
		return nil, errors.New(errors.ErrCodeNoReservationLink, "payment requires at least one reservation")
	}
	if method == "" {
		return nil, errors.New(errors.ErrCodeInvalidPaymentMethod, "payment method is required")
	}

	var totalPrice int64
	links := make([]*ReservationLink, 0, len(infos))
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if _, ok := seen[info.ReservationID]; ok {
			return nil, errors.New(errors.ErrCodeDuplicateReservationID,
				fmt.Sprintf("duplicate reservation id: %s", info.ReservationID))
		}
		seen[info.ReservationID] = struct{}{}

		totalPrice += info.Price
		links = append(links, &ReservationLink{
			ReservationID: info.ReservationID,
			Amount:        info.Price,
			Status:        LinkStatusPending,
		})
	}

	if totalPrice <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidPaymentPrice,
			fmt.Sprintf("total price must be positive: %d", totalPrice))
	}

	now := time.Now()
	return &Payment{
		ID:         uuid.New(),
		OrderID:    uuid.New(),
		Status:     PaymentStatusRequested,
		TotalPrice: totalPrice,
		Method:     method,
		Links:      links,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MarkProcessing 결제 처리중으로 상태 변경
// 이전 상태: 결제 요청
func (p *Payment) MarkProcessing() error {
	if p.Status != PaymentStatusRequested {
		return p.invalidTransition("markProcessing")
	}
	p.Status = PaymentStatusProcessing
	p.touch()
	return nil
}

// MarkSuccess 결제 성공으로 상태 변경
// 이전 상태: 결제 처리중. 승인 시각을 기록하고 모든 예매 링크를 확정한다.
func (p *Payment) MarkSuccess() error {
	if p.Status != PaymentStatusProcessing {
		return p.invalidTransition("markSuccess")
	}
	p.Status = PaymentStatusSuccess
	now := time.Now()
	p.ApprovedAt = &now
	p.ConfirmReservationLinks()
	p.touch()
	return nil
}

// MarkFail 결제 실패로 상태 변경
// 이전 상태: 결제 처리중. 재시도 횟수를 1 증가시킨다.
func (p *Payment) MarkFail() error {
	if p.Status != PaymentStatusProcessing {
		return p.invalidTransition("markFail")
	}
	p.Status = PaymentStatusFail
	p.RetryCount++
	p.touch()
	return nil
}

// Cancel 결제 취소로 상태 변경
// 이전 상태: 결제 성공. 사유와 취소 시각을 기록한다.
func (p *Payment) Cancel(reason RefundReason) error {
	if p.Status != PaymentStatusSuccess {
		return p.invalidTransition("cancel")
	}
	p.Status = PaymentStatusCancel
	p.CancelReason = reason
	now := time.Now()
	p.CanceledAt = &now
	p.touch()
	return nil
}

// Refund 환불로 상태 변경
// 이전 상태: 결제 성공. 환불 시각을 기록한다.
func (p *Payment) Refund(reason RefundReason) error {
	if p.Status != PaymentStatusSuccess {
		return p.invalidTransition("refund")
	}
	p.Status = PaymentStatusRefund
	now := time.Now()
	p.RefundedAt = &now
	p.touch()
	return nil
}

// RefundFail 환불 실패로 상태 변경
// 이전 상태: 결제 성공
func (p *Payment) RefundFail(reason RefundReason) error {
	if p.Status != PaymentStatusSuccess {
		return p.invalidTransition("refundFail")
	}
	p.Status = PaymentStatusRefundFail
	p.touch()
	return nil
}

// Expire 결제 시간 만료
// 이전 상태: 결제 요청, 결제 처리중, 결제 실패
func (p *Payment) Expire() error {
	if p.Status != PaymentStatusRequested &&
		p.Status != PaymentStatusProcessing &&
		p.Status != PaymentStatusFail {
		return p.invalidTransition("expire")
	}
	p.Status = PaymentStatusExpired
	p.touch()
	return nil
}

// ConfirmReservationLinks 모든 예매 링크 확정
func (p *Payment) ConfirmReservationLinks() {
	for _, link := range p.Links {
		link.Confirm()
	}
}

// CanFail 실패 콜백을 처리할 수 있는 상태인지 확인
func (p *Payment) CanFail() bool {
	return p.Status.CanFail()
}

// AssignDetail 결제 세부 정보 할당 (승인 성공 시 1회)
func (p *Payment) AssignDetail(detail *PaymentDetail) {
	p.Detail = detail
}

// PaymentKey 세부 정보의 paymentKey 조회 (없으면 빈 문자열)
func (p *Payment) PaymentKey() string {
	if p.Detail == nil {
		return ""
	}
	return p.Detail.PaymentKey
}

// ReservationIDs 연관 예매 id 목록 조회
func (p *Payment) ReservationIDs() []string {
	ids := make([]string, 0, len(p.Links))
	for _, link := range p.Links {
		ids = append(ids, link.ReservationID)
	}
	return ids
}

// OwnsAllReservations 요청된 예매 id가 전부 이 결제에 속하는지 확인
func (p *Payment) OwnsAllReservations(reservationIDs []string) bool {
	owned := make(map[string]struct{}, len(p.Links))
	for _, link := range p.Links {
		owned[link.ReservationID] = struct{}{}
	}
	for _, id := range reservationIDs {
		if _, ok := owned[id]; !ok {
			return false
		}
	}
	return true
}

func (p *Payment) invalidTransition(operation string) error {
	return errors.New(errors.ErrCodeInvalidTransition,
		fmt.Sprintf("cannot %s payment in status %s", operation, p.Status))
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now()
}
