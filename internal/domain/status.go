package domain

// PaymentStatus 결제 상태
type PaymentStatus string

const (
	PaymentStatusRequested  PaymentStatus = "REQUESTED"   // 결제 요청(아직 승인 전)
	PaymentStatusProcessing PaymentStatus = "PROCESSING"  // 결제 처리 중
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"     // 결제 성공
	PaymentStatusFail       PaymentStatus = "FAIL"        // 결제 실패
	PaymentStatusCancel     PaymentStatus = "CANCEL"      // 결제 취소
	PaymentStatusRefund     PaymentStatus = "REFUND"      // 환불 성공
	PaymentStatusRefundFail PaymentStatus = "REFUND_FAIL" // 환불 실패
	PaymentStatusExpired    PaymentStatus = "EXPIRED"     // 결제 시간 만료
)

// CanFail 실패 처리 가능한 상태인지 확인 (늦게 도착한 콜백 무시용)
func (s PaymentStatus) CanFail() bool {
	return s == PaymentStatusRequested || s == PaymentStatusProcessing
}

// PaymentMethod 결제 수단
type PaymentMethod string

const (
	PaymentMethodTossCard PaymentMethod = "TOSS_CARD"
)

// RefundReason 환불/취소 사유
type RefundReason string

const (
	RefundReasonCustomerCancel RefundReason = "CUSTOMER_CANCEL" // 사용자 예매 취소로 인한 환불
	RefundReasonProductCancel  RefundReason = "PRODUCT_CANCEL"  // 상품 취소로 인한 환불
)

// ParseRefundReason 문자열을 환불 사유로 변환
func ParseRefundReason(s string) (RefundReason, bool) {
	switch RefundReason(s) {
	case RefundReasonCustomerCancel:
		return RefundReasonCustomerCancel, true
	case RefundReasonProductCancel:
		return RefundReasonProductCancel, true
	default:
		return "", false
	}
}

// LinkStatus 예매-결제 링크 상태
type LinkStatus string

const (
	LinkStatusPending   LinkStatus = "PENDING"
	LinkStatusConfirmed LinkStatus = "CONFIRMED"
)
