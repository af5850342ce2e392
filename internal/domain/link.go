package domain

// ReservationLink 결제에 속한 예매 항목
//
// Payment 애그리거트만 링크를 생성하고 변경한다.
type ReservationLink struct {
	ID            int64
	ReservationID string
	Amount        int64
	Status        LinkStatus
}

// Confirm 링크 확정
func (l *ReservationLink) Confirm() {
	l.Status = LinkStatusConfirmed
}

// ReservationInfo 결제 생성 입력 (예매 id와 금액)
type ReservationInfo struct {
	ReservationID string
	Price         int64
}
