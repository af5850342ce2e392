package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickatch/payment-service/common/errors"
)

func newTestInfos() []ReservationInfo {
	return []ReservationInfo{
		{ReservationID: "r1", Price: 1000},
		{ReservationID: "r2", Price: 2000},
	}
}

func newProcessingPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(newTestInfos(), PaymentMethodTossCard)
	require.NoError(t, err)
	require.NoError(t, p.MarkProcessing())
	return p
}

func newSuccessPayment(t *testing.T) *Payment {
	t.Helper()
	p := newProcessingPayment(t)
	detail := NewTossCardDetail()
	require.NoError(t, detail.SetPaymentKey("pk_test"))
	p.AssignDetail(detail)
	require.NoError(t, p.MarkSuccess())
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("합계와 링크를 올바르게 초기화한다", func(t *testing.T) {
		p, err := NewPayment(newTestInfos(), PaymentMethodTossCard)
		require.NoError(t, err)

		assert.Equal(t, PaymentStatusRequested, p.Status)
		assert.Equal(t, int64(3000), p.TotalPrice)
		assert.NotEqual(t, p.ID, p.OrderID)
		require.Len(t, p.Links, 2)
		for _, link := range p.Links {
			assert.Equal(t, LinkStatusPending, link.Status)
		}
	})

	t.Run("예매가 없으면 실패한다", func(t *testing.T) {
		_, err := NewPayment(nil, PaymentMethodTossCard)
		assert.True(t, errors.Is(err, errors.ErrCodeNoReservationLink))
	})

	t.Run("결제 수단이 없으면 실패한다", func(t *testing.T) {
		_, err := NewPayment(newTestInfos(), "")
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidPaymentMethod))
	})

	t.Run("예매 id가 중복이면 실패한다", func(t *testing.T) {
		infos := []ReservationInfo{
			{ReservationID: "r1", Price: 1000},
			{ReservationID: "r1", Price: 2000},
		}
		_, err := NewPayment(infos, PaymentMethodTossCard)
		assert.True(t, errors.Is(err, errors.ErrCodeDuplicateReservationID))
	})

	t.Run("합계가 0 이하면 실패한다", func(t *testing.T) {
		infos := []ReservationInfo{
			{ReservationID: "r1", Price: 0},
		}
		_, err := NewPayment(infos, PaymentMethodTossCard)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidPaymentPrice))
	})
}

func TestPaymentTransitions(t *testing.T) {
	t.Run("MarkSuccess는 링크를 함께 확정한다", func(t *testing.T) {
		p := newSuccessPayment(t)

		assert.Equal(t, PaymentStatusSuccess, p.Status)
		require.NotNil(t, p.ApprovedAt)
		for _, link := range p.Links {
			assert.Equal(t, LinkStatusConfirmed, link.Status)
		}
	})

	t.Run("MarkFail은 재시도 횟수를 올린다", func(t *testing.T) {
		p := newProcessingPayment(t)

		require.NoError(t, p.MarkFail())
		assert.Equal(t, PaymentStatusFail, p.Status)
		assert.Equal(t, 1, p.RetryCount)
	})

	t.Run("REQUESTED에서 MarkSuccess는 거부된다", func(t *testing.T) {
		p, err := NewPayment(newTestInfos(), PaymentMethodTossCard)
		require.NoError(t, err)

		err = p.MarkSuccess()
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
		assert.Equal(t, PaymentStatusRequested, p.Status)
		assert.Nil(t, p.ApprovedAt)
	})

	t.Run("SUCCESS에서 Cancel은 사유와 시각을 기록한다", func(t *testing.T) {
		p := newSuccessPayment(t)

		require.NoError(t, p.Cancel(RefundReasonCustomerCancel))
		assert.Equal(t, PaymentStatusCancel, p.Status)
		assert.Equal(t, RefundReasonCustomerCancel, p.CancelReason)
		assert.NotNil(t, p.CanceledAt)
	})

	t.Run("SUCCESS에서 Refund는 환불 시각을 기록한다", func(t *testing.T) {
		p := newSuccessPayment(t)

		require.NoError(t, p.Refund(RefundReasonProductCancel))
		assert.Equal(t, PaymentStatusRefund, p.Status)
		assert.NotNil(t, p.RefundedAt)
	})

	t.Run("REFUND에서 Refund는 다시 거부된다", func(t *testing.T) {
		p := newSuccessPayment(t)
		require.NoError(t, p.Refund(RefundReasonCustomerCancel))

		err := p.Refund(RefundReasonCustomerCancel)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
		assert.Equal(t, PaymentStatusRefund, p.Status)
	})

	t.Run("PROCESSING에서 Cancel은 거부된다", func(t *testing.T) {
		p := newProcessingPayment(t)

		err := p.Cancel(RefundReasonCustomerCancel)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
		assert.Equal(t, PaymentStatusProcessing, p.Status)
	})

	t.Run("Expire는 미완료 상태에서만 허용된다", func(t *testing.T) {
		p := newProcessingPayment(t)
		require.NoError(t, p.Expire())
		assert.Equal(t, PaymentStatusExpired, p.Status)

		done := newSuccessPayment(t)
		err := done.Expire()
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
		assert.Equal(t, PaymentStatusSuccess, done.Status)
	})
}

func TestCanFail(t *testing.T) {
	p, err := NewPayment(newTestInfos(), PaymentMethodTossCard)
	require.NoError(t, err)
	assert.True(t, p.CanFail())

	require.NoError(t, p.MarkProcessing())
	assert.True(t, p.CanFail())

	done := newSuccessPayment(t)
	assert.False(t, done.CanFail())
}

func TestOwnsAllReservations(t *testing.T) {
	p, err := NewPayment(newTestInfos(), PaymentMethodTossCard)
	require.NoError(t, err)

	assert.True(t, p.OwnsAllReservations([]string{"r1", "r2"}))
	assert.True(t, p.OwnsAllReservations([]string{"r1"}))
	assert.False(t, p.OwnsAllReservations([]string{"r1", "r3"}))
}

func TestPaymentDetail(t *testing.T) {
	t.Run("결제 키는 한 번만 설정할 수 있다", func(t *testing.T) {
		detail := NewTossCardDetail()

		require.NoError(t, detail.SetPaymentKey("pk_1"))
		err := detail.SetPaymentKey("pk_2")
		require.Error(t, err)
		assert.Equal(t, "pk_1", detail.PaymentKey)
	})

	t.Run("빈 결제 키는 거부된다", func(t *testing.T) {
		detail := NewTossCardDetail()
		err := detail.SetPaymentKey("")
		assert.True(t, errors.Is(err, errors.ErrCodePaymentKeyNotFound))
	})
}
