package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickatch/payment-service/common/errors"
	"github.com/tickatch/payment-service/common/events"
	"github.com/tickatch/payment-service/internal/domain"
	"github.com/tickatch/payment-service/internal/gateway"
	"github.com/tickatch/payment-service/internal/publisher"
	"github.com/tickatch/payment-service/internal/repository"
	"github.com/tickatch/payment-service/internal/reservation"
)

// 사용자가 결제창에서 직접 취소했을 때 게이트웨이가 보내는 코드
const codePayProcessCanceled = "PAY_PROCESS_CANCELED"

// PaymentItem 결제 생성 항목
type PaymentItem struct {
	ReservationID string
	Price         int64
}

// CreatePaymentCommand 결제 생성 커맨드
type CreatePaymentCommand struct {
	OrderName string
	Items     []PaymentItem
	Actor     domain.Actor
}

// CreatePaymentResult 결제 생성 결과
type CreatePaymentResult struct {
	PaymentID  uuid.UUID
	OrderID    uuid.UUID
	Status     domain.PaymentStatus
	PaymentKey string
}

// ConfirmPaymentCommand 결제 승인 커맨드 (게이트웨이 성공 콜백)
type ConfirmPaymentCommand struct {
	PaymentKey string
	OrderID    uuid.UUID
	Amount     int64
	Actor      domain.Actor
}

// FailPaymentCommand 결제 실패 커맨드 (게이트웨이 실패 콜백)
type FailPaymentCommand struct {
	OrderID uuid.UUID
	Code    string
	Message string
	Actor   domain.Actor
}

// RefundPaymentCommand 환불 커맨드
type RefundPaymentCommand struct {
	Reason         domain.RefundReason
	ReservationIDs []string
	Actor          domain.Actor
}

// PaymentService 결제 서비스 인터페이스
type PaymentService interface {
	CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*CreatePaymentResult, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) error
	FailPayment(ctx context.Context, cmd FailPaymentCommand) error
	RefundPayment(ctx context.Context, cmd RefundPaymentCommand) error
}

type paymentService struct {
	paymentRepo  repository.PaymentRepository
	gateway      gateway.Gateway
	notifier     reservation.Notifier
	logPublisher publisher.LogPublisher
	logger       *zap.Logger
}

// NewPaymentService 결제 서비스 생성
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	gw gateway.Gateway,
	notifier reservation.Notifier,
	logPublisher publisher.LogPublisher,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo:  paymentRepo,
		gateway:      gw,
		notifier:     notifier,
		logPublisher: logPublisher,
		logger:       logger,
	}
}

// CreatePayment 결제 생성
//
// 결제를 PROCESSING 상태로 저장한 뒤 게이트웨이에 결제 키를 요청한다.
// 키 발급이 실패하면 PROCESSING 상태의 결제가 키 없이 남는다.
// 이 결제는 만료 스윕(expire)으로 정리된다.
func (s *paymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*CreatePaymentResult, error) {
	infos := make([]domain.ReservationInfo, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		infos = append(infos, domain.ReservationInfo{
			ReservationID: item.ReservationID,
			Price:         item.Price,
		})
	}

	payment, err := domain.NewPayment(infos, domain.PaymentMethodTossCard)
	if err != nil {
		return nil, err
	}
	if err := payment.MarkProcessing(); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("paymentId", payment.ID.String()),
		zap.String("orderId", payment.OrderID.String()),
		zap.Int64("totalPrice", payment.TotalPrice))

	s.publishLog(ctx, payment, events.PaymentActionCreate, cmd.Actor)
	s.notifyChangeStatus(ctx, payment.ReservationIDs())

	paymentKey, err := s.gateway.RequestPaymentKey(ctx, payment.OrderID, cmd.OrderName, payment.TotalPrice)
	if err != nil {
		s.logger.Error("payment key generation failed",
			zap.String("paymentId", payment.ID.String()),
			zap.Error(err))
		return nil, errors.Wrap(errors.ErrCodePaymentKeyGenerationFailed,
			"payment key generation failed", err)
	}

	return &CreatePaymentResult{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		Status:     payment.Status,
		PaymentKey: paymentKey,
	}, nil
}

// ConfirmPayment 결제 승인 처리
//
// 게이트웨이 승인 결과에 따라 SUCCESS 또는 FAIL로 전이한다.
// 게이트웨이 호출의 전송 오류도 비승인으로 다룬다.
func (s *paymentService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) error {
	var approved bool
	var snapshot *domain.Payment

	err := s.paymentRepo.UpdateByOrderID(ctx, cmd.OrderID, func(payment *domain.Payment) error {
		result, gerr := s.gateway.Confirm(ctx, cmd.PaymentKey, cmd.OrderID, cmd.Amount)
		if gerr != nil {
			s.logger.Warn("gateway confirm call failed, treating as non-approval",
				zap.String("orderId", cmd.OrderID.String()),
				zap.Error(gerr))
		}

		if gerr == nil && result.Approved {
			detail := domain.NewTossCardDetail()
			if err := detail.SetPaymentKey(cmd.PaymentKey); err != nil {
				return err
			}
			payment.AssignDetail(detail)
			if err := payment.MarkSuccess(); err != nil {
				return err
			}
			approved = true
		} else {
			if err := payment.MarkFail(); err != nil {
				return err
			}
		}

		snapshot = payment
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrCodePaymentNotFound) {
			return err
		}
		return errors.Wrap(errors.ErrCodePaymentConfirmFailed, "payment confirm failed", err)
	}

	if approved {
		s.logger.Info("payment confirmed",
			zap.String("paymentId", snapshot.ID.String()),
			zap.String("orderId", cmd.OrderID.String()))
		s.notifyResult(ctx, "SUCCESS", snapshot.ReservationIDs())
		s.publishLog(ctx, snapshot, events.PaymentActionConfirm, cmd.Actor)
	} else {
		s.logger.Warn("payment confirm rejected",
			zap.String("paymentId", snapshot.ID.String()),
			zap.String("orderId", cmd.OrderID.String()),
			zap.Int("retryCount", snapshot.RetryCount))
		s.notifyResult(ctx, "FAIL", snapshot.ReservationIDs())
		s.publishLog(ctx, snapshot, events.PaymentActionConfirmFail, cmd.Actor)
	}
	return nil
}

// FailPayment 결제 실패 콜백 처리
//
// 처리할 수 없는 상태(이미 SUCCESS 등)면 로그만 남기고 종료한다.
// 외부 콜백은 중복/지연될 수 있으므로 여기서는 전이 실패를
// 전파하지 않는다.
func (s *paymentService) FailPayment(ctx context.Context, cmd FailPaymentCommand) error {
	var notifyStatus string
	var action events.PaymentActionType
	var snapshot *domain.Payment

	err := s.paymentRepo.UpdateByOrderID(ctx, cmd.OrderID, func(payment *domain.Payment) error {
		if !payment.CanFail() {
			s.logger.Warn("ignoring fail callback: payment cannot fail",
				zap.String("orderId", cmd.OrderID.String()),
				zap.String("status", string(payment.Status)),
				zap.String("code", cmd.Code))
			return nil
		}

		if cmd.Code == codePayProcessCanceled {
			if err := payment.Cancel(domain.RefundReasonCustomerCancel); err != nil {
				s.logger.Warn("ignoring fail callback: invalid cancel transition",
					zap.String("orderId", cmd.OrderID.String()),
					zap.String("status", string(payment.Status)),
					zap.Error(err))
				return nil
			}
			notifyStatus = "CANCEL"
			action = events.PaymentActionCancel
		} else {
			if err := payment.MarkFail(); err != nil {
				s.logger.Warn("ignoring fail callback: invalid fail transition",
					zap.String("orderId", cmd.OrderID.String()),
					zap.String("status", string(payment.Status)),
					zap.Error(err))
				return nil
			}
			notifyStatus = "FAIL"
			action = events.PaymentActionConfirmFail
		}

		snapshot = payment
		return nil
	})
	if err != nil {
		return err
	}

	if notifyStatus == "" {
		return nil
	}

	s.logger.Info("payment failed by callback",
		zap.String("paymentId", snapshot.ID.String()),
		zap.String("code", cmd.Code),
		zap.String("message", cmd.Message),
		zap.String("result", notifyStatus))
	s.notifyResult(ctx, notifyStatus, snapshot.ReservationIDs())
	s.publishLog(ctx, snapshot, action, cmd.Actor)
	return nil
}

// RefundPayment 환불 처리
//
// 요청된 예매 id 전부를 소유한 단 하나의 결제를 찾아 환불한다.
// 이미 환불된 결제는 게이트웨이 호출 없이 멱등하게 종료한다.
func (s *paymentService) RefundPayment(ctx context.Context, cmd RefundPaymentCommand) error {
	payments, err := s.paymentRepo.FindByReservationIDs(ctx, cmd.ReservationIDs)
	if err != nil {
		return err
	}

	if len(payments) == 0 {
		return errors.New(errors.ErrCodePaymentNotFound, "no payment found for reservations")
	}
	if len(payments) > 1 {
		return errors.New(errors.ErrCodeMultiplePaymentFound,
			"reservations belong to multiple payments")
	}

	target := payments[0]

	if target.Status == domain.PaymentStatusRefund {
		s.logger.Info("payment already refunded",
			zap.String("paymentId", target.ID.String()))
		return nil
	}
	if !target.OwnsAllReservations(cmd.ReservationIDs) {
		return errors.New(errors.ErrCodeInvalidReservationForPayment,
			"payment does not own all requested reservations")
	}
	if target.PaymentKey() == "" {
		return errors.New(errors.ErrCodePaymentKeyNotFound, "payment key not found")
	}

	var refunded, alreadyRefunded bool
	var raiseErr error
	var snapshot *domain.Payment

	err = s.paymentRepo.UpdateByID(ctx, target.ID, func(payment *domain.Payment) error {
		// 잠금 후 재확인: 중복 환불 요청 방어
		if payment.Status == domain.PaymentStatusRefund {
			alreadyRefunded = true
			return nil
		}

		result, gerr := s.gateway.Cancel(ctx, payment.PaymentKey(), string(cmd.Reason))
		if gerr != nil {
			if err := payment.RefundFail(cmd.Reason); err != nil {
				return err
			}
			s.logger.Error("refund request failed",
				zap.String("paymentId", payment.ID.String()),
				zap.Error(gerr))
			raiseErr = errors.Wrap(errors.ErrCodeInternalServerError, "refund request failed", gerr)
			snapshot = payment
			return nil
		}

		if result.Canceled {
			if err := payment.Refund(cmd.Reason); err != nil {
				return err
			}
			refunded = true
		} else {
			if err := payment.RefundFail(cmd.Reason); err != nil {
				return err
			}
			s.logger.Error("refund rejected by gateway",
				zap.String("paymentId", payment.ID.String()),
				zap.String("errorMessage", result.ErrorMessage))
		}

		snapshot = payment
		return nil
	})
	if err != nil {
		return err
	}

	if alreadyRefunded {
		s.logger.Info("payment already refunded",
			zap.String("paymentId", target.ID.String()))
		return nil
	}

	if refunded {
		s.logger.Info("payment refunded",
			zap.String("paymentId", snapshot.ID.String()),
			zap.String("reason", string(cmd.Reason)))
		s.publishLog(ctx, snapshot, events.PaymentActionRefund, cmd.Actor)
	} else {
		s.publishLog(ctx, snapshot, events.PaymentActionRefundFail, cmd.Actor)
	}

	return raiseErr
}

func (s *paymentService) publishLog(ctx context.Context, payment *domain.Payment,
	action events.PaymentActionType, actor domain.Actor) {
	if err := s.logPublisher.Publish(ctx, payment.ID, payment.Method, payment.RetryCount, action, actor); err != nil {
		s.logger.Warn("payment log publish failed",
			zap.String("paymentId", payment.ID.String()),
			zap.String("actionType", string(action)),
			zap.Error(err))
	}
}

func (s *paymentService) notifyResult(ctx context.Context, status string, reservationIDs []string) {
	if err := s.notifier.ApplyResult(ctx, status, reservationIDs); err != nil {
		s.logger.Warn("reservation result notification failed",
			zap.String("status", status),
			zap.Error(err))
	}
}

func (s *paymentService) notifyChangeStatus(ctx context.Context, reservationIDs []string) {
	if err := s.notifier.ChangeStatus(ctx, reservationIDs); err != nil {
		s.logger.Warn("reservation status change notification failed", zap.Error(err))
	}
}
