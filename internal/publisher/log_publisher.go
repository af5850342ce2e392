package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickatch/payment-service/common/errors"
	"github.com/tickatch/payment-service/common/events"
	"github.com/tickatch/payment-service/common/messaging"
	"github.com/tickatch/payment-service/internal/domain"
)

// LogPublisher 결제 감사 로그 발행 인터페이스
//
// 발행 실패는 EVENT_PUBLISH_FAILED로 이 호출에만 국한되며,
// 이미 커밋된 결제 상태 전이를 되돌리지 않는다.
type LogPublisher interface {
	Publish(ctx context.Context, paymentID uuid.UUID, method domain.PaymentMethod,
		retryCount int, action events.PaymentActionType, actor domain.Actor) error
}

// KafkaLogPublisher Kafka 기반 결제 로그 발행자
type KafkaLogPublisher struct {
	publisher messaging.Publisher
	topic     string
	logger    *zap.Logger
}

// NewKafkaLogPublisher Kafka 결제 로그 발행자 생성
func NewKafkaLogPublisher(publisher messaging.Publisher, logger *zap.Logger) *KafkaLogPublisher {
	return &KafkaLogPublisher{
		publisher: publisher,
		topic:     string(events.EventPaymentLog),
		logger:    logger,
	}
}

// Publish 결제 로그 이벤트 발행
func (p *KafkaLogPublisher) Publish(ctx context.Context, paymentID uuid.UUID, method domain.PaymentMethod,
	retryCount int, action events.PaymentActionType, actor domain.Actor) error {

	event := events.PaymentLogEvent{
		BaseEvent: events.BaseEvent{
			EventID:       uuid.New().String(),
			EventType:     events.EventPaymentLog,
			SchemaVersion: 1,
			OccurredAt:    time.Now(),
		},
		PaymentID:   paymentID,
		Method:      string(method),
		RetryCount:  retryCount,
		ActionType:  action,
		ActorType:   actor.Type,
		ActorUserID: actor.UserID,
	}

	if err := p.publisher.Publish(ctx, p.topic, paymentID.String(), event); err != nil {
		p.logger.Error("failed to publish payment log event",
			zap.String("paymentId", paymentID.String()),
			zap.String("actionType", string(action)),
			zap.Error(err))
		return errors.Wrap(errors.ErrCodeEventPublishFailed, "failed to publish payment log event", err)
	}

	p.logger.Info("payment log event published",
		zap.String("paymentId", paymentID.String()),
		zap.String("actionType", string(action)))
	return nil
}
