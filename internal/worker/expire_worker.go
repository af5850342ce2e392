package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tickatch/payment-service/internal/domain"
	"github.com/tickatch/payment-service/internal/repository"
)

// ExpireWorker 미완료 결제 만료 워커
//
// 게이트웨이 콜백이 끝내 도착하지 않은 REQUESTED/PROCESSING/FAIL 결제를
// 주기적으로 EXPIRED 상태로 정리한다.
type ExpireWorker struct {
	paymentRepo repository.PaymentRepository
	logger      *zap.Logger
	interval    time.Duration
	expireAfter time.Duration
}

// NewExpireWorker 만료 워커 생성
func NewExpireWorker(
	paymentRepo repository.PaymentRepository,
	logger *zap.Logger,
	interval time.Duration,
	expireAfter time.Duration,
) *ExpireWorker {
	return &ExpireWorker{
		paymentRepo: paymentRepo,
		logger:      logger,
		interval:    interval,
		expireAfter: expireAfter,
	}
}

// Start 워커 시작
func (w *ExpireWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expire worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("expireAfter", w.expireAfter))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expire worker stopped")
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.logger.Error("failed to expire stale payments", zap.Error(err))
			}
		}
	}
}

func (w *ExpireWorker) process(ctx context.Context) error {
	olderThan := time.Now().Add(-w.expireAfter)

	ids, err := w.paymentRepo.FindExpirable(ctx, olderThan)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	w.logger.Info("expiring stale payments", zap.Int("count", len(ids)))

	for _, id := range ids {
		err := w.paymentRepo.UpdateByID(ctx, id, func(payment *domain.Payment) error {
			return payment.Expire()
		})
		if err != nil {
			// 동시에 콜백이 처리됐으면 전이가 거부될 수 있다
			w.logger.Warn("failed to expire payment",
				zap.String("paymentId", id.String()),
				zap.Error(err))
		}
	}

	return nil
}
