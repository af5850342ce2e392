package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tickatch/payment-service/common/errors"
	"github.com/tickatch/payment-service/internal/domain"
)

// PaymentRepository 결제 레포지토리 인터페이스
//
// UpdateByOrderID / UpdateByID는 한 트랜잭션 안에서 결제 행을
// FOR UPDATE로 잠그고(fn 적용 후) 다시 저장한다. 같은 주문에 대한
// 중복 콜백이 동시에 들어와도 단일 작성자만 상태를 바꾼다.
type PaymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	FindByReservationIDs(ctx context.Context, reservationIDs []string) ([]*domain.Payment, error)
	UpdateByOrderID(ctx context.Context, orderID uuid.UUID, fn func(*domain.Payment) error) error
	UpdateByID(ctx context.Context, id uuid.UUID, fn func(*domain.Payment) error) error
	FindExpirable(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
}

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository 결제 레포지토리 생성
func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, order_id, status, total_price, method, retry_count, cancel_reason,
	approved_at, canceled_at, refunded_at, created_at, updated_at`

// Save 결제 저장 (결제, 예매 링크, 세부 정보를 한 트랜잭션으로 삽입)
func (r *paymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO payments (id, order_id, status, total_price, method, retry_count, cancel_reason,
			approved_at, canceled_at, refunded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Status,
		payment.TotalPrice,
		payment.Method,
		payment.RetryCount,
		nullString(string(payment.CancelReason)),
		payment.ApprovedAt,
		payment.CanceledAt,
		payment.RefundedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Wrap(errors.ErrCodeDatabaseError, "duplicate payment", err)
		}
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert payment", err)
	}

	for _, link := range payment.Links {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO payment_reservation_links (payment_id, reservation_id, amount, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, payment.ID, link.ReservationID, link.Amount, link.Status).Scan(&link.ID)
		if err != nil {
			return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert reservation link", err)
		}
	}

	if payment.Detail != nil {
		if err := insertDetail(ctx, tx, payment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to commit transaction", err)
	}
	return nil
}

// FindByOrderID 주문 id로 결제 조회
func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE order_id = $1`, paymentColumns)
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssociations(ctx, r.db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// FindByReservationIDs 예매 id 중 하나라도 포함하는 결제 전부 조회
func (r *paymentRepository) FindByReservationIDs(ctx context.Context, reservationIDs []string) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT payment_id
		FROM payment_reservation_links
		WHERE reservation_id = ANY($1)
	`, pq.Array(reservationIDs))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to query reservation links", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan payment id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate reservation links", err)
	}

	payments := make([]*domain.Payment, 0, len(ids))
	for _, id := range ids {
		query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
		payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		if err := r.loadAssociations(ctx, r.db, payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// UpdateByOrderID 주문 id로 결제를 잠그고 fn을 적용한 뒤 저장
func (r *paymentRepository) UpdateByOrderID(ctx context.Context, orderID uuid.UUID, fn func(*domain.Payment) error) error {
	return r.update(ctx, "order_id", orderID, fn)
}

// UpdateByID 결제 id로 결제를 잠그고 fn을 적용한 뒤 저장
func (r *paymentRepository) UpdateByID(ctx context.Context, id uuid.UUID, fn func(*domain.Payment) error) error {
	return r.update(ctx, "id", id, fn)
}

func (r *paymentRepository) update(ctx context.Context, column string, arg uuid.UUID, fn func(*domain.Payment) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = $1 FOR UPDATE`, paymentColumns, column)
	payment, err := scanPayment(tx.QueryRowContext(ctx, query, arg))
	if err != nil {
		return err
	}
	if err := r.loadAssociations(ctx, tx, payment); err != nil {
		return err
	}

	hadDetail := payment.Detail != nil

	if err := fn(payment); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, retry_count = $2, cancel_reason = $3,
			approved_at = $4, canceled_at = $5, refunded_at = $6, updated_at = $7
		WHERE id = $8
	`,
		payment.Status,
		payment.RetryCount,
		nullString(string(payment.CancelReason)),
		payment.ApprovedAt,
		payment.CanceledAt,
		payment.RefundedAt,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to update payment", err)
	}

	for _, link := range payment.Links {
		_, err := tx.ExecContext(ctx,
			`UPDATE payment_reservation_links SET status = $1 WHERE id = $2`,
			link.Status, link.ID)
		if err != nil {
			return errors.Wrap(errors.ErrCodeDatabaseError, "failed to update reservation link", err)
		}
	}

	if payment.Detail != nil && !hadDetail {
		if err := insertDetail(ctx, tx, payment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to commit transaction", err)
	}
	return nil
}

// FindExpirable 만료 대상 결제 id 조회 (REQUESTED/PROCESSING/FAIL 중 오래된 것)
func (r *paymentRepository) FindExpirable(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM payments
		WHERE status IN ('REQUESTED', 'PROCESSING', 'FAIL')
		AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT 100
	`, olderThan)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to query expirable payments", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan payment id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate expirable payments", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var cancelReason sql.NullString
	var approvedAt, canceledAt, refundedAt sql.NullTime

	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Status,
		&payment.TotalPrice,
		&payment.Method,
		&payment.RetryCount,
		&cancelReason,
		&approvedAt,
		&canceledAt,
		&refundedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePaymentNotFound, "payment not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan payment", err)
	}

	if cancelReason.Valid {
		payment.CancelReason = domain.RefundReason(cancelReason.String)
	}
	if approvedAt.Valid {
		payment.ApprovedAt = &approvedAt.Time
	}
	if canceledAt.Valid {
		payment.CanceledAt = &canceledAt.Time
	}
	if refundedAt.Valid {
		payment.RefundedAt = &refundedAt.Time
	}
	return payment, nil
}

func (r *paymentRepository) loadAssociations(ctx context.Context, q querier, payment *domain.Payment) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, reservation_id, amount, status
		FROM payment_reservation_links
		WHERE payment_id = $1
		ORDER BY id ASC
	`, payment.ID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to query reservation links", err)
	}
	defer rows.Close()

	payment.Links = nil
	for rows.Next() {
		link := &domain.ReservationLink{}
		if err := rows.Scan(&link.ID, &link.ReservationID, &link.Amount, &link.Status); err != nil {
			return errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan reservation link", err)
		}
		payment.Links = append(payment.Links, link)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to iterate reservation links", err)
	}

	detail := &domain.PaymentDetail{}
	var billingKey sql.NullString
	err = q.QueryRowContext(ctx, `
		SELECT id, method, payment_key, billing_key
		FROM payment_details
		WHERE payment_id = $1
	`, payment.ID).Scan(&detail.ID, &detail.Method, &detail.PaymentKey, &billingKey)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to scan payment detail", err)
	}
	if billingKey.Valid {
		detail.BillingKey = billingKey.String
	}
	payment.Detail = detail
	return nil
}

func insertDetail(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	// payment_id unique 제약: 세부 정보는 결제당 한 번만 생성된다.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_details (id, payment_id, method, payment_key, billing_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id) DO NOTHING
	`,
		payment.Detail.ID,
		payment.ID,
		payment.Detail.Method,
		payment.Detail.PaymentKey,
		nullString(payment.Detail.BillingKey),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatabaseError, "failed to insert payment detail", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
