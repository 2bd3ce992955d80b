package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/membership-portal/internal/models"
)

const paymentColumns = `uid, user_uid, plan_type, amount, tax_amount, total_amount,
			  payment_method, status, customer_name, customer_email, customer_phone,
			  seller, gateway_order_id, gateway_transaction_id, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var userUID, customerPhone, seller, orderID, txnID sql.NullString
	if err := row.Scan(&p.UID, &userUID, &p.PlanType, &p.Amount, &p.TaxAmount,
		&p.TotalAmount, &p.PaymentMethod, &p.Status, &p.CustomerName, &p.CustomerEmail,
		&customerPhone, &seller, &orderID, &txnID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if userUID.Valid {
		p.UserUID = &userUID.String
	}
	if customerPhone.Valid {
		p.CustomerPhone = customerPhone.String
	}
	if seller.Valid {
		p.Seller = &seller.String
	}
	if orderID.Valid {
		p.GatewayOrderID = &orderID.String
	}
	if txnID.Valid {
		p.GatewayTransactionID = &txnID.String
	}
	return p, nil
}

// CreatePayment сохраняет новый платёж со статусом pending.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) error {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (uid, user_uid, plan_type, amount, tax_amount,
			      total_amount, payment_method, status, customer_name, customer_email,
			      customer_phone, seller)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	var phone any
	if p.CustomerPhone != "" {
		phone = p.CustomerPhone
	}
	_, err := s.DB.ExecContext(ctx, query,
		p.UID, p.UserUID, p.PlanType, p.Amount, p.TaxAmount, p.TotalAmount,
		p.PaymentMethod, p.Status, p.CustomerName, p.CustomerEmail, phone, p.Seller)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPayment возвращает платёж по его UID.
func (s *Storage) GetPayment(ctx context.Context, uid string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE uid = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SetGatewayOrderID сохраняет идентификатор заказа, выданный шлюзом.
func (s *Storage) SetGatewayOrderID(ctx context.Context, uid, orderID string) error {
	const op = "storage.SetGatewayOrderID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET gateway_order_id = $1, updated_at = NOW() WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, orderID, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateGatewayResult переводит платёж из pending в терминальный статус и
// сохраняет корреляционные идентификаторы шлюза. Возвращает число обновлённых
// строк: ноль означает, что платёж уже не в статусе pending.
func (s *Storage) UpdateGatewayResult(ctx context.Context, uid, status, orderID, txnID string) (int64, error) {
	const op = "storage.UpdateGatewayResult"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $1,
			      gateway_order_id = COALESCE(NULLIF($2, ''), gateway_order_id),
			      gateway_transaction_id = COALESCE(NULLIF($3, ''), gateway_transaction_id),
			      updated_at = NOW()
			  WHERE uid = $4 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, status, orderID, txnID, uid)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// ForcePaymentStatus выставляет статус платежа напрямую, минуя правило
// монотонных переходов. Используется только административной правкой.
func (s *Storage) ForcePaymentStatus(ctx context.Context, uid, status string) error {
	const op = "storage.ForcePaymentStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, status, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ListPaymentsByPlan возвращает платежи выбранного плана, новые первыми.
func (s *Storage) ListPaymentsByPlan(ctx context.Context, planType string, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE plan_type = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, planType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
