package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/membership-portal/internal/models"
)

const membershipColumns = `id, payment_uid, user_uid, member_username, member_password_hash,
			  access_granted_at, access_expires_at, is_active, credentials_sent_at`

func scanMembership(row interface{ Scan(...any) error }) (*models.Membership, error) {
	m := &models.Membership{}
	var sentAt sql.NullTime
	if err := row.Scan(&m.ID, &m.PaymentUID, &m.UserUID, &m.MemberUsername,
		&m.MemberPasswordHash, &m.AccessGrantedAt, &m.AccessExpiresAt,
		&m.IsActive, &sentAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		m.CredentialsSentAt = &sentAt.Time
	}
	return m, nil
}

// CreateMembership сохраняет новое членство и возвращает его ID.
// Повторная вставка по тому же платежу возвращает ErrMembershipExists:
// уникальный индекс на payment_uid закрывает гонку двух конкурирующих
// подтверждений одного платежа.
func (s *Storage) CreateMembership(ctx context.Context, m models.Membership) (int, error) {
	const op = "storage.CreateMembership"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO memberships (payment_uid, user_uid, member_username,
			      member_password_hash, access_granted_at, access_expires_at, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		m.PaymentUID, m.UserUID, m.MemberUsername, m.MemberPasswordHash,
		m.AccessGrantedAt, m.AccessExpiresAt, m.IsActive).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrMembershipExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetMembershipByUser возвращает членство пользователя.
func (s *Storage) GetMembershipByUser(ctx context.Context, userUID string) (*models.Membership, error) {
	const op = "storage.GetMembershipByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + membershipColumns + `
			  FROM memberships
			  WHERE user_uid = $1
			  ORDER BY access_expires_at DESC
			  LIMIT 1`
	m, err := scanMembership(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// GetMembershipByPayment возвращает членство, выданное по платежу.
func (s *Storage) GetMembershipByPayment(ctx context.Context, paymentUID string) (*models.Membership, error) {
	const op = "storage.GetMembershipByPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE payment_uid = $1`
	m, err := scanMembership(s.DB.QueryRowContext(ctx, query, paymentUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// UpdateMembershipActive выставляет флаг активности и возвращает UID владельца
// для инвалидации кеша.
func (s *Storage) UpdateMembershipActive(ctx context.Context, id int, isActive bool) (string, error) {
	const op = "storage.UpdateMembershipActive"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships SET is_active = $1 WHERE id = $2 RETURNING user_uid`
	var userUID string
	if err := s.DB.QueryRowContext(ctx, query, isActive, id).Scan(&userUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}

// UpdateMembershipExpiration изменяет дату окончания доступа пользователя.
func (s *Storage) UpdateMembershipExpiration(ctx context.Context, userUID string, expiresAt time.Time) error {
	const op = "storage.UpdateMembershipExpiration"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships SET access_expires_at = $1 WHERE user_uid = $2`
	res, err := s.DB.ExecContext(ctx, query, expiresAt, userUID)
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

// MarkCredentialsSent отмечает, что письмо с учётными данными доставлено.
func (s *Storage) MarkCredentialsSent(ctx context.Context, id int) error {
	const op = "storage.MarkCredentialsSent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships SET credentials_sent_at = NOW() WHERE id = $1`
	_, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindMembershipsExpiringSoon возвращает активные членства, срок которых
// истекает ровно через days дней. Сравнение только по дате, без времени:
// членство с окончанием на день раньше или позже не попадает в выборку.
func (s *Storage) FindMembershipsExpiringSoon(ctx context.Context, days int) ([]*models.ExpiringMembership, error) {
	const op = "storage.FindMembershipsExpiringSoon"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT m.id, p.customer_name, p.customer_email, m.access_expires_at
			  FROM memberships m
			  JOIN payments p ON p.uid = m.payment_uid
			  WHERE m.is_active
			    AND m.access_expires_at::DATE = (CURRENT_DATE + $1 * INTERVAL '1 day')::DATE`
	rows, err := s.DB.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiringMembership
	for rows.Next() {
		var e models.ExpiringMembership
		if err := rows.Scan(&e.MembershipID, &e.CustomerName, &e.Email, &e.AccessExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListMemberships возвращает членства для админки с фильтрами по статусу,
// плану, продавцу и поиском по покупателю.
func (s *Storage) ListMemberships(ctx context.Context, filter models.MembershipFilter) ([]*models.MembershipListItem, error) {
	const op = "storage.ListMemberships"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var conds []string
	var args []any
	if filter.Status != nil {
		switch *filter.Status {
		case "active":
			conds = append(conds, "m.is_active AND m.access_expires_at > NOW()")
		case "expired":
			conds = append(conds, "(NOT m.is_active OR m.access_expires_at <= NOW())")
		}
	}
	if filter.PlanType != nil {
		args = append(args, *filter.PlanType)
		conds = append(conds, "p.plan_type = $"+strconv.Itoa(len(args)))
	}
	if filter.Seller != nil {
		args = append(args, *filter.Seller)
		conds = append(conds, "p.seller = $"+strconv.Itoa(len(args)))
	}
	if filter.Search != nil {
		args = append(args, "%"+*filter.Search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(p.customer_name ILIKE $"+n+" OR p.customer_email ILIKE $"+n+")")
	}

	query := `SELECT m.id, m.payment_uid, m.user_uid, m.member_username, m.member_password_hash,
			      m.access_granted_at, m.access_expires_at, m.is_active, m.credentials_sent_at,
			      p.plan_type, p.customer_name, p.customer_email, COALESCE(p.seller, '')
			  FROM memberships m
			  JOIN payments p ON p.uid = m.payment_uid`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)
	query += " ORDER BY m.access_granted_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.MembershipListItem
	for rows.Next() {
		var item models.MembershipListItem
		var sentAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.PaymentUID, &item.UserUID, &item.MemberUsername,
			&item.MemberPasswordHash, &item.AccessGrantedAt, &item.AccessExpiresAt,
			&item.IsActive, &sentAt, &item.PlanType, &item.CustomerName,
			&item.CustomerEmail, &item.Seller); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if sentAt.Valid {
			item.CredentialsSentAt = &sentAt.Time
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
