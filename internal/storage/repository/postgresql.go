// Package repository реализует хранилище данных на основе PostgreSQL
// для управления пользователями, платежами и членствами. Предоставляет
// методы создания, чтения и обновления записей.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует.
var ErrNotFound = errors.New("record not found")

// ErrMembershipExists возвращается при попытке создать второе членство
// по одному и тому же платежу. Гарантируется уникальным индексом на
// memberships.payment_uid, поэтому срабатывает и при гонке вставок.
var ErrMembershipExists = errors.New("membership already exists for payment")

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями, платежами и членствами.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (storage *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'memberships'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table memberships missing or query error: %w", err)
	}
	return nil
}
