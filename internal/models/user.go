// Package models содержит доменные структуры приложения: пользователи,
// платежи и членства, а также вспомогательные типы для приёма данных
// из JSON-запросов до их валидации.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string    // Уникальный идентификатор пользователя
	Email        string    // Электронная почта (уникальная)
	Username     string    // Имя пользователя (уникальное)
	PasswordHash string    // Хэш пароля пользователя
	Role         string    // Роль пользователя, admin или user
	CreatedAt    time.Time // Дата регистрации
}

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
