package models

import "time"

// Membership представляет доступ в закрытый раздел, выданный ровно по одному
// завершённому платежу. Пара логин/пароль генерируется при провижининге,
// пароль хранится только в виде хэша.
type Membership struct {
	ID                 int        `json:"id"`                            // Идентификатор членства
	PaymentUID         string     `json:"payment_uid"`                   // Платёж, по которому выдан доступ (уникальный)
	UserUID            string     `json:"user_uid"`                      // Владелец доступа
	MemberUsername     string     `json:"member_username"`               // Сгенерированный логин участника
	MemberPasswordHash string     `json:"-"`                             // Хэш сгенерированного пароля, наружу не отдаётся
	AccessGrantedAt    time.Time  `json:"access_granted_at"`             // Дата выдачи доступа
	AccessExpiresAt    time.Time  `json:"access_expires_at"`             // Дата окончания доступа
	IsActive           bool       `json:"is_active"`                     // Флаг активности (ленивая переоценка по сроку)
	CredentialsSentAt  *time.Time `json:"credentials_sent_at,omitempty"` // Когда письмо с учётными данными доставлено (nil — ещё нет)
}

// CredentialsInfo — сообщение для отправителя уведомлений с учётными данными
// нового участника. Пароль передаётся в открытом виде только внутри очереди,
// в хранилище попадает только хэш.
type CredentialsInfo struct {
	MembershipID    int       `json:"membership_id"`
	CustomerName    string    `json:"customer_name"`
	Email           string    `json:"email"`
	MemberUsername  string    `json:"member_username"`
	MemberPassword  string    `json:"member_password"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// ExpiringMembership — пара (членство, пользователь) для напоминаний
// об окончании доступа.
type ExpiringMembership struct {
	MembershipID    int
	CustomerName    string
	Email           string
	AccessExpiresAt time.Time
}
