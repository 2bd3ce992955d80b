package models

import "time"

// Тарифные планы.
const (
	PlanBasic    = "basic"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// PlanPrices — цены планов в иенах, без налога.
var PlanPrices = map[string]int{
	PlanBasic:    50000,
	PlanStandard: 100000,
	PlanPremium:  150000,
}

// TaxRatePercent — ставка налога, применяемая ко всем планам.
const TaxRatePercent = 10

// Статусы платежа. Переходы монотонные: pending -> completed | failed | cancelled.
// Из терминального статуса платёж выходит только по явной административной правке.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Payment представляет одну попытку покупки плана.
// Контактные данные покупателя фиксируются на момент покупки и могут
// существовать раньше, чем учётная запись пользователя.
type Payment struct {
	UID                  string    `json:"uid"`                              // Уникальный идентификатор платежа
	UserUID              *string   `json:"user_uid,omitempty"`               // Пользователь (nil, если аккаунт создан позже)
	PlanType             string    `json:"plan_type"`                        // Тип плана: basic, standard, premium
	Amount               int       `json:"amount"`                           // Базовая сумма
	TaxAmount            int       `json:"tax_amount"`                       // Налог
	TotalAmount          int       `json:"total_amount"`                     // Итоговая сумма
	PaymentMethod        string    `json:"payment_method"`                   // Способ оплаты
	Status               string    `json:"status"`                           // Текущий статус платежа
	CustomerName         string    `json:"customer_name"`                    // Имя покупателя
	CustomerEmail        string    `json:"customer_email"`                   // Email покупателя
	CustomerPhone        string    `json:"customer_phone,omitempty"`         // Телефон покупателя
	Seller               *string   `json:"seller,omitempty"`                 // Атрибуция продавца/канала (опционально)
	GatewayOrderID       *string   `json:"gateway_order_id,omitempty"`       // Идентификатор заказа в платёжном шлюзе
	GatewayTransactionID *string   `json:"gateway_transaction_id,omitempty"` // Идентификатор транзакции в платёжном шлюзе
	CreatedAt            time.Time `json:"created_at"`                       // Дата создания
	UpdatedAt            time.Time `json:"updated_at"`                       // Дата последнего изменения
}

// DummyPayment используется для приёма данных о покупке из JSON-запроса
// до их валидации и преобразования в Payment.
type DummyPayment struct {
	PlanType      string `json:"plan_type" validate:"required,oneof=basic standard premium"` // Тип плана
	PaymentMethod string `json:"payment_method" validate:"required"`                        // Способ оплаты
	CustomerName  string `json:"customer_name" validate:"required"`                         // Имя покупателя
	CustomerEmail string `json:"customer_email" validate:"required,email"`                  // Email покупателя
	CustomerPhone string `json:"customer_phone,omitempty" validate:"omitempty"`             // Телефон (опционально)
	Seller        string `json:"seller,omitempty" validate:"omitempty"`                     // Продавец (опционально)
}

// PaymentVerification — результат проверки статуса платежа, используемый
// клиентским опросом после возврата из 3-D Secure.
type PaymentVerification struct {
	Status        string `json:"status"`
	IsCompleted   bool   `json:"is_completed"`
	HasMembership bool   `json:"has_membership"`
}
