package paymentgateway

import "time"

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "55000"
	Currency string `json:"currency"` // валюта, например "JPY"
}

// CreateSessionRequest представляет запрос на создание платёжной сессии
// hosted-checkout: покупатель уходит на страницу шлюза и проходит там
// 3-D Secure, после чего возвращается на return_url.
type CreateSessionRequest struct {
	OrderID     string            `json:"order_id"`           // наш идентификатор платежа
	Amount      Amount            `json:"amount"`             // итоговая сумма с налогом
	Description string            `json:"description"`        // описание для страницы оплаты
	ReturnURL   string            `json:"return_url"`         // адрес возврата покупателя
	Metadata    map[string]string `json:"metadata,omitempty"` // дополнительная инфа: plan_type и др.
}

// CreateSessionResponse представляет ответ шлюза на создание сессии.
type CreateSessionResponse struct {
	ID          string    `json:"id"`           // ID сессии в шлюзе
	OrderID     string    `json:"order_id"`     // наш идентификатор платежа
	Status      string    `json:"status"`       // статус сессии, например "created"
	RedirectURL string    `json:"redirect_url"` // куда отправить покупателя
	CreatedAt   time.Time `json:"created_at"`
}
