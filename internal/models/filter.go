package models

// MembershipFilter представляет параметры фильтрации списка членств
// в административной панели. Nil-поле означает отсутствие фильтра.
type MembershipFilter struct {
	Status   *string // active или expired
	PlanType *string // Тип плана
	Search   *string // Поиск по имени или email покупателя
	Seller   *string // Атрибуция продавца
	Limit    int
	Offset   int
}

// MembershipListItem — строка списка членств для админки: членство,
// обогащённое данными платежа и покупателя.
type MembershipListItem struct {
	Membership
	PlanType      string `json:"plan_type"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Seller        string `json:"seller,omitempty"`
}
