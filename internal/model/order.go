package model

import "time"

const OrderStatusPending = "pending"

type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type Order struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	Items         []OrderItem `json:"items"`
	TotalPrice    float64     `json:"totalPrice"`
	TotalQuantity int         `json:"totalQuantity"`
	Status        string      `json:"status"`
	Address       string      `json:"address,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	CreatedBy     string      `json:"createdBy,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}
