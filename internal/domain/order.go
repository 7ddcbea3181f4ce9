package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusPaymentReceived OrderStatus = "PaymentReceived"
	OrderStatusPaymentMismatch OrderStatus = "PaymentMismatch"
	OrderStatusRefunded        OrderStatus = "Refunded"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentReceived,
	OrderStatusPaymentMismatch,
	OrderStatusRefunded,
}

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus matches s against the known statuses ignoring case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range orderStatuses {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a ShippingAddress) validate(errs *ValidationErrors) {
	if a.Name == "" {
		errs.Add("shippingAddress.name", "required", "name is required")
	}
	if a.Line1 == "" {
		errs.Add("shippingAddress.line1", "required", "line1 is required")
	}
	if a.City == "" {
		errs.Add("shippingAddress.city", "required", "city is required")
	}
	if a.PostalCode == "" {
		errs.Add("shippingAddress.postalCode", "required", "postal code is required")
	}
	if a.Country == "" {
		errs.Add("shippingAddress.country", "required", "country is required")
	}
}

// PaymentSummary holds the masked card used to pay.
type PaymentSummary struct {
	Last4    int    `json:"last4"`
	Brand    string `json:"brand"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
}

// OrderItem is a snapshot of a product taken when the order was placed.
type OrderItem struct {
	ID          int64           `json:"-"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	PictureURL  string          `json:"pictureUrl"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type Order struct {
	ID               int64
	OrderDate        time.Time
	BuyerEmail       string
	ShippingAddress  ShippingAddress
	DeliveryMethodID int64
	DeliveryMethod   DeliveryMethod
	PaymentSummary   PaymentSummary
	OrderItems       []OrderItem
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Status           OrderStatus
	PaymentIntentID  string
}

// Total requires DeliveryMethod to be loaded.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal.Add(o.DeliveryMethod.Price).Sub(o.Discount)
}

// ReconcilePayment moves a pending order to PaymentReceived when the charged
// amount (minor units) equals the order total exactly, otherwise to PaymentMismatch.
func (o *Order) ReconcilePayment(chargedAmount int64) error {
	if o.Status != OrderStatusPending {
		return ErrIllegalTransition
	}
	if MinorUnits(o.Total()) == chargedAmount {
		o.Status = OrderStatusPaymentReceived
	} else {
		o.Status = OrderStatusPaymentMismatch
	}
	return nil
}

// CanRefund reports whether the processor may be asked to refund this order.
// Any charged order is refundable, including one whose charge did not match
// the total. Refunded orders are not refunded again.
func (o *Order) CanRefund() error {
	switch o.Status {
	case OrderStatusPending:
		return ErrPaymentNotReceived
	case OrderStatusPaymentReceived, OrderStatusPaymentMismatch:
		return nil
	default:
		return ErrIllegalTransition
	}
}

func (o *Order) MarkRefunded() error {
	if err := o.CanRefund(); err != nil {
		return err
	}
	o.Status = OrderStatusRefunded
	return nil
}

type OrderDTO struct {
	ID              int64           `json:"id"`
	OrderDate       time.Time       `json:"orderDate"`
	BuyerEmail      string          `json:"buyerEmail"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	DeliveryMethod  string          `json:"deliveryMethod"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	PaymentSummary  PaymentSummary  `json:"paymentSummary"`
	OrderItems      []OrderItem     `json:"orderItems"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentIntentID string          `json:"paymentIntentId"`
}

func (o *Order) ToDTO() OrderDTO {
	items := o.OrderItems
	if items == nil {
		items = []OrderItem{}
	}
	return OrderDTO{
		ID:              o.ID,
		OrderDate:       o.OrderDate,
		BuyerEmail:      o.BuyerEmail,
		ShippingAddress: o.ShippingAddress,
		DeliveryMethod:  o.DeliveryMethod.Description,
		ShippingPrice:   o.DeliveryMethod.Price,
		PaymentSummary:  o.PaymentSummary,
		OrderItems:      items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Total:           o.Total(),
		Status:          o.Status.String(),
		PaymentIntentID: o.PaymentIntentID,
	}
}

// CreateOrderRequest is what a buyer submits at the end of checkout.
type CreateOrderRequest struct {
	CartID           string          `json:"cartId"`
	DeliveryMethodID int64           `json:"deliveryMethodId"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	PaymentSummary   PaymentSummary  `json:"paymentSummary"`
}

func (r CreateOrderRequest) Validate() error {
	var errs ValidationErrors
	if r.CartID == "" {
		errs.Add("cartId", "required", "cart id is required")
	}
	if r.DeliveryMethodID <= 0 {
		errs.Add("deliveryMethodId", "required", "delivery method is required")
	}
	r.ShippingAddress.validate(&errs)
	if r.PaymentSummary.Brand == "" {
		errs.Add("paymentSummary.brand", "required", "card brand is required")
	}
	if r.PaymentSummary.ExpMonth < 1 || r.PaymentSummary.ExpMonth > 12 {
		errs.Add("paymentSummary.expMonth", "out_of_range", "expiry month must be between 1 and 12")
	}
	return errs.Err()
}
