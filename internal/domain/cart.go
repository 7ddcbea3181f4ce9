package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ShoppingCart is held server-side under a client generated id.
type ShoppingCart struct {
	ID               string     `json:"id" bson:"_id"`
	Items            []CartItem `json:"items" bson:"items"`
	DeliveryMethodID *int64     `json:"deliveryMethodId,omitempty" bson:"delivery_method_id,omitempty"`
	ClientSecret     string     `json:"clientSecret,omitempty" bson:"client_secret,omitempty"`
	PaymentIntentID  string     `json:"paymentIntentId,omitempty" bson:"payment_intent_id,omitempty"`
	Coupon           *AppCoupon `json:"coupon,omitempty" bson:"coupon,omitempty"`
	CreatedAt        time.Time  `json:"-" bson:"created_at"`
	UpdatedAt        time.Time  `json:"-" bson:"updated_at"`
}

type CartItem struct {
	ProductID   int64           `json:"productId" bson:"product_id"`
	ProductName string          `json:"productName" bson:"product_name"`
	Price       decimal.Decimal `json:"price" bson:"price"`
	Quantity    int             `json:"quantity" bson:"quantity"`
	PictureURL  string          `json:"pictureUrl" bson:"picture_url"`
	Brand       string          `json:"brand" bson:"brand"`
	Type        string          `json:"type" bson:"type"`
}

// AppCoupon is a discount resolved from a payment processor promotion code.
// AmountOff is in major units.
type AppCoupon struct {
	Name          string           `json:"name" bson:"name"`
	AmountOff     *decimal.Decimal `json:"amountOff,omitempty" bson:"amount_off,omitempty"`
	PercentOff    *decimal.Decimal `json:"percentOff,omitempty" bson:"percent_off,omitempty"`
	PromotionCode string           `json:"promotionCode" bson:"promotion_code"`
	CouponID      string           `json:"couponId" bson:"coupon_id"`
}

// Discount returns the amount taken off subtotal, never more than subtotal.
func (c *AppCoupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch {
	case c.AmountOff != nil:
		d = *c.AmountOff
	case c.PercentOff != nil:
		d = subtotal.Mul(*c.PercentOff).Div(hundred).Round(2)
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Subtotal sums quantity times unit price over all items.
func (c *ShoppingCart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *ShoppingCart) Validate() error {
	var errs ValidationErrors
	if c.ID == "" {
		errs.Add("id", "required", "cart id is required")
	}
	for i, item := range c.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		if item.ProductID <= 0 {
			errs.Add(prefix+"productId", "invalid_product_id", "product id must be positive")
		}
		if item.ProductName == "" {
			errs.Add(prefix+"productName", "required", "product name is required")
		}
		if !item.Price.IsPositive() {
			errs.Add(prefix+"price", "out_of_range", "price must be greater than 0")
		}
		if item.Quantity < 1 {
			errs.Add(prefix+"quantity", "out_of_range", "quantity must be at least 1")
		}
		if item.PictureURL == "" {
			errs.Add(prefix+"pictureUrl", "required", "picture url is required")
		}
		if item.Brand == "" {
			errs.Add(prefix+"brand", "required", "brand is required")
		}
		if item.Type == "" {
			errs.Add(prefix+"type", "required", "type is required")
		}
	}
	return errs.Err()
}
