package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	PictureURL      string          `json:"pictureUrl"`
	Type            string          `json:"type"`
	Brand           string          `json:"brand"`
	QuantityInStock int             `json:"quantityInStock"`
}

func (p Product) Validate() error {
	var errs ValidationErrors
	if p.Name == "" {
		errs.Add("name", "required", "name is required")
	}
	if p.Description == "" {
		errs.Add("description", "required", "description is required")
	}
	if !p.Price.IsPositive() {
		errs.Add("price", "out_of_range", "price must be greater than 0")
	}
	if p.PictureURL == "" {
		errs.Add("pictureUrl", "required", "picture url is required")
	}
	if p.Type == "" {
		errs.Add("type", "required", "type is required")
	}
	if p.Brand == "" {
		errs.Add("brand", "required", "brand is required")
	}
	if p.QuantityInStock < 1 {
		errs.Add("quantityInStock", "out_of_range", "quantity in stock must be at least 1")
	}
	return errs.Err()
}

type DeliveryMethod struct {
	ID           int64           `json:"id"`
	ShortName    string          `json:"shortName"`
	DeliveryTime string          `json:"deliveryTime"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
}
