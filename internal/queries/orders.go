package queries

import (
	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/spec"
)

const (
	IncludeOrderItems     = "OrderItems"
	IncludeDeliveryMethod = "DeliveryMethod"
)

func orderOptions(extra ...spec.Option) []spec.Option {
	return append([]spec.Option{
		spec.WithIncludes(IncludeOrderItems, IncludeDeliveryMethod),
		spec.WithOrderByDescending("orderDate"),
	}, extra...)
}

func OrdersForUser(email string) spec.Spec[domain.Order] {
	return spec.New[domain.Order](spec.Eq("buyerEmail", email), orderOptions()...)
}

func OrderForUser(email string, id int64) spec.Spec[domain.Order] {
	return spec.New[domain.Order](
		spec.And(spec.Eq("buyerEmail", email), spec.Eq("id", id)),
		orderOptions()...,
	)
}

func OrderByPaymentIntent(paymentIntentID string) spec.Spec[domain.Order] {
	return spec.New[domain.Order](spec.Eq("paymentIntentId", paymentIntentID), orderOptions()...)
}

func OrderByID(id int64) spec.Spec[domain.Order] {
	return spec.New[domain.Order](spec.Eq("id", id), orderOptions()...)
}

// Orders is the admin listing, optionally narrowed to one status.
func Orders(p OrderSpecParams) spec.Spec[domain.Order] {
	var criteria spec.Expr
	if p.Status != "" {
		criteria = spec.Eq("status", p.Status)
	}
	return spec.New[domain.Order](criteria, orderOptions(p.PagingParams.Option())...)
}

func UnprocessedEvents(limit int) spec.Spec[domain.OutboxEvent] {
	return spec.New[domain.OutboxEvent](
		spec.Eq("processed", false),
		spec.WithOrderBy("id"),
		spec.WithPaging(0, limit),
	)
}
