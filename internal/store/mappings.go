package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/spec"
	"github.com/shopspring/decimal"
)

var productMapper = newMapper("products",
	func(p *domain.Product) *int64 { return &p.ID },
	col("name", "name", func(p *domain.Product) *string { return &p.Name }),
	col("description", "description", func(p *domain.Product) *string { return &p.Description }),
	col("price", "price", func(p *domain.Product) *decimal.Decimal { return &p.Price }),
	col("picture_url", "pictureUrl", func(p *domain.Product) *string { return &p.PictureURL }),
	col("type", "type", func(p *domain.Product) *string { return &p.Type }),
	col("brand", "brand", func(p *domain.Product) *string { return &p.Brand }),
	col("quantity_in_stock", "quantityInStock", func(p *domain.Product) *int { return &p.QuantityInStock }),
)

var deliveryMethodMapper = newMapper("delivery_methods",
	func(d *domain.DeliveryMethod) *int64 { return &d.ID },
	col("short_name", "shortName", func(d *domain.DeliveryMethod) *string { return &d.ShortName }),
	col("delivery_time", "deliveryTime", func(d *domain.DeliveryMethod) *string { return &d.DeliveryTime }),
	col("description", "description", func(d *domain.DeliveryMethod) *string { return &d.Description }),
	col("price", "price", func(d *domain.DeliveryMethod) *decimal.Decimal { return &d.Price }),
)

var orderItemMapper = newMapper("order_items",
	func(i *domain.OrderItem) *int64 { return &i.ID },
	col("order_id", "orderId", func(i *domain.OrderItem) *int64 { return &i.OrderID }),
	col("product_id", "productId", func(i *domain.OrderItem) *int64 { return &i.ProductID }),
	col("product_name", "productName", func(i *domain.OrderItem) *string { return &i.ProductName }),
	col("picture_url", "pictureUrl", func(i *domain.OrderItem) *string { return &i.PictureURL }),
	col("price", "price", func(i *domain.OrderItem) *decimal.Decimal { return &i.Price }),
	col("quantity", "quantity", func(i *domain.OrderItem) *int { return &i.Quantity }),
)

var orderMapper = newMapper("orders",
	func(o *domain.Order) *int64 { return &o.ID },
	col("order_date", "orderDate", func(o *domain.Order) *time.Time { return &o.OrderDate }),
	col("buyer_email", "buyerEmail", func(o *domain.Order) *string { return &o.BuyerEmail }),
	jsonCol("shipping_address", "shippingAddress", func(o *domain.Order) *domain.ShippingAddress { return &o.ShippingAddress }),
	col("delivery_method_id", "deliveryMethodId", func(o *domain.Order) *int64 { return &o.DeliveryMethodID }),
	jsonCol("payment_summary", "paymentSummary", func(o *domain.Order) *domain.PaymentSummary { return &o.PaymentSummary }),
	col("subtotal", "subtotal", func(o *domain.Order) *decimal.Decimal { return &o.Subtotal }),
	col("discount", "discount", func(o *domain.Order) *decimal.Decimal { return &o.Discount }),
	col("status", "status", func(o *domain.Order) *domain.OrderStatus { return &o.Status }),
	col("payment_intent_id", "paymentIntentId", func(o *domain.Order) *string { return &o.PaymentIntentID }),
)

var outboxMapper = newMapper("outbox_events",
	func(e *domain.OutboxEvent) *int64 { return &e.ID },
	col("aggregate_id", "aggregateId", func(e *domain.OutboxEvent) *string { return &e.AggregateID }),
	col("event_type", "eventType", func(e *domain.OutboxEvent) *string { return &e.EventType }),
	jsonCol("payload", "payload", func(e *domain.OutboxEvent) *json.RawMessage { return &e.Payload }),
	col("created_at", "createdAt", func(e *domain.OutboxEvent) *time.Time { return &e.CreatedAt }),
	col("processed_at", "processedAt", func(e *domain.OutboxEvent) **time.Time { return &e.ProcessedAt }),
	col("processed", "processed", func(e *domain.OutboxEvent) *bool { return &e.Processed }),
)

func init() {
	orderMapper.includes[queries.IncludeOrderItems] = loadOrderItems
	orderMapper.includes[queries.IncludeDeliveryMethod] = loadDeliveryMethods
	orderMapper.afterInsert = insertOrderItems
}

// DefaultRegistry maps every persisted domain entity.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	register(r, productMapper)
	register(r, deliveryMethodMapper)
	register(r, orderMapper)
	register(r, orderItemMapper)
	register(r, outboxMapper)
	return r
}

func loadOrderItems(ctx context.Context, q querier, d Dialect, orders []domain.Order) error {
	index := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
		orders[i].OrderItems = []domain.OrderItem{}
	}

	items, err := newQuery(q, d, orderItemMapper).
		Where(spec.In("orderId", ids...)).
		OrderBy("id", false).
		List(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].OrderItems = append(orders[i].OrderItems, item)
	}
	return nil
}

func loadDeliveryMethods(ctx context.Context, q querier, d Dialect, orders []domain.Order) error {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.DeliveryMethodID)
	}

	methods, err := newQuery(q, d, deliveryMethodMapper).Where(spec.In("id", ids...)).List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]domain.DeliveryMethod, len(methods))
	for _, m := range methods {
		byID[m.ID] = m
	}
	for i := range orders {
		orders[i].DeliveryMethod = byID[orders[i].DeliveryMethodID]
	}
	return nil
}

func insertOrderItems(ctx context.Context, q querier, d Dialect, o *domain.Order) (int64, error) {
	var changed int64
	for i := range o.OrderItems {
		o.OrderItems[i].OrderID = o.ID
		n, err := insert(ctx, q, d, orderItemMapper, &o.OrderItems[i])
		if err != nil {
			return 0, err
		}
		changed += n
	}
	return changed, nil
}
