package enums

import "fmt"

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipping   OrderStatus = "shipping"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusFailed     OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusFailed,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "Order Placed",
	OrderStatusProcessing: "Processing",
	OrderStatusShipping:   "Shipped",
	OrderStatusDelivered:  "Delivered",
	OrderStatusFailed:     "Payment Failed",
}

// admin progression after payment confirmation
var nextOrderStatus = map[OrderStatus]OrderStatus{
	OrderStatusProcessing: OrderStatusShipping,
	OrderStatusShipping:   OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// Label returns the customer facing label.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanAdvanceTo reports whether an admin may move an order from s to next.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	allowed, ok := nextOrderStatus[s]
	return ok && allowed == next
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
