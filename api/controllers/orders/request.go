package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/api/validators"
	internalorders "github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

type placeOrderItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required,max=32"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// placeOrderRequest leaves items empty to check out the session cart and
// address_id empty to get a no_address_selected rejection rather than a
// field error.
type placeOrderRequest struct {
	Items      []placeOrderItem `json:"items" validate:"max=50,dive"`
	AddressID  string           `json:"address_id" validate:"omitempty,uuid"`
	CouponCode string           `json:"coupon_code" validate:"max=64"`
}

func (req placeOrderRequest) input(userID uuid.UUID) internalorders.PlaceOrderInput {
	in := internalorders.PlaceOrderInput{
		UserID:     userID,
		CouponCode: validators.SanitizeString(req.CouponCode, 64),
	}
	if req.AddressID != "" {
		in.AddressID = uuid.MustParse(req.AddressID)
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, internalorders.LineRequest{
			ProductID: uuid.MustParse(item.ProductID),
			Size:      validators.SanitizeString(item.Size, 32),
			Quantity:  item.Quantity,
		})
	}
	return in
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=shipping delivered"`
}

func parseListParams(r *http.Request) (internalorders.ListParams, error) {
	limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return internalorders.ListParams{}, err
	}
	status, err := validators.QueryEnum(r, "status", enums.ParseOrderStatus)
	if err != nil {
		return internalorders.ListParams{}, err
	}
	paymentStatus, err := validators.QueryEnum(r, "payment_status", enums.ParsePaymentStatus)
	if err != nil {
		return internalorders.ListParams{}, err
	}
	return internalorders.ListParams{
		Limit:         limit,
		Cursor:        validators.QueryString(r, "cursor"),
		Status:        status,
		PaymentStatus: paymentStatus,
	}, nil
}
