package model

import "encoding/json"

// Message types the host page sends to the widget.
const (
	MsgProductImages        = "PRODUCT_IMAGES"
	MsgStoreInfo            = "STORE_INFO"
	MsgCartItems            = "CART_ITEMS"
	MsgCustomerLoginSuccess = "CUSTOMER_LOGIN_SUCCESS"
	MsgCloseWidget          = "CLOSE_WIDGET"
	MsgOpenWidget           = "OPEN_WIDGET"
	MsgActionResult         = "ACTION_RESULT"
)

// Message types the widget sends to the host page. All are posted with a
// wildcard target origin since the host origin varies by storefront; trust is
// applied on the receiving side.
const (
	MsgRequestImages      = "REQUEST_IMAGES"
	MsgRequestStoreInfo   = "REQUEST_STORE_INFO"
	MsgRequestCartItems   = "REQUEST_CART_ITEMS"
	MsgRequestCartState   = "REQUEST_CART_STATE"
	MsgRequestProductData = "REQUEST_PRODUCT_DATA"
	MsgAddToCart          = "ADD_TO_CART"
	MsgBuyNow             = "BUY_NOW"
	MsgNotifyMe           = "NOTIFY_ME"
)

// Envelope is the wire form of every cross-frame message. Payload stays raw so
// each consumer can decode only the types it cares about; RequestID correlates
// request/response pairs such as REQUEST_STORE_INFO / STORE_INFO.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ProductImagesPayload carries the host page's product images. Entries may be
// bare URL strings or {id,url} objects; ImageRef handles both.
type ProductImagesPayload struct {
	Images            []ImageRef `json:"images"`
	RecommendedImages []ImageRef `json:"recommendedImages,omitempty"`
}

// StoreInfoPayload answers REQUEST_STORE_INFO.
type StoreInfoPayload struct {
	Domain     string `json:"domain"`
	FullURL    string `json:"fullUrl"`
	ShopDomain string `json:"shopDomain"`
	Origin     string `json:"origin"`
}

// CartItem is one line of the host cart, used as the reconciler's last-resort
// image source.
type CartItem struct {
	URL       string `json:"url"`
	ID        any    `json:"id,omitempty"`
	VariantID any    `json:"variantId,omitempty"`
}

// CartItemsPayload answers REQUEST_CART_ITEMS.
type CartItemsPayload struct {
	Items []CartItem `json:"items"`
}

// Customer is the authenticated-customer record delivered on login success.
type Customer struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// CustomerLoginPayload carries the customer record of a completed storefront
// authentication flow.
type CustomerLoginPayload struct {
	Customer Customer `json:"customer"`
}

// ActionResultPayload reports the outcome of a host-side cart/buy/notify
// action back to the widget.
type ActionResultPayload struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AddToCartPayload asks the host to add a product to the cart.
type AddToCartPayload struct {
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	VariantID any    `json:"variantId,omitempty"`
}

// BuyNowPayload asks the host to start a checkout for a product.
type BuyNowPayload struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// NotifyMePayload asks the host to register a back-in-stock notification.
type NotifyMePayload struct {
	Product   string `json:"product"`
	VariantID any    `json:"variantId,omitempty"`
}

// MarshalPayload is a small helper for building envelopes with typed payloads.
func MarshalPayload(msgType string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}
