package server

import "github.com/fitmirror/fitmirror/internal/model"

// SetImagesRequest replaces the images the bridge answers REQUEST_IMAGES with.
type SetImagesRequest struct {
	Images            []model.ImageRef `json:"images"`
	RecommendedImages []model.ImageRef `json:"recommendedImages,omitempty"`
}

// LoginSuccessRequest simulates a completed storefront authentication popup.
type LoginSuccessRequest struct {
	Customer model.Customer `json:"customer"`
}

// HostStateResponse reports the bridge's current host-page state.
type HostStateResponse struct {
	WidgetVisible bool             `json:"widget_visible"`
	CartItems     []model.CartItem `json:"cart_items"`
	Widgets       int              `json:"widgets"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
