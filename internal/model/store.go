package model

// ContextMethod records how the widget learned which storefront it runs on.
type ContextMethod string

const (
	MethodUnknown       ContextMethod = "unknown"
	MethodURL           ContextMethod = "url"
	MethodDOM           ContextMethod = "dom"
	MethodPostMessage   ContextMethod = "postmessage"
	MethodParentRequest ContextMethod = "parent-request"
)

// StoreContext describes the storefront the widget is embedded in and the
// strategy that produced the information.
type StoreContext struct {
	Domain     string        `json:"domain"`
	ShopDomain string        `json:"shopDomain"`
	FullURL    string        `json:"fullUrl"`
	Origin     string        `json:"origin"`
	Method     ContextMethod `json:"method"`
}

// Known returns true when the context carries more than the zero method.
func (c StoreContext) Known() bool {
	return c.Method != "" && c.Method != MethodUnknown
}
