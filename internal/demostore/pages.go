package demostore

// PageDefinition is one demo storefront page.
type PageDefinition struct {
	Path  string
	Title string
	HTML  string
}

// GetAllPages returns the demo storefront pages. The product pages carry
// realistic theme markup: og tags, gallery containers and data-product-id
// attributes, so the widget's DOM extraction has something to chew on.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		{
			Path:  "/",
			Title: "Demo Store",
			HTML: `<!DOCTYPE html>
<html>
<head>
  <title>Demo Store</title>
  <link rel="canonical" href="https://demo-store.myshopify.com/">
</head>
<body>
  <img src="/static/logo.png" class="site-logo" alt="Demo Store">
  <nav>
    <a href="/products/classic-tee">Classic Tee</a>
    <a href="/products/denim-jacket">Denim Jacket</a>
  </nav>
</body>
</html>`,
		},
		{
			Path:  "/products/classic-tee",
			Title: "Classic Tee",
			HTML: `<!DOCTYPE html>
<html>
<head>
  <title>Classic Tee</title>
  <link rel="canonical" href="https://demo-store.myshopify.com/products/classic-tee">
  <meta property="og:url" content="https://demo-store.myshopify.com/products/classic-tee">
  <meta property="og:image" content="https://cdn.demo-store.example/products/classic-tee-main.jpg">
</head>
<body>
  <img src="/static/logo.png" class="site-logo" alt="Demo Store">
  <div class="product-gallery" data-product-id="gid://shopify/Product/8412795">
    <img src="https://cdn.demo-store.example/products/classic-tee-main.jpg" class="product-media" width="1200" height="1600">
    <img src="https://cdn.demo-store.example/products/classic-tee-back.jpg" class="product-media" width="1200" height="1600">
    <img src="/static/size-icon.png" class="size-icon" width="24" height="24">
  </div>
</body>
</html>`,
		},
		{
			Path:  "/products/denim-jacket",
			Title: "Denim Jacket",
			HTML: `<!DOCTYPE html>
<html>
<head>
  <title>Denim Jacket</title>
  <link rel="canonical" href="https://demo-store.myshopify.com/products/denim-jacket">
  <meta property="og:image" content="https://cdn.demo-store.example/products/denim-jacket-main.jpg">
</head>
<body>
  <div class="product-gallery" data-product-id="gid://shopify/Product/8412900">
    <img src="https://cdn.demo-store.example/products/denim-jacket-main.jpg" class="product-media" width="1200" height="1600">
  </div>
</body>
</html>`,
		},
	}
}
