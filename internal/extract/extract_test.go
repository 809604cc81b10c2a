package extract_test

import (
	"testing"

	"github.com/fitmirror/fitmirror/internal/extract"
)

const productPage = `<!DOCTYPE html>
<html>
<head>
  <link rel="canonical" href="https://demo-store.myshopify.com/products/classic-tee">
  <meta property="og:image" content="https://cdn.example/products/tee-main.jpg">
</head>
<body>
  <img src="/static/logo.png" class="site-logo">
  <div class="product-gallery" data-product-id="gid://shopify/Product/8412795">
    <img src="/cdn/products/tee-front.jpg" width="1200">
    <img src="/cdn/products/tee-back.jpg" width="1200">
    <img src="/static/ruler-icon.png" width="24" height="24">
  </div>
  <img src="plain.jpg">
</body>
</html>`

func TestProductImages(t *testing.T) {
	refs, err := extract.ProductImages(productPage, "https://demo-store.myshopify.com/products/classic-tee")
	if err != nil {
		t.Fatalf("ProductImages returned error: %v", err)
	}

	want := []string{
		"https://cdn.example/products/tee-main.jpg",
		"https://demo-store.myshopify.com/cdn/products/tee-front.jpg",
		"https://demo-store.myshopify.com/cdn/products/tee-back.jpg",
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d images, got %d: %+v", len(want), len(refs), refs)
	}
	for i, w := range want {
		if refs[i].URL != w {
			t.Errorf("image %d: got %q, want %q", i, refs[i].URL, w)
		}
	}

	// Gallery images inherit the container's product id
	if refs[1].ID != "gid://shopify/Product/8412795" {
		t.Errorf("expected gallery image to carry data-product-id, got %v", refs[1].ID)
	}
}

func TestProductImagesRejectsChrome(t *testing.T) {
	html := `<html><body>
	  <img src="/logo.png" width="400">
	  <img src="/icons/cart.svg">
	  <img src="/banner.jpg" class="promo-sprite">
	</body></html>`
	refs, err := extract.ProductImages(html, "https://shop.example/")
	if err != nil {
		t.Fatalf("ProductImages returned error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no images from chrome-only page, got %+v", refs)
	}
}

func TestStoreDomain(t *testing.T) {
	domain, fullURL, ok := extract.Inspector{}.StoreDomain(productPage)
	if !ok {
		t.Fatal("expected store domain from canonical link")
	}
	if domain != "demo-store.myshopify.com" {
		t.Errorf("domain = %q", domain)
	}
	if fullURL != "https://demo-store.myshopify.com/products/classic-tee" {
		t.Errorf("fullURL = %q", fullURL)
	}

	if _, _, ok := (extract.Inspector{}).StoreDomain("<html><body>nothing</body></html>"); ok {
		t.Error("expected no store domain from empty page")
	}
}
