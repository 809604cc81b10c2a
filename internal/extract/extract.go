package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fitmirror/fitmirror/internal/model"
)

// src/class fragments that mark an <img> as chrome rather than merchandise.
var rejectHints = []string{"logo", "icon", "sprite", "avatar", "badge", "favicon", "pixel"}

// src/class fragments that mark an <img> as a likely product shot.
var acceptHints = []string{"product", "cdn", "gallery", "media", "collection", "item"}

// minDeclaredSize rejects images that declare themselves smaller than a
// plausible product photo.
const minDeclaredSize = 100

// Inspector is the goquery-backed page inspector used in standalone mode. It
// satisfies storectx.DOMInspector.
type Inspector struct{}

// ProductImages heuristically extracts likely product images from storefront
// page markup. og:image metas come first, then scored <img> elements in
// document order. Relative srcs are resolved against baseURL. Duplicates are
// preserved; consumers that key by URL collapse them implicitly.
func ProductImages(html, baseURL string) ([]model.ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(baseURL)
	var refs []model.ImageRef

	doc.Find(`meta[property="og:image"], meta[name="og:image"]`).Each(func(i int, meta *goquery.Selection) {
		if content, ok := meta.Attr("content"); ok && content != "" {
			if resolved := resolveSrc(base, content); resolved != "" {
				refs = append(refs, model.ImageRef{URL: resolved, ID: productIDFor(meta)})
			}
		}
	})

	doc.Find("img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			if src, ok = img.Attr("data-src"); !ok || src == "" {
				return
			}
		}
		if strings.HasPrefix(src, "data:") {
			return
		}
		if !plausibleProductImage(img, src) {
			return
		}
		if resolved := resolveSrc(base, src); resolved != "" {
			refs = append(refs, model.ImageRef{URL: resolved, ID: productIDFor(img)})
		}
	})

	return refs, nil
}

// StoreDomain reads store identity out of hosting-page markup, preferring a
// canonical link, then og:url. ok is false when neither yields a host.
func (Inspector) StoreDomain(html string) (domain, fullURL string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", false
	}

	candidates := []string{}
	if href, found := doc.Find(`link[rel="canonical"]`).Attr("href"); found {
		candidates = append(candidates, href)
	}
	if content, found := doc.Find(`meta[property="og:url"]`).Attr("content"); found {
		candidates = append(candidates, content)
	}

	for _, c := range candidates {
		u, err := url.Parse(strings.TrimSpace(c))
		if err != nil || u.Hostname() == "" {
			continue
		}
		return u.Hostname(), c, true
	}
	return "", "", false
}

func plausibleProductImage(img *goquery.Selection, src string) bool {
	lower := strings.ToLower(src)
	class, _ := img.Attr("class")
	lowerClass := strings.ToLower(class)

	for _, hint := range rejectHints {
		if strings.Contains(lower, hint) || strings.Contains(lowerClass, hint) {
			return false
		}
	}

	if declaredTooSmall(img, "width") || declaredTooSmall(img, "height") {
		return false
	}

	for _, hint := range acceptHints {
		if strings.Contains(lower, hint) || strings.Contains(lowerClass, hint) {
			return true
		}
	}

	// No hint either way: accept when an ancestor container looks like a
	// product gallery.
	accepted := false
	img.Parents().EachWithBreak(func(i int, p *goquery.Selection) bool {
		pc, _ := p.Attr("class")
		pcl := strings.ToLower(pc)
		for _, hint := range acceptHints {
			if strings.Contains(pcl, hint) {
				accepted = true
				return false
			}
		}
		return true
	})
	return accepted
}

func declaredTooSmall(img *goquery.Selection, attr string) bool {
	v, ok := img.Attr(attr)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return false
	}
	return n > 0 && n < minDeclaredSize
}

// productIDFor walks the element and its ancestors for a data-product-id
// attribute so extracted images keep their backend key when the theme
// provides one.
func productIDFor(sel *goquery.Selection) any {
	if id, ok := sel.Attr("data-product-id"); ok && id != "" {
		return id
	}
	var found any
	sel.Parents().EachWithBreak(func(i int, p *goquery.Selection) bool {
		if id, ok := p.Attr("data-product-id"); ok && id != "" {
			found = id
			return false
		}
		return true
	})
	return found
}

func resolveSrc(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
