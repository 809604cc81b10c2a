package main

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/fitmirror/fitmirror/internal/demostore"
	"github.com/fitmirror/fitmirror/internal/extract"
	"github.com/fitmirror/fitmirror/internal/pageclient"
)

func main() {
	// Spin up the demo storefront in-process and run the standalone
	// extraction path against its product page.
	store := demostore.NewDemoStore(demostore.DefaultConfig())
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	pc, err := pageclient.New(pageclient.DefaultConfig(), nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer pc.Close()

	pageURL := srv.URL + "/products/classic-tee"
	resp, err := pc.Get(context.Background(), pageURL)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	refs, err := extract.ProductImages(string(resp.Body), pageURL)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("extracted %d product images:\n", len(refs))
	for _, r := range refs {
		fmt.Printf("  %v %s\n", r.ID, r.URL)
	}
}
