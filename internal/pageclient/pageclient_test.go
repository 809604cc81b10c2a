package pageclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/pageclient"
)

func TestNetHTTPClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	pc, err := pageclient.NewNetHTTPClient(pageclient.DefaultConfig(), logging.NewTestLogger(false), srv.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	defer pc.Close()

	resp, err := pc.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html>hello</html>" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.Headers.Get("Content-Type") != "text/html" {
		t.Errorf("content type = %q", resp.Headers.Get("Content-Type"))
	}
	if resp.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestNetHTTPClientDoPassesHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "yes" {
			t.Errorf("header missing, got %q", r.Header.Get("X-Probe"))
		}
	}))
	defer srv.Close()

	pc, err := pageclient.NewNetHTTPClient(pageclient.DefaultConfig(), logging.NewTestLogger(false), srv.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	defer pc.Close()

	_, err = pc.Do(context.Background(), &pageclient.Request{
		URL:     srv.URL,
		Headers: http.Header{"X-Probe": []string{"yes"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if _, err := pc.Do(context.Background(), nil); err == nil {
		t.Error("nil request must error")
	}
}

func TestFactoryDefaultsToNetHTTP(t *testing.T) {
	pc, err := pageclient.New(pageclient.Config{}, logging.NewTestLogger(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pc.Close()
	if _, ok := pc.(*pageclient.NetHTTPClient); !ok {
		t.Fatalf("default backend = %T", pc)
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	if _, err := pageclient.New(pageclient.Config{Backend: "carrier-pigeon"}, logging.NewTestLogger(false)); err == nil {
		t.Fatal("expected error for unregistered backend")
	}
}

func TestListBackends(t *testing.T) {
	names := pageclient.ListBackends()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found[pageclient.BackendNetHTTP] || !found[pageclient.BackendChromedp] {
		t.Fatalf("registered backends = %v", names)
	}
}
