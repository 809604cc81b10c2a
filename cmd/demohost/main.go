// Command demohost starts the host bridge and the demo storefront together.
// Usage: go run ./cmd/demohost [bridge-port]
// Default bridge port: 8788
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/fitmirror/fitmirror/internal/demostore"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/server"
)

func main() {
	cfg := server.DefaultConfig()

	// Optional: custom bridge port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.ListenAddr = fmt.Sprintf(":%d", port)
	}

	logger := logging.NewStdoutLogger("demohost")

	storeCfg := demostore.DefaultConfig()
	storeCfg.BridgeURL = "http://localhost" + cfg.ListenAddr
	store := demostore.NewDemoStore(storeCfg)

	go func() {
		if err := store.Start(); err != nil {
			log.Fatalf("demo storefront: %v", err)
		}
	}()

	bridge := server.NewServer(cfg, logger)
	defer bridge.Close()

	fmt.Printf("Host bridge listening on %s\n", cfg.ListenAddr)
	fmt.Printf("Widget socket at ws://localhost%s/widget/ws\n", cfg.ListenAddr)
	fmt.Printf("Swagger UI at http://localhost%s/swagger/index.html\n", cfg.ListenAddr)

	if err := bridge.HTTPServer().ListenAndServe(); err != nil {
		log.Fatalf("host bridge: %v", err)
	}
}
