package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title FitMirror Host Bridge API
// @version 0.1
// @description Interactive documentation for the host bridge that relays cross-frame messages between storefront pages and embedded try-on widgets.
// @contact.name FitMirror Maintainers
// @contact.url https://github.com/fitmirror/fitmirror
// @BasePath /
