// Package server holds the HTTP server configuration and constants.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structures for server settings, such as the listen
// port, the API key, and the default reading platform.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server settings.
package server
