// Package config provides configuration management for the sync service.
//
// It utilizes Viper for loading configuration from environment variables,
// config files (config.yaml), and command-line flags.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, default platform)
//   - Database: MySQL connection details for the book library
//   - Storage: S3/MinIO credentials for the persistent cache tier
//   - Log: Logging level and format
//   - Cache: Partition sizes, TTL, and eviction policy
//   - Validation: Batch sizes, timeout, and auto-fix behavior
//   - Apply: Batch size and retry backoff for change-set application
//   - Sync: Feature toggles, default strategies, and job retention
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
