// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly configure
// MySQL connections (or SQLite for local use) based on the application's configuration.
//
// # Connect
//
// The generic Connect function establishes a connection to the database holding the
// book library. The connection is optional: the service degrades to cache-only
// operation when it fails.
//
// # Schema Inspection
//
// The package includes tools to inspect the database schema so startup can warn
// about drift between the books table and the record model before sync runs
// write to it.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "books")
package database
