// Package library is the persistent book store backing sync runs. It
// wraps GORM batch operations so the apply processor can treat MySQL as
// a sync target with all-or-nothing batches.
package library
