// Package utils provides common utility functions for the booksync
// application. It includes helper functions for coercing duck-typed record
// fields coming from heterogeneous platform payloads, and other shared
// logic that doesn't fit into domain-specific packages.
package utils
