// Package conflict detects disagreements between local and remote book
// records and resolves them through pluggable named strategies. Every
// decision lands in a bounded history ring for auditing.
package conflict
