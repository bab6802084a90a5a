// Package sqliteexternal registers the CGO SQLite driver
// (github.com/mattn/go-sqlite3) for builds that opt into it:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/promptfix
//
// The default build uses the pure Go driver selected in core/sqlite and
// needs no C toolchain. The CGO driver is faster on large audit logs.
package sqliteexternal
