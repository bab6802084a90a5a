// Package sqlite opens SQLite databases through the driver the build
// selected: modernc.org/sqlite by default, or mattn/go-sqlite3 with
// -tags cgo_sqlite.
package sqlite

import "database/sql"

// Open opens the database at path with the selected driver.
func Open(path string) (*sql.DB, error) {
	return sql.Open(driverName, path)
}

// Info describes the selected driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	Package    string `json:"package"`
}

// GetInfo returns the selected driver.
func GetInfo() Info {
	return Info{DriverName: driverName, DriverType: driverType, Package: driverPackage}
}
