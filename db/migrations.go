// Package db carries the SQL schema shipped with the binary.
package db

import "embed"

// Migrations holds the ordered *.up.sql files applied by store.Migrate.
//
//go:embed migrations/*.up.sql
var Migrations embed.FS
