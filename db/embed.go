// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for every storefront table. RunMigrations executes it
// verbatim; all statements are idempotent (IF NOT EXISTS).
//
//go:embed migrations/001_schema.sql
var Schema string
