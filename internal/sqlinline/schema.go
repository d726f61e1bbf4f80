package sqlinline

import _ "embed"

// Schema is the idempotent DDL applied when DB_AUTO_MIGRATE is enabled.
//
//go:embed schema.sql
var Schema string
