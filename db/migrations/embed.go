// Package migrations embeds the SQL migrations applied to the Postgres ledger backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
