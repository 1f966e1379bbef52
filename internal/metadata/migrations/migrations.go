// Package migrations embeds the goose SQL migrations for a per-client
// metadata database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
