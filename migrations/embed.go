// Package migrations embeds the goose SQL migrations for the local
// attachment queue table.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
