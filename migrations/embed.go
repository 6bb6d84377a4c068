// Package migrations embeds the goose SQL migrations applied by the store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
