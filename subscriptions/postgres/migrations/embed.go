// Package migrations embeds the SQL schema for the subscriptions table.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
