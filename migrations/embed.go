// Package migrations embeds the schema files for the migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
