// Package postgres embeds SQL migration files.
package postgres

import "embed"

// FS contains the schema migrations, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
