// Package assets embeds the SQL migrations so the binary can migrate without a checkout.
package assets

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
