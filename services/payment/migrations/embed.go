// Package migrations содержит SQL миграции payment service (goose)
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
