// Package migrations содержит SQL миграции user service (goose)
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
