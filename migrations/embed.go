// Package migrations embeds the request log schema for golang-migrate and tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
