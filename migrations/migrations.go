// Package migrations embeds the schema migrations for every supported store.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per database driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
