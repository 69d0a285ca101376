// Package db embeds the PostgreSQL migrations applied at startup.
package db

import "embed"

// Migrations holds the numbered SQL files under migrations/, applied in
// lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
