// Package migrations embeds the SQL migration files into the binary.
package migrations

import (
	"embed"

	"github.com/steamcity/iot-platform/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
