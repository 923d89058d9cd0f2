// internal/config/database.go
package config

import (
	"fmt"
)

// DSN builds a libpq keyword/value connection string. Timestamps are stored
// in UTC so download expiries compare the same way on every node.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
