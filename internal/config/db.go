package config

// DB holds the database configuration settings.
// Engine selects the gorm driver: "sqlite" (default), "mysql" or "postgres".
// Path is only used by the sqlite engine.
type DB struct {
	Engine   string
	Path     string
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

const (
	// EngineSQLite is the embedded pure-Go sqlite engine.
	EngineSQLite = "sqlite"
	// EngineMySQL is the MySQL/MariaDB engine.
	EngineMySQL = "mysql"
	// EnginePostgres is the PostgreSQL engine.
	EnginePostgres = "postgres"
)

// EngineOrDefault returns the configured engine, defaulting to sqlite.
func (d DB) EngineOrDefault() string {
	if d.Engine == "" {
		return EngineSQLite
	}

	return d.Engine
}

// PathOrDefault returns the sqlite database path, defaulting to a local file.
func (d DB) PathOrDefault() string {
	if d.Path == "" {
		return "./dirauthd.db"
	}

	return d.Path
}
