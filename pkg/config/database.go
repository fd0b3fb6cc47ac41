package config

import "fmt"

// DatabaseConfig holds SQL database settings for chats, messages and
// document records. Supports SQLite (default), PostgreSQL and MySQL.
type DatabaseConfig struct {
	// Driver selects the database driver: "sqlite", "postgres" or "mysql".
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"title=Driver,description=Database driver,enum=sqlite,enum=sqlite3,enum=postgres,enum=mysql,default=sqlite"`

	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=Database name (file path for SQLite),default=data/minirag.db"`

	// Host is the server hostname (unused for SQLite).
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Database server hostname"`

	// Port is the server port (unused for SQLite).
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Database server port"`

	// Username for authentication (unused for SQLite).
	Username string `yaml:"username,omitempty" json:"username,omitempty" jsonschema:"title=Username"`

	// Password for authentication (unused for SQLite).
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" jsonschema:"title=SSL Mode,description=SSL mode for PostgreSQL"`

	// MaxConns caps open connections (ignored for SQLite, which is
	// forced to a single connection).
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"title=Max Open Connections,minimum=1,default=25"`

	// MaxIdle caps idle connections.
	MaxIdle int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"title=Max Idle Connections,minimum=1,default=5"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.Database == "" && c.isSQLite() {
		c.Database = "data/minirag.db"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *DatabaseConfig) Validate() error {
	valid := map[string]bool{"sqlite": true, "sqlite3": true, "postgres": true, "mysql": true}
	if !valid[c.Driver] {
		return fmt.Errorf("invalid driver %q (valid: sqlite, postgres, mysql)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if !c.isSQLite() && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

func (c *DatabaseConfig) isSQLite() bool {
	return c.Driver == "" || c.Driver == "sqlite" || c.Driver == "sqlite3"
}

// DSN returns the connection string for sql.Open.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		return dsn
	case "mysql":
		// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname?parseTime=true
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	default:
		// SQLite: the database field is the file path. foreign_keys is
		// required for ON DELETE CASCADE on messages.
		return c.Database + "?_foreign_keys=on"
	}
}

// DriverName returns the registered driver name for sql.Open.
func (c *DatabaseConfig) DriverName() string {
	if c.isSQLite() {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the SQL dialect for query building (placeholders,
// upsert syntax).
func (c *DatabaseConfig) Dialect() string {
	if c.isSQLite() {
		return "sqlite"
	}
	return c.Driver
}
