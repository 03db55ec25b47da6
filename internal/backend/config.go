package backend

import (
	"fmt"

	"finledger/internal/config"
	"finledger/internal/storage/mysql"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (want one of %v)", appConfig.DataBackend, GetBackendTypeStrings())
	}

	gormLevel := "silent"
	if appConfig.LogLevel == "debug" {
		gormLevel = "info"
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		MySQL: mysql.Config{
			Host:     appConfig.MySQLHost,
			Port:     appConfig.MySQLPort,
			User:     appConfig.MySQLUser,
			Password: appConfig.MySQLPassword,
			DBName:   appConfig.MySQLDatabase,
			LogLevel: gormLevel,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MySQLBackend:
		if c.MySQL.Host == "" {
			return fmt.Errorf("MySQL host is required for mysql backend")
		}
		if c.MySQL.DBName == "" {
			return fmt.Errorf("MySQL database name is required for mysql backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MySQLBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}
	return strs
}
