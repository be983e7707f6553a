package db

import "time"

// Config is the connection and pool configuration for the shared *gorm.DB.
// Durations in seconds mirror the environment variables they come from.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int

	SlowQuery time.Duration
	LogSQL    bool
}
