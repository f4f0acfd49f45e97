package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Server is the environment surface of cmd/server. Flags given on the
// command line take precedence.
type Server struct {
	Port int `env:"PORT" envDefault:"8765"`
	// RailwayEnvironment is set by the hosting platform; any value means
	// "hosted" and binds every interface.
	RailwayEnvironment string `env:"RAILWAY_ENVIRONMENT"`

	EnableObserver bool `env:"HIVE_ENABLE_OBSERVER" envDefault:"true"`
	SnapshotKeep   int  `env:"HIVE_SNAPSHOT_KEEP" envDefault:"50"`
	DisableDB      bool `env:"HIVE_DISABLE_DB"`

	R2 R2 `envPrefix:"HIVE_R2_"`
}

// R2 configures the optional snapshot mirror.
type R2 struct {
	Enabled         bool   `env:"MIRROR"`
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX"`
	Workers         int    `env:"UPLOAD_WORKERS" envDefault:"2"`
}

func LoadServer() (Server, error) {
	var s Server
	if err := ParseEnv(&s); err != nil {
		return s, err
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Server) Hosted() bool { return strings.TrimSpace(s.RailwayEnvironment) != "" }

// Addr is the default listen address: all interfaces when hosted,
// localhost otherwise.
func (s Server) Addr() string {
	host := "localhost"
	if s.Hosted() {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

func (s Server) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", s.Port)
	}
	if s.SnapshotKeep < 0 {
		return fmt.Errorf("HIVE_SNAPSHOT_KEEP must be >= 0, got %d", s.SnapshotKeep)
	}
	if s.R2.Enabled {
		if strings.TrimSpace(s.R2.Endpoint) == "" || strings.TrimSpace(s.R2.Bucket) == "" ||
			strings.TrimSpace(s.R2.AccessKeyID) == "" || strings.TrimSpace(s.R2.SecretAccessKey) == "" {
			return fmt.Errorf("HIVE_R2_MIRROR=true but HIVE_R2_ENDPOINT/HIVE_R2_BUCKET/HIVE_R2_ACCESS_KEY_ID/HIVE_R2_SECRET_ACCESS_KEY are not fully set")
		}
	}
	return nil
}
