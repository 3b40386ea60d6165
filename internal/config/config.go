package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	Redis     RedisConfig     `yaml:"redis"`
	Grading   GradingConfig   `yaml:"grading"`
	Log       LogConfig       `yaml:"log"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"`            // debug, release, test
	AllowedOrigins []string `yaml:"allowed_origins"` // empty allows any origin without credentials
	AuthRateLimit  float64  `yaml:"auth_rate_limit"` // requests per second per IP on /api/auth
	AuthRateBurst  int      `yaml:"auth_rate_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

// LDAPConfig enables sign-in against a campus directory. Users whose
// RoleAttribute carries one of ProfessorValues are provisioned as professors.
type LDAPConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	BaseDN          string   `yaml:"base_dn"`
	BindDN          string   `yaml:"bind_dn"`
	BindPassword    string   `yaml:"bind_password"`
	UserFilter      string   `yaml:"user_filter"`
	UseSSL          bool     `yaml:"use_ssl"`
	RoleAttribute   string   `yaml:"role_attribute"`
	ProfessorValues []string `yaml:"professor_values"`
}

// RedisConfig for optional async notification delivery
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GradingConfig struct {
	MinGrade        float64 `yaml:"min_grade"`
	MaxGrade        float64 `yaml:"max_grade"`
	MaxTeamSize     int     `yaml:"max_team_size"`
	DefaultJurySize int     `yaml:"default_jury_size"`
	Timezone        string  `yaml:"timezone"`
	ReminderCron    string  `yaml:"reminder_cron"` // empty disables reminders
}

type LogConfig struct {
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retention_days"` // audit log retention
}

// BootstrapConfig seeds a first professor account on an empty database.
type BootstrapConfig struct {
	ProfessorEmail    string `yaml:"professor_email"`
	ProfessorName     string `yaml:"professor_name"`
	ProfessorPassword string `yaml:"professor_password"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          "3000",
			Mode:          "debug",
			AuthRateLimit: 5,
			AuthRateBurst: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "econify.db",
		},
		JWT: JWTConfig{
			Secret:            "econify-secret-key-change-in-production",
			ExpireHour:        1,
			RefreshExpireHour: 720,
		},
		LDAP: LDAPConfig{
			Enabled:         false,
			Port:            389,
			UserFilter:      "(mail=%s)",
			RoleAttribute:   "eduPersonAffiliation",
			ProfessorValues: []string{"faculty", "staff"},
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Grading: GradingConfig{
			MinGrade:        1,
			MaxGrade:        10,
			MaxTeamSize:     5,
			DefaultJurySize: 3,
			Timezone:        "UTC",
			ReminderCron:    "0 9 * * *",
		},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: 30,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = c.Server.AllowedOrigins[:0]
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if hours := os.Getenv("JWT_EXPIRE_HOUR"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil && h > 0 {
			c.JWT.ExpireHour = h
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if tz := os.Getenv("GRADING_TIMEZONE"); tz != "" {
		c.Grading.Timezone = tz
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// Location resolves the grading timezone, falling back to UTC when the
// configured name is unknown.
func (g *GradingConfig) Location() *time.Location {
	if g.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
