package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName string
		Env     string // DEV (default) | TEST | QA | PROD
		Debug   bool
		Build   string

		Server   ServerConfig
		Backend  BackendConfig
		Database DatabaseConfig
		Upload   UploadConfig

		RollbarToken string
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	// BackendConfig points the REST gateway at the content backend.
	BackendConfig struct {
		BaseURL string
		Token   string // opaque bearer token; issued by the identity provider
		Timeout time.Duration
	}

	DatabaseConfig struct {
		Engine   string // bolt | postgres
		Path     string // bolt file
		Host     string
		Port     int
		Name     string
		User     string
		Password string
	}

	UploadConfig struct {
		B2KeyID   string
		B2AppKey  string
		B2Bucket  string
		B2BaseURL string
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "dev")
	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("backendBaseUrl", "http://localhost:8000")
	v.SetDefault("backendTimeout", 15*time.Second)
	v.SetDefault("dbEngine", "bolt")
	v.SetDefault("dbPath", "darasa.db")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "darasa")

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName: v.GetString("appName"),
		Env:     env,
		Debug:   v.GetBool("debug"),
		Build:   v.GetString("build"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Port:            v.GetInt("serverPort"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Backend: BackendConfig{
			BaseURL: v.GetString("backendBaseUrl"),
			Token:   v.GetString("backendToken"),
			Timeout: v.GetDuration("backendTimeout"),
		},
		Database: DatabaseConfig{
			Engine:   v.GetString("dbEngine"),
			Path:     v.GetString("dbPath"),
			Host:     v.GetString("dbHost"),
			Port:     v.GetInt("dbPort"),
			Name:     v.GetString("dbName"),
			User:     v.GetString("dbUser"),
			Password: v.GetString("dbPassword"),
		},
		Upload: UploadConfig{
			B2KeyID:   v.GetString("b2KeyId"),
			B2AppKey:  v.GetString("b2AppKey"),
			B2Bucket:  v.GetString("b2Bucket"),
			B2BaseURL: v.GetString("b2BaseUrl"),
		},
	}
	if err := conf.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func (c *Config) Validate() error {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.Env, "env"),
		vala.StringNotEmpty(c.Backend.BaseURL, "backendBaseUrl"),
		vala.StringNotEmpty(c.Database.Engine, "dbEngine"),
	).Check()
	if err != nil {
		return err
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("serverShutdownTimeout must be positive")
	}
	switch c.Database.Engine {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("unsupported dbEngine %q", c.Database.Engine)
	}
	return nil
}
