package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string

		Server    ServerConfig
		Auth      AuthConfig
		Database  DatabaseConfig
		LDAP      LDAPConfig
		Email     EmailConfig
		SAP       SAPConfig
		Scheduler SchedulerConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		CORSOrigins     []string
		RateLimit       float64 // requests per second per client IP
		LoginRateLimit  float64
		BodyLimit       string
	}

	AuthConfig struct {
		JWTExpirationDelta time.Duration
		SessionIdleTimeout time.Duration // sliding expiration
		SessionMaxDuration time.Duration // hard cap from session creation
	}

	DatabaseConfig struct {
		Engine          string
		Host            string
		Port            int
		Name            string
		User            string
		Password        string
		Encrypt         string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	LDAPConfig struct {
		Enabled      bool
		URL          string
		BaseDN       string
		BindDN       string
		BindPassword string
		UserFilter   string
		Timeout      time.Duration
		MaxRetries   uint64
	}

	EmailConfig struct {
		DefaultFromEmail string
		SendgridAPIKey   string
		RatePerSecond    float64
		BatchSize        int
	}

	SAPConfig struct {
		Enabled    bool
		BaseURL    string
		Username   string
		Password   string
		Timeout    time.Duration
		MaxRetries uint64
	}

	SchedulerConfig struct {
		Enabled  bool
		Spec     string
		Timezone string // location used to read ScheduledTime values
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Email.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.Email.DefaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed with the current env, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "CSI Portal")
	conf.SetDefault("secretKey", "k2$w9+csi)portal!q7=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server_host", ":8080")
	conf.SetDefault("server_debugHost", ":4000")
	conf.SetDefault("server_shutdownTimeout", 10*time.Second)
	conf.SetDefault("server_corsOrigins", "http://localhost:3000")
	conf.SetDefault("server_rateLimit", 20.0)
	conf.SetDefault("server_loginRateLimit", 1.0)
	conf.SetDefault("server_bodyLimit", "10M")

	conf.SetDefault("auth_jwtExpirationDelta", 8*time.Hour)
	conf.SetDefault("auth_sessionIdleTimeout", 30*time.Minute)
	conf.SetDefault("auth_sessionMaxDuration", 8*time.Hour)

	conf.SetDefault("database_engine", "sqlserver")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", 1433)
	conf.SetDefault("database_name", "CSIPortal")
	conf.SetDefault("database_user", "sa")
	conf.SetDefault("database_password", "")
	conf.SetDefault("database_encrypt", "disable")
	conf.SetDefault("database_maxOpenConns", 10)
	conf.SetDefault("database_maxIdleConns", 5)
	conf.SetDefault("database_connMaxLifetime", 30*time.Minute)

	conf.SetDefault("ldap_enabled", false)
	conf.SetDefault("ldap_url", "ldap://localhost:389")
	conf.SetDefault("ldap_baseDN", "")
	conf.SetDefault("ldap_bindDN", "")
	conf.SetDefault("ldap_bindPassword", "")
	conf.SetDefault("ldap_userFilter", "(sAMAccountName=%s)")
	conf.SetDefault("ldap_timeout", 10*time.Second)
	conf.SetDefault("ldap_maxRetries", 3)

	conf.SetDefault("email_defaultFromEmail", "noreply@localhost")
	conf.SetDefault("email_sendgridApiKey", "")
	conf.SetDefault("email_ratePerSecond", 5.0)
	conf.SetDefault("email_batchSize", 50)

	conf.SetDefault("sap_enabled", false)
	conf.SetDefault("sap_baseURL", "")
	conf.SetDefault("sap_username", "")
	conf.SetDefault("sap_password", "")
	conf.SetDefault("sap_timeout", 30*time.Second)
	conf.SetDefault("sap_maxRetries", 3)

	conf.SetDefault("scheduler_enabled", true)
	conf.SetDefault("scheduler_spec", "@every 1m")
	conf.SetDefault("scheduler_timezone", "UTC")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()
	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           conf.GetString("build"),
		Debug:           conf.GetBool("debug"),
		TestMode:        env == "TEST",
		AppName:         conf.GetString("appName"),
		SecretKey:       conf.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(conf.GetString("frontendBaseURL"), "/"),
		WorkDir:         wd,
		RollbarToken:    conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            conf.GetString("server_host"),
			DebugHost:       conf.GetString("server_debugHost"),
			ShutdownTimeout: conf.GetDuration("server_shutdownTimeout"),
			CORSOrigins:     splitList(conf.GetString("server_corsOrigins")),
			RateLimit:       conf.GetFloat64("server_rateLimit"),
			LoginRateLimit:  conf.GetFloat64("server_loginRateLimit"),
			BodyLimit:       conf.GetString("server_bodyLimit"),
		},
		Auth: AuthConfig{
			JWTExpirationDelta: conf.GetDuration("auth_jwtExpirationDelta"),
			SessionIdleTimeout: conf.GetDuration("auth_sessionIdleTimeout"),
			SessionMaxDuration: conf.GetDuration("auth_sessionMaxDuration"),
		},
		Database: DatabaseConfig{
			Engine:          conf.GetString("database_engine"),
			Host:            conf.GetString("database_host"),
			Port:            conf.GetInt("database_port"),
			Name:            conf.GetString("database_name"),
			User:            conf.GetString("database_user"),
			Password:        conf.GetString("database_password"),
			Encrypt:         conf.GetString("database_encrypt"),
			MaxOpenConns:    conf.GetInt("database_maxOpenConns"),
			MaxIdleConns:    conf.GetInt("database_maxIdleConns"),
			ConnMaxLifetime: conf.GetDuration("database_connMaxLifetime"),
		},
		LDAP: LDAPConfig{
			Enabled:      conf.GetBool("ldap_enabled"),
			URL:          conf.GetString("ldap_url"),
			BaseDN:       conf.GetString("ldap_baseDN"),
			BindDN:       conf.GetString("ldap_bindDN"),
			BindPassword: conf.GetString("ldap_bindPassword"),
			UserFilter:   conf.GetString("ldap_userFilter"),
			Timeout:      conf.GetDuration("ldap_timeout"),
			MaxRetries:   conf.GetUint64("ldap_maxRetries"),
		},
		Email: EmailConfig{
			DefaultFromEmail: conf.GetString("email_defaultFromEmail"),
			SendgridAPIKey:   conf.GetString("email_sendgridApiKey"),
			RatePerSecond:    conf.GetFloat64("email_ratePerSecond"),
			BatchSize:        conf.GetInt("email_batchSize"),
		},
		SAP: SAPConfig{
			Enabled:    conf.GetBool("sap_enabled"),
			BaseURL:    strings.TrimRight(conf.GetString("sap_baseURL"), "/"),
			Username:   conf.GetString("sap_username"),
			Password:   conf.GetString("sap_password"),
			Timeout:    conf.GetDuration("sap_timeout"),
			MaxRetries: conf.GetUint64("sap_maxRetries"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  conf.GetBool("scheduler_enabled"),
			Spec:     conf.GetString("scheduler_spec"),
			Timezone: conf.GetString("scheduler_timezone"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		AppName:         "CSI Portal",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		Server: ServerConfig{
			ShutdownTimeout: time.Second,
			CORSOrigins:     []string{"*"},
			BodyLimit:       "10M",
		},
		Auth: AuthConfig{
			JWTExpirationDelta: 8 * time.Hour,
			SessionIdleTimeout: 30 * time.Minute,
			SessionMaxDuration: 8 * time.Hour,
		},
		Email: EmailConfig{
			DefaultFromEmail: "noreply@localhost",
			RatePerSecond:    1000,
			BatchSize:        10,
		},
		LDAP:      LDAPConfig{UserFilter: "(sAMAccountName=%s)", MaxRetries: 1},
		SAP:       SAPConfig{MaxRetries: 1},
		Scheduler: SchedulerConfig{Spec: "@every 1m", Timezone: "UTC"},
	}
}

// Location returns the scheduler time zone, defaulting to UTC when unknown.
func (c SchedulerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
