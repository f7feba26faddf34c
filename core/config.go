package core

import (
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo for containers without one

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		Build            string
		AppName          string
		GymName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		Location         *time.Location

		Server     ServerConfig
		Database   DatabaseConfig
		Cache      CacheConfig
		Storage    StorageConfig
		Membership MembershipConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		AuthRateLimit             float64 // requests per second per client IP
		AuthRateBurst             int
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite file; ":memory:" for an in-memory database
	}

	CacheConfig struct {
		Backend        string // memory | memcached
		MemcachedAddrs string
		Timeout        time.Duration
		PlansTTL       time.Duration
	}

	StorageConfig struct {
		MediaDir string
		MediaURL string
		// MaxUploadSize bounds request bodies carrying pictures, eg. "5M".
		MaxUploadSize string
	}

	MembershipConfig struct {
		ExpiringSoonDays      int
		CountryCode           string
		StatusRefreshInterval time.Duration
		ReminderInterval      time.Duration
		HistoryLimit          int
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Today returns the current civil date in the gym's time zone.
func (c *Config) Today() Date {
	return DateOf(NowFunc().In(c.location()))
}

func (c *Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// NewConfig loads the configuration from defaults, the optional config/.env.<env> file and the environment.
// Environment variables are prefixed with the upper-cased environment name, eg. DEV_DATABASE_ENGINE.
func NewConfig() *Config {
	conf, err := LoadConfig(os.Getenv("ENV"))
	if err != nil {
		panic(err)
	}
	return conf
}

// LoadConfig is NewConfig for an explicit environment name.
func LoadConfig(env string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env = strings.ToUpper(strings.TrimSpace(env))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "sqlite")
		v.SetDefault("database.path", ":memory:")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()
	v.SetDefault("workDir", workDir)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "loading timezone")
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		GymName:          v.GetString("gymName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          v.GetString("workDir"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *from,
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Location:         loc,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
			AuthRateLimit:             v.GetFloat64("server.authRateLimit"),
			AuthRateBurst:             v.GetInt("server.authRateBurst"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Cache: CacheConfig{
			Backend:        v.GetString("cache.backend"),
			MemcachedAddrs: v.GetString("cache.memcachedAddrs"),
			Timeout:        v.GetDuration("cache.timeout"),
			PlansTTL:       v.GetDuration("cache.plansTTL"),
		},
		Storage: StorageConfig{
			MediaDir:      v.GetString("storage.mediaDir"),
			MediaURL:      v.GetString("storage.mediaURL"),
			MaxUploadSize: v.GetString("storage.maxUploadSize"),
		},
		Membership: MembershipConfig{
			ExpiringSoonDays:      v.GetInt("membership.expiringSoonDays"),
			CountryCode:           v.GetString("membership.countryCode"),
			StatusRefreshInterval: v.GetDuration("membership.statusRefreshInterval"),
			ReminderInterval:      v.GetDuration("membership.reminderInterval"),
			HistoryLimit:          v.GetInt("membership.historyLimit"),
		},
	}
	if conf.Database.Engine != "postgres" && conf.Database.Engine != "sqlite" {
		return nil, fmt.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Inti-Gym Backoffice")
	v.SetDefault("gymName", "Inti-Gym")
	v.SetDefault("secretKey", "k2v!9d#qz7$m0x@4rj8^t1w&e6yb(3u)")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Inti-Gym <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("timezone", "America/Lima")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 10)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "intigym")
	v.SetDefault("database.user", "intigym")
	v.SetDefault("database.password", "intigym")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "intigym.db")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.memcachedAddrs", "localhost:11211")
	v.SetDefault("cache.timeout", 200*time.Millisecond)
	v.SetDefault("cache.plansTTL", 10*time.Minute)

	v.SetDefault("storage.mediaDir", "media")
	v.SetDefault("storage.mediaURL", "/media")
	v.SetDefault("storage.maxUploadSize", "5M")

	v.SetDefault("membership.expiringSoonDays", 5)
	v.SetDefault("membership.countryCode", "51")
	v.SetDefault("membership.statusRefreshInterval", time.Hour)
	v.SetDefault("membership.reminderInterval", 24*time.Hour)
	v.SetDefault("membership.historyLimit", 50)
}

// NewTestConfig returns the configuration used by tests: in-memory sqlite, no external services.
func NewTestConfig() *Config {
	conf, err := LoadConfig("TEST")
	if err != nil {
		panic(err)
	}
	conf.Debug = false
	conf.Server.DisableReqLogs = true
	conf.Storage.MediaDir = filepath.Join(os.TempDir(), "intigym-test-media")
	return conf
}
