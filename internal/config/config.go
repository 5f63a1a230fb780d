// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Source      SourceConfig      `mapstructure:"source"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Simulator   SimulatorConfig   `mapstructure:"simulator"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Security    SecurityConfig    `mapstructure:"security"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SerialConfig represents the acquisition board's serial link
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	ReadChunk   int           `mapstructure:"read_chunk"`
	AutoConnect bool          `mapstructure:"auto_connect"`
}

// SourceConfig selects where bytes come from
type SourceConfig struct {
	Type string `mapstructure:"type"`
}

// AcquisitionConfig represents pipeline timing and buffer sizes
type AcquisitionConfig struct {
	SamplingRate    int           `mapstructure:"sampling_rate"`
	WindowCapacity  int           `mapstructure:"window_capacity"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SessionDuration time.Duration `mapstructure:"session_duration"`
	MaxReadsPerPoll int           `mapstructure:"max_reads_per_poll"`
}

// SimulatorConfig represents the synthetic board
type SimulatorConfig struct {
	HeartRate     int           `mapstructure:"heart_rate"`
	BreathPeriod  time.Duration `mapstructure:"breath_period"`
	RespAmplitude int           `mapstructure:"resp_amplitude"`
	Noise         float64       `mapstructure:"noise"`
	MaxBacklog    time.Duration `mapstructure:"max_backlog"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// DiscoveryConfig represents port discovery configuration
type DiscoveryConfig struct {
	USBEnabled  bool          `mapstructure:"usb_enabled"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

const (
	SourceSerial    = "serial"
	SourceSimulator = "simulator"
)

var (
	validEnvironments = []string{"development", "staging", "production", "test"}
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validParities     = []string{"none", "odd", "even"}
	validSourceTypes  = []string{SourceSerial, SourceSimulator}
	validBaudRates    = []int{9600, 19200, 38400, 57600, 115200}
)

// Load loads configuration from an optional file and environment variables.
// An empty path searches the working directory and internal/config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./internal/config")
		v.AddConfigPath("../../internal/config")
	}

	// Environment variable support
	v.SetEnvPrefix("BIOSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Serial defaults
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 57600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.read_timeout", "5ms")
	v.SetDefault("serial.read_chunk", 256)
	v.SetDefault("serial.auto_connect", false)

	v.SetDefault("source.type", SourceSerial)

	// Acquisition defaults
	v.SetDefault("acquisition.sampling_rate", 125)
	v.SetDefault("acquisition.window_capacity", 500)
	v.SetDefault("acquisition.poll_interval", "40ms")
	v.SetDefault("acquisition.session_duration", "60s")
	v.SetDefault("acquisition.max_reads_per_poll", 64)

	// Simulator defaults
	v.SetDefault("simulator.heart_rate", 72)
	v.SetDefault("simulator.breath_period", "4s")
	v.SetDefault("simulator.resp_amplitude", 2000)
	v.SetDefault("simulator.noise", 0.02)
	v.SetDefault("simulator.max_backlog", "2s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "biosignal_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")

	// Discovery defaults
	v.SetDefault("discovery.usb_enabled", false)
	v.SetDefault("discovery.scan_timeout", "5s")

	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "biosignal-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if !slices.Contains(validEnvironments, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvironments)
	}
	if !slices.Contains(validLogLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLogLevels)
	}

	if !slices.Contains(validSourceTypes, config.Source.Type) {
		return fmt.Errorf("source.type must be one of: %v", validSourceTypes)
	}
	if !slices.Contains(validBaudRates, config.Serial.BaudRate) {
		return fmt.Errorf("serial.baud_rate must be one of: %v", validBaudRates)
	}
	if !slices.Contains(validParities, config.Serial.Parity) {
		return fmt.Errorf("serial.parity must be one of: %v", validParities)
	}
	if config.Serial.StopBits != 1 && config.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits must be 1 or 2")
	}
	if config.Serial.ReadChunk <= 0 {
		return fmt.Errorf("serial.read_chunk must be positive")
	}
	if config.Serial.AutoConnect && config.Source.Type == SourceSerial && config.Serial.Port == "" {
		return fmt.Errorf("serial.port is required when serial.auto_connect is set")
	}

	if config.Acquisition.SamplingRate <= 0 {
		return fmt.Errorf("acquisition.sampling_rate must be positive")
	}
	if config.Acquisition.WindowCapacity <= 0 {
		return fmt.Errorf("acquisition.window_capacity must be positive")
	}
	if config.Acquisition.PollInterval <= 0 {
		return fmt.Errorf("acquisition.poll_interval must be positive")
	}
	if config.Acquisition.SessionDuration <= 0 {
		return fmt.Errorf("acquisition.session_duration must be positive")
	}

	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetDatabaseURL returns the database connection string in URL form
func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:     "/" + c.Database.DBName,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
