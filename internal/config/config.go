package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "lobbyhost.cfg.json"

// LobbyConfig holds the lobby defaults.
type LobbyConfig struct {
	GameName                  string   `json:"gameName" mapstructure:"gameName"`
	Headless                  bool     `json:"headless" mapstructure:"headless"`
	OpenNetworkSlots          bool     `json:"openNetworkSlots" mapstructure:"openNetworkSlots"`
	DefaultPlayerName         string   `json:"defaultPlayerName" mapstructure:"defaultPlayerName"`
	Language                  string   `json:"language" mapstructure:"language"`
	DataPaths                 []string `json:"dataPaths" mapstructure:"dataPaths"`
	TickInterval              time.Duration
	ChecksumMemoSize          int64  `json:"checksumMemoSize" mapstructure:"checksumMemoSize"`
	RestoreLastSettings       bool   `json:"restoreLastSettings" mapstructure:"restoreLastSettings"`
	Scenario                  string `json:"scenario" mapstructure:"scenario"`
	AISwitchTeamAcceptPercent int    `json:"aiSwitchTeamAcceptPercent" mapstructure:"aiSwitchTeamAcceptPercent"`
	FallbackCpuMultiplier     float64
	AllowObservers            bool `json:"allowObservers" mapstructure:"allowObservers"`
	AllowSwitchTeams          bool `json:"allowSwitchTeams" mapstructure:"allowSwitchTeams"`
	AllowInGameJoin           bool `json:"allowInGameJoin" mapstructure:"allowInGameJoin"`
	FogOfWar                  bool `json:"fogOfWar" mapstructure:"fogOfWar"`
}

// PublishConfig holds masterserver and client broadcast cadence.
type PublishConfig struct {
	Enabled           bool
	MasterserverURL   string
	Timeout           time.Duration
	Interval          time.Duration
	MaxWaitResponse   time.Duration
	BroadcastInterval time.Duration
	MapDelay          time.Duration
	PingInterval      time.Duration
	StepInterval      time.Duration
	ShutdownGrace     time.Duration
	ServerTitle       string
	GlestVersion      string
	PrivacyPlease     bool
}

// NetConfig holds the client-facing listener settings.
type NetConfig struct {
	Listen       string
	ExternalPort int
	RateLimit    float64
	RateBurst    int
	WriteTimeout time.Duration
}

// FileConfig holds the file storage backend settings.
type FileConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Format   string `json:"format" mapstructure:"format"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds the SQLite storage backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds the connection settings of the postgres backend.
// They live under the db section.
type PostgresConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         string `json:"port" mapstructure:"port"`
	Username     string `json:"username" mapstructure:"username"`
	Password     string `json:"password" mapstructure:"password"`
	Database     string `json:"database" mapstructure:"database"`
	SSLMode      string `json:"sslmode" mapstructure:"sslmode"`
	MaxOpenConns int    `json:"maxOpenConns" mapstructure:"maxOpenConns"`
}

// MemoryConfig holds the in-memory storage backend settings.
type MemoryConfig struct {
	MaxLaunches int `json:"maxLaunches" mapstructure:"maxLaunches"`
}

// StorageConfig selects and configures the last-settings store.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	File   FileConfig   `json:"file" mapstructure:"file"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Postgres is read from the db section.
	Postgres PostgresConfig `json:"-" mapstructure:"-"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Enabled    bool
	StatusFile string
	Interval   time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./lobbylogs")

	viper.SetDefault("lobby.gameName", "Lobby")
	viper.SetDefault("lobby.headless", false)
	viper.SetDefault("lobby.openNetworkSlots", false)
	viper.SetDefault("lobby.defaultPlayerName", "Player")
	viper.SetDefault("lobby.language", "en")
	viper.SetDefault("lobby.dataPaths", []string{"./data"})
	viper.SetDefault("lobby.tickInterval", "250ms")
	viper.SetDefault("lobby.checksumMemoSize", 1024)
	viper.SetDefault("lobby.restoreLastSettings", false)
	viper.SetDefault("lobby.scenario", "")
	viper.SetDefault("lobby.aiSwitchTeamAcceptPercent", 30)
	viper.SetDefault("lobby.fallbackCpuMultiplier", 1.0)
	viper.SetDefault("lobby.allowObservers", true)
	viper.SetDefault("lobby.allowSwitchTeams", true)
	viper.SetDefault("lobby.allowInGameJoin", false)
	viper.SetDefault("lobby.fogOfWar", true)

	viper.SetDefault("publish.enabled", false)
	viper.SetDefault("publish.masterserverUrl", "http://master.megaglest.org")
	viper.SetDefault("publish.timeout", "10s")
	viper.SetDefault("publish.interval", "6s")
	viper.SetDefault("publish.maxWaitResponse", "15s")
	viper.SetDefault("publish.broadcastInterval", "4s")
	viper.SetDefault("publish.mapDelay", "5s")
	viper.SetDefault("publish.pingInterval", "5s")
	viper.SetDefault("publish.stepInterval", "1s")
	viper.SetDefault("publish.shutdownGrace", "15s")
	viper.SetDefault("publish.serverTitle", "")
	viper.SetDefault("publish.glestVersion", "v3.13.0")
	viper.SetDefault("publish.privacyPlease", false)

	viper.SetDefault("net.listen", ":61357")
	viper.SetDefault("net.externalPort", 61357)
	viper.SetDefault("net.rateLimit", 20.0)
	viper.SetDefault("net.rateBurst", 40)
	viper.SetDefault("net.writeTimeout", "10s")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.dir", "./")
	viper.SetDefault("storage.file.format", "json")
	viper.SetDefault("storage.file.compress", true)
	viper.SetDefault("storage.sqlite.path", "./lobbyhost.db")
	viper.SetDefault("storage.memory.maxLaunches", 64)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "lobbyhost")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("db.maxOpenConns", 10)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "lobbyhost")
	viper.SetDefault("influx.bucket", "lobby")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "lobbyhost")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.statusFile", "./status.json")
	viper.SetDefault("monitor.interval", "1s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetLobbyConfig returns the lobby section.
func GetLobbyConfig() LobbyConfig {
	return LobbyConfig{
		GameName:                  viper.GetString("lobby.gameName"),
		Headless:                  viper.GetBool("lobby.headless"),
		OpenNetworkSlots:          viper.GetBool("lobby.openNetworkSlots"),
		DefaultPlayerName:         viper.GetString("lobby.defaultPlayerName"),
		Language:                  viper.GetString("lobby.language"),
		DataPaths:                 viper.GetStringSlice("lobby.dataPaths"),
		TickInterval:              viper.GetDuration("lobby.tickInterval"),
		ChecksumMemoSize:          viper.GetInt64("lobby.checksumMemoSize"),
		RestoreLastSettings:       viper.GetBool("lobby.restoreLastSettings"),
		Scenario:                  viper.GetString("lobby.scenario"),
		AISwitchTeamAcceptPercent: viper.GetInt("lobby.aiSwitchTeamAcceptPercent"),
		FallbackCpuMultiplier:     viper.GetFloat64("lobby.fallbackCpuMultiplier"),
		AllowObservers:            viper.GetBool("lobby.allowObservers"),
		AllowSwitchTeams:          viper.GetBool("lobby.allowSwitchTeams"),
		AllowInGameJoin:           viper.GetBool("lobby.allowInGameJoin"),
		FogOfWar:                  viper.GetBool("lobby.fogOfWar"),
	}
}

// GetPublishConfig returns the publish section.
func GetPublishConfig() PublishConfig {
	return PublishConfig{
		Enabled:           viper.GetBool("publish.enabled"),
		MasterserverURL:   viper.GetString("publish.masterserverUrl"),
		Timeout:           viper.GetDuration("publish.timeout"),
		Interval:          viper.GetDuration("publish.interval"),
		MaxWaitResponse:   viper.GetDuration("publish.maxWaitResponse"),
		BroadcastInterval: viper.GetDuration("publish.broadcastInterval"),
		MapDelay:          viper.GetDuration("publish.mapDelay"),
		PingInterval:      viper.GetDuration("publish.pingInterval"),
		StepInterval:      viper.GetDuration("publish.stepInterval"),
		ShutdownGrace:     viper.GetDuration("publish.shutdownGrace"),
		ServerTitle:       viper.GetString("publish.serverTitle"),
		GlestVersion:      viper.GetString("publish.glestVersion"),
		PrivacyPlease:     viper.GetBool("publish.privacyPlease"),
	}
}

// GetNetConfig returns the net section.
func GetNetConfig() NetConfig {
	return NetConfig{
		Listen:       viper.GetString("net.listen"),
		ExternalPort: viper.GetInt("net.externalPort"),
		RateLimit:    viper.GetFloat64("net.rateLimit"),
		RateBurst:    viper.GetInt("net.rateBurst"),
		WriteTimeout: viper.GetDuration("net.writeTimeout"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileConfig{
			Dir:      viper.GetString("storage.file.dir"),
			Format:   viper.GetString("storage.file.format"),
			Compress: viper.GetBool("storage.file.compress"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Memory: MemoryConfig{
			MaxLaunches: viper.GetInt("storage.memory.maxLaunches"),
		},
		Postgres: PostgresConfig{
			Host:         viper.GetString("db.host"),
			Port:         viper.GetString("db.port"),
			Username:     viper.GetString("db.username"),
			Password:     viper.GetString("db.password"),
			Database:     viper.GetString("db.database"),
			SSLMode:      viper.GetString("db.sslmode"),
			MaxOpenConns: viper.GetInt("db.maxOpenConns"),
		},
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the monitor section.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		StatusFile: viper.GetString("monitor.statusFile"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
}
