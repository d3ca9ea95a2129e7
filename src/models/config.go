package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Display  MDisplayConfig  `yaml:"display"`
	Cache    MCacheConfig    `yaml:"cache"`
	Nats     MNatsConfig     `yaml:"nats"`
	Sources  []MSourceConfig `yaml:"sources"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	RequestTimeout    int     `yaml:"timeout"`
	MaxRetries        int     `yaml:"retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent"`
}

// MDisplayConfig feeds the normalizer's timestamp and number formatting.
type MDisplayConfig struct {
	Timezone   string `yaml:"timezone"`
	Locale     string `yaml:"locale"`
	TimeLayout string `yaml:"time_layout"`
	YesLabel   string `yaml:"yes_label"`
	NoLabel    string `yaml:"no_label"`
}

type MCacheConfig struct {
	ViewTTLSeconds int `yaml:"view_ttl_seconds"`
}

type MNatsConfig struct {
	Servers        []string `yaml:"servers"`
	ClientID       string   `yaml:"client_id"`
	Subject        string   `yaml:"subject"`
	ConnectTimeout int      `yaml:"connect_timeout"`
	ReconnectWait  int      `yaml:"reconnect_wait"`
	MaxReconnects  int      `yaml:"max_reconnects"`
}

// Source types
const (
	SourceTypeHTTP = "http"
	SourceTypeNATS = "nats"
)

type MSourceConfig struct {
	Name                  string   `yaml:"name"`
	Type                  string   `yaml:"type"`
	Endpoint              string   `yaml:"endpoint"`
	Strategies            []string `yaml:"strategies"`
	Symbols               []string `yaml:"symbols"`
	UpdateIntervalSeconds int      `yaml:"update_interval_seconds"`
	MarketHoursOnly       bool     `yaml:"market_hours_only"`
}
