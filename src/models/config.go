package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	GrpcHost  string           `yaml:"grpc_host"`
	GrpcPort  int              `yaml:"grpc_port"`
	PublicDir string           `yaml:"public_dir"`
	Series    MSeriesConfig    `yaml:"series"`
	Transport MTransportConfig `yaml:"transport"`
	Trigger   MTriggerConfig   `yaml:"trigger"`
	Simulator MSimulatorConfig `yaml:"simulator"`
	Render    MRenderConfig    `yaml:"render"`
}

type MSeriesConfig struct {
	Capacity int `yaml:"capacity"`
}

type MTransportConfig struct {
	Type               string `yaml:"type"` // "memory" or "postgres"
	Channel            string `yaml:"channel"`
	Event              string `yaml:"event"`
	DBConnectionString string `yaml:"db_connection_string"`
	ConnectRetries     int    `yaml:"connect_retries"`
}

type MTriggerConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout"`
}

type MSimulatorConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	TargetURL  string `yaml:"target_url"` // observer base URL for the memory transport
	IntervalMs int    `yaml:"interval_ms"`
	MaxValue   int    `yaml:"max_value"`
}

type MRenderConfig struct {
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	Terminal bool `yaml:"terminal"`
}
