package conf

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/kr/pretty"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

var (
	conf *Config
	once sync.Once
)

type Config struct {
	Env       string
	Hertz     Hertz     `yaml:"hertz"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Registry  Registry  `yaml:"registry"`
	Exchange  Exchange  `yaml:"exchange"`
	PriceFeed PriceFeed `yaml:"price_feed"`
	Audit     Audit     `yaml:"audit"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
	DB       int    `yaml:"db"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Registry struct {
	RegistryAddress []string `yaml:"registry_address"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
}

// Exchange 账本与撮合核心参数
type Exchange struct {
	// memory | postgres
	Storage        string          `yaml:"storage" validate:"nonzero"`
	NodeID         uint16          `yaml:"node_id"`
	QuoteSymbol    string          `yaml:"quote_symbol" validate:"nonzero"`
	FeeRate        string          `yaml:"fee_rate" validate:"nonzero"`
	PoolFee        string          `yaml:"pool_fee" validate:"nonzero"`
	RatioTolerance string          `yaml:"ratio_tolerance" validate:"nonzero"`
	FeeCollector   string          `yaml:"fee_collector"`
	MinTradeTier   int             `yaml:"min_trade_tier"`
	DefaultKYCTier int             `yaml:"default_kyc_tier"`
	LockTimeoutMs  int             `yaml:"lock_timeout_ms" validate:"min=1"`
	MaxRetries     uint            `yaml:"max_retries"`
	Assets         []BootstrapCoin `yaml:"assets"`
}

type BootstrapCoin struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
}

type PriceFeed struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	VsCurrency      string `yaml:"vs_currency"`
	PerPage         int    `yaml:"per_page"`
	RefreshInterval int    `yaml:"refresh_interval_sec"`
}

type Audit struct {
	FileName   string `yaml:"file_name"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

type Hertz struct {
	Service         string `yaml:"service"`
	Address         string `yaml:"address"`
	EnablePprof     bool   `yaml:"enable_pprof"`
	EnableGzip      bool   `yaml:"enable_gzip"`
	EnableAccessLog bool   `yaml:"enable_access_log"`
	LogLevel        string `yaml:"log_level"`
	LogFileName     string `yaml:"log_file_name"`
	LogMaxSize      int    `yaml:"log_max_size"`
	LogMaxBackups   int    `yaml:"log_max_backups"`
	LogMaxAge       int    `yaml:"log_max_age"`
	RegistryAddr    string `yaml:"registry_addr"`
	NetpollLoops    int    `yaml:"netpoll_loops"`
	BroadcastPool   int    `yaml:"broadcast_pool"`
}

// GetConf gets configuration instance
func GetConf() *Config {
	once.Do(initConf)
	return conf
}

func initConf() {
	prefix := "conf"
	confFileRelPath := filepath.Join(prefix, filepath.Join(GetEnv(), "conf.yaml"))
	content, err := os.ReadFile(confFileRelPath)
	if err != nil {
		panic(err)
	}
	c, err := Parse(content)
	if err != nil {
		hlog.Errorf("load config error - %v", err)
		panic(err)
	}
	c.Env = GetEnv()
	conf = c

	pretty.Printf("%+v\n", conf)
}

// Parse 解析 yaml 内容，叠加环境变量后校验
func Parse(content []byte) (*Config, error) {
	c := new(Config)
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, err
	}
	applyEnvOverrides(c)
	if err := validator.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func GetEnv() string {
	e := os.Getenv("GO_ENV")
	if len(e) == 0 {
		return "test"
	}
	return e
}

// LockTimeout 锁等待上限
func (e Exchange) LockTimeout() time.Duration {
	return time.Duration(e.LockTimeoutMs) * time.Millisecond
}

// RefreshEvery 价格刷新周期，默认 5 分钟
func (p PriceFeed) RefreshEvery() time.Duration {
	if p.RefreshInterval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.RefreshInterval) * time.Second
}

func LogLevel() hlog.Level {
	level := GetConf().Hertz.LogLevel
	switch level {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "info":
		return hlog.LevelInfo
	case "notice":
		return hlog.LevelNotice
	case "warn":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	case "fatal":
		return hlog.LevelFatal
	default:
		return hlog.LevelInfo
	}
}
