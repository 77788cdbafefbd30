package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// BrokerConfig 面向 Lens Manager 的串口（虚拟串口对的一端）
type BrokerConfig struct {
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
	// Driver 串口驱动：bugst（go.bug.st/serial）或 tarm（github.com/tarm/serial）
	Driver string `mapstructure:"driver"`
}

// LensConfig 面向镜头的串口与超时配置
type LensConfig struct {
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
	// Driver 镜头链路驱动：bugst（真实硬件）或 sim（软件模拟镜头）
	Driver string `mapstructure:"driver"`
	// ResponseTimeout 识别/固件类事务等待镜头应答的上限
	ResponseTimeout time.Duration `mapstructure:"responseTimeout"`
	// ParamTimeout AF/MF 参数与自定义模式事务的等待上限
	ParamTimeout time.Duration `mapstructure:"paramTimeout"`
	// ByteTimeout 帧体读取时单次读的超时，超时视为坏帧并重新同步
	ByteTimeout time.Duration `mapstructure:"byteTimeout"`
	// Wake 打开串口后是否发送 RTS 唤醒序列
	Wake bool `mapstructure:"wake"`
}

// BridgeConfig 运行期开关（启动后只读）
type BridgeConfig struct {
	EmulateHardware        bool `mapstructure:"emulateHardware"`
	SkipFirmwareTouch      bool `mapstructure:"skipFirmwareTouch"`
	ForceFirmwareFix       bool `mapstructure:"forceFirmwareFix"`
	SkipFlashClean         bool `mapstructure:"skipFlashClean"`
	VerboseFirmwareLogging bool `mapstructure:"verboseFirmwareLogging"`
}

// SyncPulseConfig VD 同步脉冲配置
type SyncPulseConfig struct {
	Period time.Duration `mapstructure:"period"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Lens      LensConfig      `mapstructure:"lens"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	SyncPulse SyncPulseConfig `mapstructure:"syncPulse"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LensRequired 是否需要打开镜头串口
// 纯模拟模式下镜头链路完全不使用；强制修复固件时即使模拟也需要真实链路
func (c *Config) LensRequired() bool {
	return c.Bridge.ForceFirmwareFix || !c.Bridge.EmulateHardware
}

// Validate 校验启动前必须满足的配置
func (c *Config) Validate() error {
	if c.Broker.Device == "" {
		return errors.New("broker.device is required")
	}
	switch c.Broker.Driver {
	case "bugst", "tarm":
	default:
		return fmt.Errorf("unknown broker.driver %q", c.Broker.Driver)
	}
	if c.LensRequired() {
		switch c.Lens.Driver {
		case "sim":
		case "bugst":
			if c.Lens.Device == "" {
				return errors.New("lens.device is required")
			}
		default:
			return fmt.Errorf("unknown lens.driver %q", c.Lens.Driver)
		}
		// 为 0 时帧体读取会无限阻塞
		if c.Lens.ByteTimeout <= 0 {
			return errors.New("lens.byteTimeout must be positive")
		}
	}
	if c.SyncPulse.Period <= 0 {
		return errors.New("syncPulse.period must be positive")
	}
	return nil
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 LENS_CONFIG 读取；否则回退到 configs/lens-broker.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("LENS_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("lens-broker")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 LENS_，并将点号替换为下划线
	v.SetEnvPrefix("LENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lens-broker")
	v.SetDefault("app.env", "dev")

	v.SetDefault("broker.device", "COM5")
	v.SetDefault("broker.baud", 115200)
	v.SetDefault("broker.driver", "bugst")

	v.SetDefault("lens.device", "COM4")
	v.SetDefault("lens.baud", 750000)
	v.SetDefault("lens.driver", "bugst")
	v.SetDefault("lens.responseTimeout", "10s")
	v.SetDefault("lens.paramTimeout", "1s")
	v.SetDefault("lens.byteTimeout", "500ms")
	v.SetDefault("lens.wake", true)

	v.SetDefault("bridge.emulateHardware", false)
	v.SetDefault("bridge.skipFirmwareTouch", true)
	v.SetDefault("bridge.forceFirmwareFix", false)
	v.SetDefault("bridge.skipFlashClean", false)
	v.SetDefault("bridge.verboseFirmwareLogging", true)

	v.SetDefault("syncPulse.period", "20ms")

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", "127.0.0.1:9180")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "logs/lens-broker.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
