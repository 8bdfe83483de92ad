package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/renjie/featex/internal/core/domain"
)

// Config 一次批处理运行的全部配置
type Config struct {
	DataPath      string             `mapstructure:"data_path"`
	ArchiveURL    string             `mapstructure:"archive_url"`
	ArchiveFile   string             `mapstructure:"archive_file"`
	OutputVersion string             `mapstructure:"output_version"`
	Granularities []string           `mapstructure:"granularities"`
	Workers       int                `mapstructure:"workers"`
	OffThreshold  float64            `mapstructure:"off_threshold"`
	OffOverrides  map[string]float64 `mapstructure:"off_overrides"`
	WinterChange  string             `mapstructure:"winter_change_day"`
}

// Load 加载运行配置
// 优先级: FEATEX_ 环境变量 > 配置文件 > 内置默认值；
// path 为空时在工作目录查找 featex.yaml，找不到也不报错 (全默认运行)
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_path", "data")
	v.SetDefault("archive_url", "https://www.ipd.kit.edu/mitarbeiter/hipe/")
	v.SetDefault("archive_file", "hipe_cleaned_v1.0.1_geq_2017-10-01_lt_2018-01-01.zip")
	v.SetDefault("output_version", "v1.0.0")
	v.SetDefault("granularities", []string{string(domain.Granularity15Minutes), string(domain.GranularityHour)})
	v.SetDefault("workers", 1)
	v.SetDefault("off_threshold", 0.0)
	v.SetDefault("off_overrides", map[string]float64{"PickAndPlaceUnit": 0.3})
	v.SetDefault("winter_change_day", domain.DefaultWinterChangeDay)

	v.SetEnvPrefix("FEATEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("featex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, g := range cfg.Granularities {
		if _, err := domain.ParseGranularity(g); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// ThresholdTable 构建停机阈值表 (默认 0.0，可按机器覆盖)
func (c *Config) ThresholdTable() domain.ThresholdTable {
	return domain.ThresholdTable{
		Default:   c.OffThreshold,
		Overrides: c.OffOverrides,
	}
}
