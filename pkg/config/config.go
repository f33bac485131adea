// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port           int     `mapstructure:"port"`
	Host           string  `mapstructure:"host"`
	Timeout        string  `mapstructure:"timeout"`
	RateLimitQPS   float64 `mapstructure:"rate_limit_qps"` // <=0 不限流
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Record  RecordConfig            `mapstructure:"record"`
	Drivers map[string]DriverConfig `mapstructure:"drivers"`
	Default string                  `mapstructure:"default_driver"` // 默认驱动名，空则取 drivers 中唯一一项
	Cache   CacheConfig             `mapstructure:"cache"`
}

// RecordConfig 附件记录仓库配置
type RecordConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// DriverConfig 单个存储驱动配置
type DriverConfig struct {
	Type      string `mapstructure:"type"`       // memory | local
	BaseDir   string `mapstructure:"base_dir"`   // local 驱动根目录
	PublicURL string `mapstructure:"public_url"` // 公开访问前缀，空则使用 file:// URI
}

// CacheConfig 公开 URI 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 如 "10m"，空则不过期
}

// FetchConfig 远程抓取配置
type FetchConfig struct {
	Timeout string  `mapstructure:"timeout"` // 如 "30s"
	QPS     float64 `mapstructure:"qps"`     // 每秒抓取上限，<=0 不限流
	Burst   int     `mapstructure:"burst"`
	MaxSize int64   `mapstructure:"max_size"` // 单次抓取字节上限，<=0 不限制
}

// PipelineConfig 处理器流水线配置
type PipelineConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"` // maxsize 处理器阈值，<=0 关闭
	PDFValidate bool  `mapstructure:"pdf_validate"`  // 是否启用 PDF 校验处理器
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}
