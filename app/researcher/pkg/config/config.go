package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Research    ResearchConfig    `yaml:"research"`
	Output      OutputConfig      `yaml:"output"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider string        `yaml:"provider"`
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// ResearchConfig 调研过程相关配置
type ResearchConfig struct {
	MaxSubQueries        int  `yaml:"max_sub_queries"`
	MaxResultsPerQuery   int  `yaml:"max_results_per_query"`
	MaxContentChars      int  `yaml:"max_content_chars"`
	MinContentChars      int  `yaml:"min_content_chars"`
	FetchTimeout         int  `yaml:"fetch_timeout"` // 秒
	TotalWords           int  `yaml:"total_words"`
	ComplementSourceURLs bool `yaml:"complement_source_urls"`
}

// OutputConfig 导出文件相关配置
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	PDFStylesheet string `yaml:"pdf_stylesheet"`
	BrowserBin    string `yaml:"browser_bin"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS        int `yaml:"qps"`
	RPM        int `yaml:"rpm"`
	MaxWorkers int `yaml:"max_workers"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			SearXNG: SearXNGConfig{Timeout: 30},
		},
		Research: ResearchConfig{
			MaxSubQueries:      3,
			MaxResultsPerQuery: 5,
			MaxContentChars:    5000,
			MinContentChars:    500,
			FetchTimeout:       30,
			TotalWords:         1000,
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Log: LogConfig{
			Level: "info",
		},
		Concurrency: ConcurrencyConfig{
			QPS:        1,
			RPM:        60,
			MaxWorkers: 4,
		},
	}
}

// LoadConfig 从指定路径加载配置，未设置的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
