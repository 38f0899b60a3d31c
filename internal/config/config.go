package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Backend struct {
		URL       string `yaml:"url"`
		TimeoutMS int    `yaml:"timeoutMS"`
	} `yaml:"backend"`

	DevTools struct {
		URL    string `yaml:"url"`
		PollMS int    `yaml:"pollMS"`
	} `yaml:"devtools"`

	BlockURL       string `yaml:"blockURL"`
	CredentialFile string `yaml:"credentialFile"`

	Detector struct {
		ScanIntervalMS int `yaml:"scanIntervalMS"`
		VerifyDelayMS  int `yaml:"verifyDelayMS"`
		MaxAttempts    int `yaml:"maxAttempts"`
		DebounceMS     int `yaml:"debounceMS"`
	} `yaml:"detector"`

	Heartbeat struct {
		DelayMS  int `yaml:"delayMS"`
		PeriodMS int `yaml:"periodMS"`
	} `yaml:"heartbeat"`

	SearchTTLSeconds int `yaml:"searchTTLSeconds"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Backend.URL = "https://api.beaconblocker.com"
	c.Backend.TimeoutMS = 10000
	c.DevTools.URL = "http://127.0.0.1:9222"
	c.DevTools.PollMS = 3000
	c.BlockURL = "https://dashboard.beaconblocker.com/blocked"
	c.CredentialFile = "credential.key"
	c.Detector.ScanIntervalMS = 500
	c.Detector.VerifyDelayMS = 250
	c.Detector.MaxAttempts = 20
	c.Detector.DebounceMS = 500
	c.Heartbeat.DelayMS = 60000
	c.Heartbeat.PeriodMS = 600000
	c.SearchTTLSeconds = 300
	c.Sqlite.Dsn = "db.sqlite3"
	c.Sqlite.Prefix = "pageguard_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "pageguard.log"
	return c
}

// Load 读取配置文件，缺失时返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}
