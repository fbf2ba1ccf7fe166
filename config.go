package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "S3MIRROR"

type AppConfig struct {
	SourceFolder    string `default:"."`
	Bucket          string
	Region          string `default:"us-west-2"`
	Endpoint        string
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Concurrency     int    `default:"1"`
	Exclude         []string
	DryRun          bool
	Interval        int
	LogLevel        string `default:"info"`
	SNSTopic        string
	NonInteractive  bool
}

// LoadConfig reads the given files (none is fine) and then the environment.
func LoadConfig(files ...string) (AppConfig, error) {
	var appConfig AppConfig
	loader := configor.New(&configor.Config{ENVPrefix: envPrefix})
	if err := loader.Load(&appConfig, files...); err != nil {
		return appConfig, fmt.Errorf("load config: %w", err)
	}
	return appConfig, nil
}

func (c AppConfig) Validate() error {
	info, err := os.Stat(c.SourceFolder)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", c.SourceFolder)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %d", c.Interval)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for _, pattern := range c.Exclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c AppConfig) Credentials() SessionCredentials {
	return SessionCredentials{AccessKeyID: c.AccessKeyID, SecretAccessKey: c.SecretAccessKey}
}

func (c AppConfig) SyncOptions(bucket string) SyncOptions {
	return SyncOptions{
		SourceFolder: c.SourceFolder,
		Bucket:       bucket,
		Exclude:      c.Exclude,
		DryRun:       c.DryRun,
		Concurrency:  c.Concurrency,
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func (c AppConfig) ConfigStringArray() []string {
	configStrArr := make([]string, 0)
	configStrArr = append(configStrArr, fmt.Sprintf("  - SourceFolder: %s", c.SourceFolder))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Bucket: %s", c.Bucket))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Region: %s", c.Region))
	if c.Endpoint != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - Endpoint: %s", c.Endpoint))
	}
	configStrArr = append(configStrArr, fmt.Sprintf("  - AccessKeyID: %s", c.AccessKeyID))
	configStrArr = append(configStrArr, fmt.Sprintf("  - SecretAccessKey: %s", maskSecret(c.SecretAccessKey)))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Concurrent Uploads: %d", c.Concurrency))
	configStrArr = append(configStrArr, fmt.Sprintf("  - DryRun: %t", c.DryRun))

	if c.Interval > 0 {
		configStrArr = append(configStrArr, fmt.Sprintf("  - Interval: %d minutes", c.Interval))
	}
	if c.SNSTopic != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - SNSTopic: %s", c.SNSTopic))
	}

	configStrArr = append(configStrArr, "Exclusions:")
	for _, pattern := range c.Exclude {
		configStrArr = append(configStrArr, fmt.Sprintf("  - %s", pattern))
	}

	return configStrArr
}
