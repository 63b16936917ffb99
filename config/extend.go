package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	MongodbURIEnv = "MONGODB_URI"
	DatabaseEnv   = "LABCTL_DATABASE"
	UptraceDSNEnv = "UPTRACE_DSN"
)

var (
	ApplicationConfig = &Application{}
	ExtConfig         Extend
)

// File mirrors config/settings.yml:
//
//	settings:
//	  application:
//	    host: 0.0.0.0
//	    port: 8000
//	  extend:
//	    mongodb:
//	      dsn: mongodb://localhost:27017
type File struct {
	Settings Settings `yaml:"settings"`
}

type Settings struct {
	Application Application `yaml:"application"`
	Extend      Extend      `yaml:"extend"`
}

type Application struct {
	Mode string `yaml:"mode"`
	Host string `yaml:"host"`
	Name string `yaml:"name"`
	Port int64  `yaml:"port"`
}

type Extend struct {
	Mongodb    MongodbConfig  `yaml:"mongodb"`
	Redis      RedisConfig    `yaml:"redis"`
	MinIO      MinIOConfig    `yaml:"minio"`
	Webhook    WebhookConfig  `yaml:"webhook"`
	Reports    ReportsConfig  `yaml:"reports"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	SQL        SQLConfig      `yaml:"sql"`
	Data       DataConfig     `yaml:"data"`
	UptraceDSN string         `yaml:"uptracedsn"`
}

type MongodbConfig struct {
	DSN            string `yaml:"dsn"`
	Database       string `yaml:"database"`
	ConnectTimeout int64  `yaml:"connecttimeout"` // seconds
}

func (c MongodbConfig) Timeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeout) * time.Second
}

type RedisConfig struct {
	Dsn      string `yaml:"dsn"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
	TTL      int64  `yaml:"ttl"` // seconds, 0 keeps forever
}

type MinIOConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
	Secret   string `yaml:"secret"`
	Bucket   string `yaml:"bucket"`
	Secure   bool   `yaml:"secure"`
}

type WebhookConfig struct {
	URL          string `yaml:"url"`
	OnlyFailures bool   `yaml:"onlyfailures"`
}

type ReportsConfig struct {
	Dir string `yaml:"dir"`
	// Formats: json, markdown, xlsx, mongo, redis, minio, webhook
	Formats []string `yaml:"formats"`
	// History is the collection the mongo reporter archives runs into.
	History string `yaml:"history"`
}

type ScheduleConfig struct {
	Books []ScheduledBook `yaml:"books"`
}

type ScheduledBook struct {
	Spec string `yaml:"spec"`
	Path string `yaml:"path"`
}

type SQLConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batchsize"`
}

type DataConfig struct {
	Root        string `yaml:"root"`
	Books       string `yaml:"books"`
	VersionFile string `yaml:"versionfile"`
	Manifest    string `yaml:"manifest"`
	Schemas     string `yaml:"schemas"`
}

func Default() Settings {
	return Settings{
		Application: Application{
			Mode: "dev",
			Host: "0.0.0.0",
			Name: "labctl",
			Port: 8000,
		},
		Extend: Extend{
			Mongodb: MongodbConfig{
				DSN:            "mongodb://localhost:27017",
				ConnectTimeout: 10,
			},
			Redis: RedisConfig{TTL: 86400},
			Reports: ReportsConfig{
				Dir:     "reports",
				History: "labctl_runs",
			},
			SQL: SQLConfig{BatchSize: 500},
			Data: DataConfig{
				Root:        "data",
				Books:       "queries",
				VersionFile: "data/.versions.json",
				Manifest:    "data/manifest.yml",
				Schemas:     "data/schemas.yml",
			},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Settings, error) {
	settings := Default()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		file := File{Settings: settings}
		if err := yaml.Unmarshal(content, &file); err != nil {
			return settings, errors.Wrapf(err, "parse config %s", path)
		}
		settings = file.Settings
	case os.IsNotExist(err):
	default:
		return settings, errors.Wrapf(err, "read config %s", path)
	}
	applyEnv(&settings)
	return settings, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv(MongodbURIEnv); v != "" {
		s.Extend.Mongodb.DSN = v
	}
	if v := os.Getenv(DatabaseEnv); v != "" {
		s.Extend.Mongodb.Database = v
	}
	if v := os.Getenv(UptraceDSNEnv); v != "" {
		s.Extend.UptraceDSN = v
	} else if s.Extend.UptraceDSN != "" {
		// common/log reads the environment
		_ = os.Setenv(UptraceDSNEnv, s.Extend.UptraceDSN)
	}
}

// Setup loads path and publishes it through ApplicationConfig and ExtConfig.
func Setup(path string) error {
	settings, err := Load(path)
	if err != nil {
		return err
	}
	*ApplicationConfig = settings.Application
	ExtConfig = settings.Extend
	return nil
}
