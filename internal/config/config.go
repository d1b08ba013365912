package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"scraper_results/internal/logger"
)

const (
	DefaultDatabase    = "event_scrape"
	DefaultCollection  = "stories"
	DefaultDBHost      = "localhost:27017"
	DefaultSearchURL   = "http://localhost:9200"
	DefaultDocType     = "news"
	DefaultPageSize    = 500
	DefaultScroll      = time.Minute
	DefaultCharset     = "utf-8"
	DefaultSourcesFile = "source_keys.txt"
)

// Environment overrides, applied after the YAML file and any .env files.
const (
	EnvAuthUser         = "SCRAPER_AUTH_USER"
	EnvAuthPass         = "SCRAPER_AUTH_PASS"
	EnvDBHost           = "SCRAPER_DB_HOST"
	EnvElasticsearchURL = "SCRAPER_ELASTICSEARCH_URL"
)

type DBConfig struct {
	Connection    string `yaml:"connection"`
	Database      string `yaml:"database"`
	Collection    string `yaml:"collection"`
	EnsureIndexes bool   `yaml:"ensure_indexes"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

type SearchConfig struct {
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DocType    string `yaml:"doc_type"`
	PageSize   int    `yaml:"page_size"`
	ScrollSec  int    `yaml:"scroll_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

// DocumentStoreConfig carries the boundary switches of the document-store
// query. The defaults reproduce the scraper's historical behaviour.
type DocumentStoreConfig struct {
	UpperBoundInclusive         *bool `yaml:"upper_bound_inclusive"`
	ArtifactUpperBoundInclusive *bool `yaml:"artifact_upper_bound_inclusive"`
}

type RenderConfig struct {
	Charset string `yaml:"charset"`
}

type Config struct {
	Elasticsearch bool   `yaml:"elasticsearch"`
	Index         string `yaml:"index"`
	AuthDB        string `yaml:"auth_db"`
	AuthUser      string `yaml:"auth_user"`
	AuthPass      string `yaml:"auth_pass"`
	DBHost        string `yaml:"db_host"`

	SourcesFile   string              `yaml:"sources_file"`
	DB            DBConfig            `yaml:"db"`
	Search        SearchConfig        `yaml:"search"`
	DocumentStore DocumentStoreConfig `yaml:"document_store"`
	Render        RenderConfig        `yaml:"render"`
	Logging       logger.Config       `yaml:"logging"`
}

func LoadConfig(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and fills
// defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.SetDefaults()
	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAuthUser); v != "" {
		c.AuthUser = v
	}
	if v := os.Getenv(EnvAuthPass); v != "" {
		c.AuthPass = v
	}
	if v := os.Getenv(EnvDBHost); v != "" {
		c.DBHost = v
	}
	if v := os.Getenv(EnvElasticsearchURL); v != "" {
		c.Search.URL = v
	}
}

func (c *Config) SetDefaults() {
	if c.SourcesFile == "" {
		c.SourcesFile = DefaultSourcesFile
	}
	if c.DBHost == "" {
		c.DBHost = DefaultDBHost
	}
	if c.DB.Database == "" {
		c.DB.Database = DefaultDatabase
	}
	if c.DB.Collection == "" {
		c.DB.Collection = DefaultCollection
	}
	if c.DB.TimeoutSec <= 0 {
		c.DB.TimeoutSec = 10
	}
	if c.Search.URL == "" {
		c.Search.URL = DefaultSearchURL
	}
	if c.Search.DocType == "" {
		c.Search.DocType = DefaultDocType
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = DefaultPageSize
	}
	if c.Search.ScrollSec <= 0 {
		c.Search.ScrollSec = int(DefaultScroll / time.Second)
	}
	if c.DocumentStore.UpperBoundInclusive == nil {
		v := true
		c.DocumentStore.UpperBoundInclusive = &v
	}
	if c.DocumentStore.ArtifactUpperBoundInclusive == nil {
		v := false
		c.DocumentStore.ArtifactUpperBoundInclusive = &v
	}
	if c.Render.Charset == "" {
		c.Render.Charset = DefaultCharset
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Elasticsearch && c.Index == "" {
		return fmt.Errorf("config: index is required when elasticsearch is enabled")
	}
	return nil
}

func (s SearchConfig) ScrollKeepAlive() time.Duration {
	return time.Duration(s.ScrollSec) * time.Second
}
