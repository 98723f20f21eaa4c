// Package config resolves pipeline settings from flags, CORPUS_* environment variables,
// an optional YAML file and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bull/corpus-pipeline/internal/blobstore"
	"github.com/bull/corpus-pipeline/internal/container"
	"github.com/bull/corpus-pipeline/internal/curated"
	"github.com/bull/corpus-pipeline/internal/migrator"
	"github.com/bull/corpus-pipeline/internal/staging"
	"github.com/bull/corpus-pipeline/internal/tokenizer"
)

// EnvPrefix is prepended to every environment key, e.g. CORPUS_STAGING_MYSQL_HOST.
const EnvPrefix = "CORPUS"

// Blob backends.
const (
	BlobS3  = "s3"
	BlobDir = "dir"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Source         SourceConfig    `mapstructure:"source" yaml:"source"`
	Blob           BlobConfig      `mapstructure:"blob" yaml:"blob"`
	Staging        StagingConfig   `mapstructure:"staging" yaml:"staging"`
	Curated        CuratedConfig   `mapstructure:"curated" yaml:"curated"`
	Tokenizer      TokenizerConfig `mapstructure:"tokenizer" yaml:"tokenizer"`
	ConnectRetries int             `mapstructure:"connect_retries" yaml:"connect_retries"`
	Verbose        bool            `mapstructure:"verbose" yaml:"verbose"`
	LogFormat      string          `mapstructure:"log_format" yaml:"log_format"`
}

type SourceConfig struct {
	Root      string   `mapstructure:"root" yaml:"root"`
	Splits    []string `mapstructure:"splits" yaml:"splits"`
	TextField string   `mapstructure:"text_field" yaml:"text_field"`
}

type BlobConfig struct {
	Backend    string    `mapstructure:"backend" yaml:"backend"`
	Bucket     string    `mapstructure:"bucket" yaml:"bucket"`
	Key        string    `mapstructure:"key" yaml:"key"`
	ScratchDir string    `mapstructure:"scratch_dir" yaml:"scratch_dir"`
	S3         S3Config  `mapstructure:"s3" yaml:"s3"`
	Dir        DirConfig `mapstructure:"dir" yaml:"dir"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style" yaml:"path_style"`
}

type DirConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type StagingConfig struct {
	Driver    string       `mapstructure:"driver" yaml:"driver"`
	Table     string       `mapstructure:"table" yaml:"table"`
	BatchSize int          `mapstructure:"batch_size" yaml:"batch_size"`
	MySQL     MySQLConfig  `mapstructure:"mysql" yaml:"mysql"`
	SQLite    SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type CuratedConfig struct {
	Backend    string       `mapstructure:"backend" yaml:"backend"`
	Collection string       `mapstructure:"collection" yaml:"collection"`
	BatchSize  int          `mapstructure:"batch_size" yaml:"batch_size"`
	Source     string       `mapstructure:"source" yaml:"source"`
	Mongo      MongoConfig  `mapstructure:"mongo" yaml:"mongo"`
	Qdrant     QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	UseTLS bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

type TokenizerConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	MaxLength int    `mapstructure:"max_length" yaml:"max_length"`
}

// SetDefaults registers every key so environment variables resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.root", "")
	v.SetDefault("source.splits", container.DefaultSplits)
	v.SetDefault("source.text_field", container.DefaultTextField)

	v.SetDefault("blob.backend", BlobS3)
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.key", "combined_raw.txt")
	v.SetDefault("blob.scratch_dir", "")
	v.SetDefault("blob.s3.endpoint", "http://localhost:4566")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.access_key_id", "test")
	v.SetDefault("blob.s3.secret_access_key", "test")
	v.SetDefault("blob.s3.path_style", true)
	v.SetDefault("blob.dir.path", "")

	v.SetDefault("staging.driver", staging.DriverMySQL)
	v.SetDefault("staging.table", staging.DefaultTable)
	v.SetDefault("staging.batch_size", staging.DefaultBatchSize)
	v.SetDefault("staging.mysql.host", "localhost")
	v.SetDefault("staging.mysql.port", 3306)
	v.SetDefault("staging.mysql.user", "root")
	v.SetDefault("staging.mysql.password", "root")
	v.SetDefault("staging.mysql.database", "staging")
	v.SetDefault("staging.sqlite.path", "staging.db")

	v.SetDefault("curated.backend", curated.BackendMongo)
	v.SetDefault("curated.collection", curated.DefaultCollection)
	v.SetDefault("curated.batch_size", migrator.DefaultBatchSize)
	v.SetDefault("curated.source", "")
	v.SetDefault("curated.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("curated.mongo.database", "curated")
	v.SetDefault("curated.qdrant.host", "localhost")
	v.SetDefault("curated.qdrant.port", 6334)
	v.SetDefault("curated.qdrant.api_key", "")
	v.SetDefault("curated.qdrant.use_tls", false)

	v.SetDefault("tokenizer.name", tokenizer.DefaultName)
	v.SetDefault("tokenizer.max_length", migrator.DefaultMaxLength)

	v.SetDefault("connect_retries", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("log_format", "text")
}

// New returns a viper instance with defaults and CORPUS_* environment lookup.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) validateCommon() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.ConnectRetries < 0 {
		return invalid("connect_retries must not be negative")
	}
	return nil
}

func (c *Config) validateBlob() error {
	b := c.Blob
	switch b.Backend {
	case BlobS3:
		if b.S3.Region == "" {
			return invalid("blob.s3.region is required")
		}
	case BlobDir:
		if b.Dir.Path == "" {
			return invalid("blob.dir.path is required for the dir backend")
		}
	default:
		return invalid("blob.backend must be %s or %s, got %q", BlobS3, BlobDir, b.Backend)
	}
	if b.Bucket == "" {
		return invalid("blob.bucket is required")
	}
	if b.Key == "" {
		return invalid("blob.key is required")
	}
	return nil
}

func (c *Config) validateStaging() error {
	s := c.Staging
	switch s.Driver {
	case staging.DriverMySQL:
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return invalid("staging.mysql.host and staging.mysql.database are required")
		}
	case staging.DriverSQLite:
		if s.SQLite.Path == "" {
			return invalid("staging.sqlite.path is required")
		}
	default:
		return invalid("staging.driver must be %s or %s, got %q", staging.DriverMySQL, staging.DriverSQLite, s.Driver)
	}
	if s.BatchSize < 1 || s.BatchSize > staging.MaxBatchSize {
		return invalid("staging.batch_size must be between 1 and %d", staging.MaxBatchSize)
	}
	return nil
}

// ValidateUnpack checks the settings the unpack stage reads.
func (c *Config) ValidateUnpack() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Source.Root == "" {
		return invalid("source.root is required")
	}
	if c.Source.TextField == "" {
		return invalid("source.text_field is required")
	}
	return c.validateBlob()
}

// ValidateStage checks the settings the staging stage reads.
func (c *Config) ValidateStage() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateBlob(); err != nil {
		return err
	}
	return c.validateStaging()
}

// ValidateCurate checks the settings the curation stage reads.
func (c *Config) ValidateCurate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if err := c.validateStaging(); err != nil {
		return err
	}

	cur := c.Curated
	switch cur.Backend {
	case curated.BackendMongo:
		if cur.Mongo.URI == "" || cur.Mongo.Database == "" {
			return invalid("curated.mongo.uri and curated.mongo.database are required")
		}
	case curated.BackendQdrant:
		if cur.Qdrant.Host == "" {
			return invalid("curated.qdrant.host is required")
		}
	default:
		return invalid("curated.backend must be %s or %s, got %q", curated.BackendMongo, curated.BackendQdrant, cur.Backend)
	}
	if cur.Collection == "" {
		return invalid("curated.collection is required")
	}
	if cur.BatchSize < 1 {
		return invalid("curated.batch_size must be positive")
	}

	if _, err := tokenizer.Resolve(c.Tokenizer.Name); err != nil {
		return invalid("tokenizer.name: %v (accepted: %s)", err, strings.Join(tokenizer.Names(), ", "))
	}
	if c.Tokenizer.MaxLength < 1 {
		return invalid("tokenizer.max_length must be positive")
	}
	return nil
}

// MetadataSource is the value written to metadata.source: curated.source when set,
// otherwise the staging driver name.
func (c *Config) MetadataSource() string {
	if c.Curated.Source != "" {
		return c.Curated.Source
	}
	return c.Staging.Driver
}

func (c *Config) ReaderOptions() container.Options {
	return container.Options{
		Root:      c.Source.Root,
		Splits:    c.Source.Splits,
		TextField: c.Source.TextField,
	}
}

func (c *Config) S3Options() blobstore.S3Options {
	return blobstore.S3Options{
		Endpoint:        c.Blob.S3.Endpoint,
		Region:          c.Blob.S3.Region,
		AccessKeyID:     c.Blob.S3.AccessKeyID,
		SecretAccessKey: c.Blob.S3.SecretAccessKey,
		UsePathStyle:    c.Blob.S3.PathStyle,
		ConnectRetries:  c.ConnectRetries,
	}
}

func (c *Config) StagingOptions() staging.Options {
	opts := staging.Options{
		Driver:         c.Staging.Driver,
		Table:          c.Staging.Table,
		ConnectRetries: c.ConnectRetries,
	}
	switch c.Staging.Driver {
	case staging.DriverMySQL:
		m := c.Staging.MySQL
		opts.DSN = staging.MySQLDSN(m.Host, m.Port, m.User, m.Password, m.Database)
	case staging.DriverSQLite:
		opts.DSN = c.Staging.SQLite.Path
	}
	return opts
}

func (c *Config) CuratedOptions() curated.Options {
	return curated.Options{
		Backend: c.Curated.Backend,
		Mongo: curated.MongoOptions{
			URI:            c.Curated.Mongo.URI,
			Database:       c.Curated.Mongo.Database,
			Collection:     c.Curated.Collection,
			ConnectRetries: c.ConnectRetries,
		},
		Qdrant: curated.QdrantOptions{
			Host:           c.Curated.Qdrant.Host,
			Port:           c.Curated.Qdrant.Port,
			APIKey:         c.Curated.Qdrant.APIKey,
			UseTLS:         c.Curated.Qdrant.UseTLS,
			Collection:     c.Curated.Collection,
			ConnectRetries: c.ConnectRetries,
		},
	}
}

func (c *Config) MigratorOptions() migrator.Options {
	return migrator.Options{
		BatchSize: c.Curated.BatchSize,
		MaxLength: c.Tokenizer.MaxLength,
		Source:    c.MetadataSource(),
	}
}

const mask = "****"

var uriPassword = regexp.MustCompile(`://([^:/@]+):([^@]*)@`)

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return mask
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Source.Splits = append([]string(nil), c.Source.Splits...)
	out.Blob.S3.AccessKeyID = maskSecret(c.Blob.S3.AccessKeyID)
	out.Blob.S3.SecretAccessKey = maskSecret(c.Blob.S3.SecretAccessKey)
	out.Staging.MySQL.Password = maskSecret(c.Staging.MySQL.Password)
	out.Curated.Qdrant.APIKey = maskSecret(c.Curated.Qdrant.APIKey)
	out.Curated.Mongo.URI = uriPassword.ReplaceAllString(c.Curated.Mongo.URI, "://$1:"+mask+"@")
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	data, err := yaml.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
