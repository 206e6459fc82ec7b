package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g.
// CHUPLOAD_UPLOAD_CHUNK_SIZE.
const EnvPrefix = "chupload"

type UploadConfig struct {
	PostFieldPrefix    string   `yaml:"post_field_prefix" envconfig:"POST_FIELD_PREFIX"`
	ChunkSize          ByteSize `yaml:"chunk_size" envconfig:"CHUNK_SIZE"`
	MaxFilesize        ByteSize `yaml:"max_filesize" envconfig:"MAX_FILESIZE"`
	RequireFingerprint bool     `yaml:"require_fingerprint" envconfig:"REQUIRE_FINGERPRINT"`
	TempDir            string   `yaml:"tempdir" envconfig:"TEMPDIR"`
	DestDir            string   `yaml:"destdir" envconfig:"DESTDIR"`
	SpoolDir           string   `yaml:"spooldir" envconfig:"SPOOLDIR"`
	UseLocks           bool     `yaml:"use_locks" envconfig:"USE_LOCKS"`
	// StripDirs reduces client names to their last path element.
	StripDirs bool `yaml:"strip_dirs" envconfig:"STRIP_DIRS"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket" envconfig:"BUCKET"`
	Region string `yaml:"region" envconfig:"REGION"`
	Prefix string `yaml:"prefix" envconfig:"PREFIX"`
	// Endpoint points at an S3 compatible store instead of AWS.
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	// KeepLocal leaves the destination file in place after archiving.
	KeepLocal bool `yaml:"keep_local" envconfig:"KEEP_LOCAL"`
}

func (ac ArchiveConfig) Enabled() bool {
	return ac.Bucket != ""
}

type WorkerConfig struct {
	PoolSize int `yaml:"pool_size" envconfig:"POOL_SIZE"`
	// QueueKind is "list" (RPUSH/BLPOP) or "stream" (consumer groups).
	QueueKind string `yaml:"queue_kind" envconfig:"QUEUE_KIND"`
}

type AppConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	DbName   string        `yaml:"db_name" envconfig:"DB_NAME"`
	RedisURL string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	Upload   UploadConfig  `yaml:"upload" envconfig:"UPLOAD"`
	Archive  ArchiveConfig `yaml:"archive" envconfig:"ARCHIVE"`
	Worker   WorkerConfig  `yaml:"worker" envconfig:"WORKER"`
}

func Default() AppConfig {
	return AppConfig{
		Addr:   ":9191",
		DbName: "./tmp/chupload.db",
		Upload: UploadConfig{
			PostFieldPrefix: "__chupload_",
			ChunkSize:       100 * 1024,
			MaxFilesize:     10 * 1024 * 1024,
			TempDir:         "./tmp/chupload/temp",
			DestDir:         "./tmp/chupload/dest",
			SpoolDir:        "./tmp/chupload/spool",
			UseLocks:        true,
		},
		Worker: WorkerConfig{
			PoolSize:  4,
			QueueKind: "list",
		},
	}
}

var placeholder = regexp.MustCompile(`\$\{[^}]*\}`)

// expandEnv fills ${VAR} and ${VAR:-fallback} placeholders in a config
// file. Unset or empty variables take the fallback, which defaults to "".
// A bare $VAR is left as written.
func expandEnv(data []byte) []byte {
	return placeholder.ReplaceAllFunc(data, func(m []byte) []byte {
		name, fallback, _ := strings.Cut(string(m[2:len(m)-1]), ":-")

		if value := os.Getenv(name); value != "" {
			return []byte(value)
		}

		return []byte(fallback)
	})
}

// Load starts from Default, applies the YAML file at path when one is given
// and finally the CHUPLOAD_* environment.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("cannot read config file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
			return cfg, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid environment: %w", err)
	}

	switch cfg.Worker.QueueKind {
	case "list", "stream":
	default:
		return cfg, fmt.Errorf("unknown queue kind %q", cfg.Worker.QueueKind)
	}

	return cfg, nil
}
