// Package config loads marabou settings from a YAML file and MARABOU_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MARABOU_SERVER_PORT.
const EnvPrefix = "MARABOU"

// Config stores all configuration of the application.
type Config struct {
	Server    ServerConfig `mapstructure:"server"`
	Log       LogConfig    `mapstructure:"log"`
	Redis     RedisConfig  `mapstructure:"redis"`
	Paths     PathsConfig  `mapstructure:"paths"`
	Sentiment TrainConfig  `mapstructure:"sentiment"`
	NER       TrainConfig  `mapstructure:"ner"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig configures the optional prediction cache.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	// LocalSize bounds the in-process cache used when redis is off or unreachable.
	LocalSize int           `mapstructure:"local_size"`
}

// PathsConfig locates artifacts. Relative paths are resolved against Home.
type PathsConfig struct {
	Home             string `mapstructure:"home"`
	TrainedModels    string `mapstructure:"trained_models"`
	EvaluationModels string `mapstructure:"evaluation_models"`
	Perf             string `mapstructure:"perf"`
}

// TrainConfig holds the hyperparameters of one task.
type TrainConfig struct {
	Dataset                string  `mapstructure:"dataset" yaml:"dataset"`
	VocabSize              int     `mapstructure:"vocab_size" yaml:"vocab_size"`
	MaxSequenceLength      int     `mapstructure:"max_sequence_length" yaml:"max_sequence_length"`
	ValidationSplit        float64 `mapstructure:"validation_split" yaml:"validation_split"`
	EmbeddingDimension     int     `mapstructure:"embedding_dimension" yaml:"embedding_dimension"`
	PreTrainedEmbedding    bool    `mapstructure:"pre_trained_embedding" yaml:"pre_trained_embedding"`
	TrainableEmbedding     bool    `mapstructure:"trainable_embedding" yaml:"trainable_embedding"`
	EmbeddingAlgorithm     string  `mapstructure:"embedding_algorithm" yaml:"embedding_algorithm"`
	EmbeddingsPathGlove    string  `mapstructure:"embeddings_path_glove" yaml:"embeddings_path_glove"`
	EmbeddingsPathFastText string  `mapstructure:"embeddings_path_fasttext" yaml:"embeddings_path_fasttext"`
	Epochs                 int     `mapstructure:"epochs" yaml:"epochs"`
	BatchSize              int     `mapstructure:"batch_size" yaml:"batch_size"`
	LearningRate           float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	ClipValue              float64 `mapstructure:"clip_value" yaml:"clip_value"`
	HiddenUnits            int     `mapstructure:"hidden_units" yaml:"hidden_units"`
	// DenseUnits and Head shape the entity tagger only.
	DenseUnits             int     `mapstructure:"dense_units" yaml:"dense_units,omitempty"`
	Head                   string  `mapstructure:"head" yaml:"head,omitempty"`
	Seed                   int64   `mapstructure:"seed" yaml:"seed"`
	Workers                int     `mapstructure:"workers" yaml:"workers"`
}

// EmbeddingsPath returns the vector file for the configured algorithm.
func (t TrainConfig) EmbeddingsPath() string {
	switch t.EmbeddingAlgorithm {
	case "glove":
		return t.EmbeddingsPathGlove
	case "fasttext":
		return t.EmbeddingsPathFastText
	}
	return ""
}

// Validate reports the first invalid hyperparameter.
func (t TrainConfig) Validate() error {
	switch {
	case t.MaxSequenceLength <= 0:
		return errors.New("max_sequence_length must be positive")
	case t.EmbeddingDimension <= 0:
		return errors.New("embedding_dimension must be positive")
	case t.HiddenUnits <= 0:
		return errors.New("hidden_units must be positive")
	case t.Epochs < 0:
		return errors.New("epochs must not be negative")
	case t.BatchSize <= 0:
		return errors.New("batch_size must be positive")
	case t.ValidationSplit < 0 || t.ValidationSplit >= 1:
		return errors.New("validation_split must be in [0, 1)")
	case t.PreTrainedEmbedding && t.EmbeddingsPath() == "":
		return fmt.Errorf("no embeddings path for algorithm %q", t.EmbeddingAlgorithm)
	}
	return nil
}

// Load reads configuration from path, or from config.yaml in the usual
// search locations when path is empty. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
			v.AddConfigPath(home)
		}
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.Paths.resolve()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")
	v.SetDefault("redis.local_size", 10000)

	v.SetDefault("paths.home", ".")
	v.SetDefault("paths.trained_models", "train/trained_models")
	v.SetDefault("paths.evaluation_models", "evaluation/trained_models")
	v.SetDefault("paths.perf", "train/perf")

	taskDefaults(v, "sentiment", "data/imdb_reviews.csv", 100)
	taskDefaults(v, "ner", "data/ner_dataset.csv", 50)
	v.SetDefault("ner.dense_units", 50)
	v.SetDefault("ner.head", "crf")
}

func taskDefaults(v *viper.Viper, task, dataset string, maxLen int) {
	v.SetDefault(task+".dataset", dataset)
	v.SetDefault(task+".vocab_size", 20000)
	v.SetDefault(task+".max_sequence_length", maxLen)
	v.SetDefault(task+".validation_split", 0.2)
	v.SetDefault(task+".embedding_dimension", 100)
	v.SetDefault(task+".pre_trained_embedding", false)
	v.SetDefault(task+".trainable_embedding", false)
	v.SetDefault(task+".embedding_algorithm", "glove")
	v.SetDefault(task+".embeddings_path_glove", "embeddings/glove.6B.100d.txt")
	v.SetDefault(task+".embeddings_path_fasttext", "embeddings/wiki-news-300d-1M.vec")
	v.SetDefault(task+".epochs", 5)
	v.SetDefault(task+".batch_size", 64)
	v.SetDefault(task+".learning_rate", 0.001)
	v.SetDefault(task+".clip_value", 5.0)
	v.SetDefault(task+".hidden_units", 50)
	v.SetDefault(task+".seed", 42)
	v.SetDefault(task+".workers", 4)
}

func (p *PathsConfig) resolve() {
	for _, dir := range []*string{&p.TrainedModels, &p.EvaluationModels, &p.Perf} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(p.Home, *dir)
		}
	}
}

// WriteTrainConfig writes t as YAML to path so a training run can be repeated.
func WriteTrainConfig(path string, t TrainConfig) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal train config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadTrainConfig reads a file written by WriteTrainConfig.
func ReadTrainConfig(path string) (TrainConfig, error) {
	var t TrainConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("unmarshal train config: %w", err)
	}
	return t, nil
}
