package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Training   TrainingConfig   `mapstructure:"training"`
	Federation FederationConfig `mapstructure:"federation"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type DataConfig struct {
	Dir         string `mapstructure:"dir"`
	DownloadURL string `mapstructure:"download_url"`
}

type TrainingConfig struct {
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Momentum     float64 `mapstructure:"momentum"`
	Epochs       int     `mapstructure:"epochs"`
}

type FederationConfig struct {
	NumClients  int     `mapstructure:"num_clients"`
	NumRounds   int     `mapstructure:"num_rounds"`
	LocalEpochs int     `mapstructure:"local_epochs"`
	FractionFit float64 `mapstructure:"fraction_fit"`
	ValRatio    float64 `mapstructure:"val_ratio"`
}

type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoadConfig reads the YAML config at path, applying environment overrides
// and defaults. The file is optional: a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	setDefaults(v)

	// Defaults cover every key, so a missing file is not fatal.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data/cifar-10-batches-bin")
	v.SetDefault("data.download_url", "https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz")

	v.SetDefault("training.batch_size", 32)
	v.SetDefault("training.learning_rate", 0.001)
	v.SetDefault("training.momentum", 0.9)
	v.SetDefault("training.epochs", 5)

	v.SetDefault("federation.num_clients", 10)
	v.SetDefault("federation.num_rounds", 3)
	v.SetDefault("federation.local_epochs", 1)
	v.SetDefault("federation.fraction_fit", 1.0)
	v.SetDefault("federation.val_ratio", 0.1)

	v.SetDefault("telemetry.metrics_addr", "")
}
