package config

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BucketConfig represents a storage bucket configuration
type BucketConfig struct {
	BucketName string `yaml:"bucket_name"`
	Platform   string `yaml:"platform"`
}

// Config holds the application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`
	// AwsConfig: AWS SDK uses a shared configuration object that contains
	// credentials, region, retry policies, etc. Multiple AWS services
	// (S3, DynamoDB, SSM, etc.) are created from this single config.
	AwsConfig aws.Config
	// GcsClient: Google Cloud SDK uses individual service clients that
	// handle their own configuration internally via environment variables,
	// service account files, or metadata service. No shared config needed.
	GcsClient *storage.Client

	CheckpointTable string                  `yaml:"checkpoint_table"`
	BlockMetaTable  string                  `yaml:"block_meta_table"`
	Buckets         map[string]BucketConfig `yaml:"buckets"`

	// Quorum settings for stream resolution.
	DirQuorum    int  `yaml:"dir_quorum"`
	ObjQuorum    int  `yaml:"obj_quorum"`
	StrictQuorum bool `yaml:"strict_quorum"`

	// Erasure coding geometry for cache blocks.
	DataShards   int `yaml:"data_shards"`
	ParityShards int `yaml:"parity_shards"`

	// ScannerMode is one of disabled, low-load-only, normal, aggressive.
	ScannerMode string `yaml:"scanner_mode"`

	// SSMParameterPath, when set, overlays parameters from the SSM
	// Parameter Store hierarchy onto the configuration.
	SSMParameterPath string `yaml:"ssm_parameter_path"`
}

// LoadConfig loads configuration from config.yaml, environment variables, CLI
// flags, and optionally SSM Parameter Store.
// Priority: CLI flags > SSM parameters > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	awsConfig, err := loadAWSConfig()
	if err != nil {
		return nil, err
	}

	if ssmPath := viper.GetString("ssm_parameter_path"); ssmPath != "" {
		if err := ApplySSMParameters(context.Background(), awsConfig, ssmPath); err != nil {
			return nil, err
		}
	}

	gcsClient, err := loadGCSClient()
	if err != nil {
		return nil, err
	}

	buckets := parseBuckets()

	return &Config{
		LogLevel:         viper.GetString("log_level"),
		AwsConfig:        awsConfig,
		GcsClient:        gcsClient,
		CheckpointTable:  viper.GetString("checkpoint_table"),
		BlockMetaTable:   viper.GetString("block_meta_table"),
		Buckets:          buckets,
		DirQuorum:        viper.GetInt("dir_quorum"),
		ObjQuorum:        viper.GetInt("obj_quorum"),
		StrictQuorum:     viper.GetBool("strict_quorum"),
		DataShards:       viper.GetInt("data_shards"),
		ParityShards:     viper.GetInt("parity_shards"),
		ScannerMode:      viper.GetString("scanner_mode"),
		SSMParameterPath: viper.GetString("ssm_parameter_path"),
	}, nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("checkpoint_table", "listing_checkpoints")
	viper.SetDefault("block_meta_table", "cache_block_meta")
	viper.SetDefault("dir_quorum", 2)
	viper.SetDefault("obj_quorum", 2)
	viper.SetDefault("strict_quorum", false)
	viper.SetDefault("data_shards", 4)
	viper.SetDefault("parity_shards", 2)
	viper.SetDefault("scanner_mode", "normal")
	viper.SetDefault("buckets", map[string]interface{}{
		"default-bucket": map[string]interface{}{
			"bucket_name": "default-bucket",
			"platform":    "s3",
		},
	})
}

// loadAWSConfig loads AWS SDK configuration
func loadAWSConfig() (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %v", err)
	}
	return cfg, nil
}

// loadGCSClient loads Google Cloud Storage client
func loadGCSClient() (*storage.Client, error) {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %v", err)
	}
	return client, nil
}

// parseBuckets parses bucket configuration from Viper
func parseBuckets() map[string]BucketConfig {
	bucketsMap := make(map[string]BucketConfig)
	bucketsRaw := viper.GetStringMap("buckets")

	for key, value := range bucketsRaw {
		if bucketMap, ok := value.(map[string]interface{}); ok {
			bucketsMap[key] = BucketConfig{
				BucketName: getString(bucketMap, "bucket_name", key),
				Platform:   getString(bucketMap, "platform", "s3"),
			}
		}
	}

	return bucketsMap
}

// SetConfigValue sets a configuration value (used for CLI flags)
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}

// getString safely extracts string value from map with default
func getString(m map[string]interface{}, key, defaultValue string) string {
	if value, exists := m[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}
