package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zmeta/internal/config"
	"github.com/zzenonn/zmeta/internal/logging"
	"github.com/zzenonn/zmeta/internal/placement"
	"github.com/zzenonn/zmeta/internal/repository/db"
	"github.com/zzenonn/zmeta/internal/repository/migrate"
	"github.com/zzenonn/zmeta/internal/repository/objectstore"
	"github.com/zzenonn/zmeta/internal/service"
)

var (
	cfg          *config.Config
	blockService *service.BlockService
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "zmeta",
	Short: "Listing-cache metadata tool",
	Long:  "CLI for inspecting, merging, and storing erasure-coded listing-cache metadata",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cobra.OnInitialize(initConfig)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize and migrate the database",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		if err := migrate.Up(context.Background(), dynamoDb.Client); err != nil {
			fmt.Printf("Failed to migrate the database: %v\n", err)
			return
		}

		fmt.Println("Database initialized and migrated successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		if err := migrate.Down(context.Background(), dynamoDb.Client); err != nil {
			fmt.Printf("Failed to roll back migrations: %v\n", err)
			return
		}

		fmt.Println("Database migrations rolled back successfully")
	},
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)

	dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}

	factory := objectstore.NewObjectRepositoryFactory(cfg.AwsConfig, cfg.GcsClient)
	placer := placement.NewRoundRobinPlacer()
	for _, bucket := range cfg.Buckets {
		repo, err := factory.CreateRepository(objectstore.BucketConfig{
			Name: bucket.BucketName,
			Type: objectstore.RepositoryType(bucket.Platform),
		})
		if err != nil {
			log.Fatalf("Failed to create repository for bucket %s: %v", bucket.BucketName, err)
		}
		if err := placer.RegisterBucket(bucket.BucketName, repo); err != nil {
			log.Fatalf("Failed to register bucket %s: %v", bucket.BucketName, err)
		}
	}

	blockMetaRepo := db.NewBlockMetaRepository(dynamoDb.Client, cfg.BlockMetaTable)
	blockService = service.NewBlockService(placer, &blockMetaRepo, cfg.DataShards, cfg.ParityShards, false)
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
