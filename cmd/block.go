package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zmeta/internal/repository/db"
)

var putBlockCmd = &cobra.Command{
	Use:   "put-block [stream-file] [bucket] [block-id]",
	Short: "Store a merged stream as an erasure-coded cache block",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		path, bucket, blockID := args[0], args[1], args[2]

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Error reading stream file: %v\n", err)
			return
		}

		listID, _ := cmd.Flags().GetString("list-id")
		meta, err := blockService.WriteBlock(context.Background(), bucket, blockID, listID, data)
		if err != nil {
			fmt.Printf("Error storing block: %v\n", err)
			return
		}
		fmt.Printf("Block stored: %s/%s (%d bytes, %d shards)\n", bucket, blockID, meta.OriginalSize, len(meta.Shards))
	},
}

var getBlockCmd = &cobra.Command{
	Use:   "get-block [bucket] [block-id] [output-file]",
	Short: "Reconstruct a cache block from its shards",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, blockID, outPath := args[0], args[1], args[2]

		data, err := blockService.ReadBlock(context.Background(), bucket, blockID)
		if err != nil {
			fmt.Printf("Error reading block: %v\n", err)
			return
		}

		if err := os.WriteFile(outPath, data, 0644); err != nil {
			fmt.Printf("Error writing output file: %v\n", err)
			return
		}
		fmt.Printf("Block reconstructed: %s/%s -> %s (%d bytes)\n", bucket, blockID, outPath, len(data))
	},
}

var deleteBlockCmd = &cobra.Command{
	Use:   "delete-block [bucket] [block-id]",
	Short: "Delete a cache block's shards and metadata",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, blockID := args[0], args[1]

		if err := blockService.DeleteBlock(context.Background(), bucket, blockID); err != nil {
			fmt.Printf("Error deleting block: %v\n", err)
			return
		}
		fmt.Printf("Block deleted: %s/%s\n", bucket, blockID)
	},
}

var listBlocksCmd = &cobra.Command{
	Use:   "list-blocks [bucket]",
	Short: "List the cache blocks recorded for a bucket",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bucket := args[0]

		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}
		repo := db.NewBlockMetaRepository(dynamoDb.Client, cfg.BlockMetaTable)

		metas, err := repo.ListBlocksByBucket(context.Background(), bucket)
		if err != nil {
			fmt.Printf("Error listing blocks: %v\n", err)
			return
		}

		for _, meta := range metas {
			fmt.Printf("%-40s %-20s %10d bytes %d shards\n", meta.BlockID, meta.ListID, meta.OriginalSize, len(meta.Shards))
		}
		fmt.Printf("%d blocks\n", len(metas))
	},
}

var purgeListingCmd = &cobra.Command{
	Use:   "purge-listing [prefix]",
	Short: "Remove every shard stored under a listing's key prefix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prefix := args[0]

		if err := blockService.PurgeListing(context.Background(), prefix); err != nil {
			fmt.Printf("Error purging listing: %v\n", err)
			return
		}
		fmt.Printf("Purged shards under %s\n", prefix)
	},
}

func init() {
	putBlockCmd.Flags().String("list-id", "", "Listing pass the block belongs to")
	rootCmd.AddCommand(putBlockCmd)
	rootCmd.AddCommand(getBlockCmd)
	rootCmd.AddCommand(deleteBlockCmd)
	rootCmd.AddCommand(listBlocksCmd)
	rootCmd.AddCommand(purgeListingCmd)
}
