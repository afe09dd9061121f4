package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zmeta/internal/filemeta"
	"github.com/zzenonn/zmeta/internal/lock"
	"github.com/zzenonn/zmeta/internal/metacache"
	"github.com/zzenonn/zmeta/internal/perf"
	"github.com/zzenonn/zmeta/internal/repository/db"
	"github.com/zzenonn/zmeta/internal/repository/objectstore"
	"github.com/zzenonn/zmeta/internal/scanner"
	"github.com/zzenonn/zmeta/internal/service"
)

// fileDisk serves one stream file as a metadata disk, the shape per-disk
// scanner output is shipped around in.
type fileDisk struct {
	path string
}

func (d fileDisk) Name() string { return d.path }

func (d fileDisk) ListStream(ctx context.Context, bucket, prefix string) (*metacache.Reader, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, err
	}
	return metacache.NewReader(bytes.NewReader(data)), nil
}

var (
	listID     string
	storeBlock bool
)

var listPathCmd = &cobra.Command{
	Use:   "list-path [bucket] [prefix] [output-file] [disk-streams...]",
	Short: "Run a checkpointed listing pass over per-disk streams",
	Args:  cobra.MinimumNArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, prefix, outPath := args[0], args[1], args[2]

		disks := make([]service.MetadataDisk, 0, len(args[3:]))
		for _, path := range args[3:] {
			disks = append(disks, fileDisk{path: path})
		}

		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}
		checkpoints := db.NewCheckpointRepository(dynamoDb.Client, cfg.CheckpointTable)

		monitor := perf.NewMonitor(time.Second)
		monitor.Start()
		defer monitor.Stop()

		scanCfg := scanner.DefaultConfig()
		scanCfg.Mode = scanner.ParseMode(cfg.ScannerMode)
		sched := scanner.NewScheduler(scanCfg, monitor)
		locks := lock.NewManager(5*time.Second, 16)

		listSvc := service.NewListService(disks, sched, locks, &checkpoints, monitor, cfg.DirQuorum, cfg.ObjQuorum, cfg.StrictQuorum)

		if storeBlock {
			meta, err := listSvc.ListAndStore(context.Background(), bucket, prefix, listID, blockService)
			if errors.Is(err, filemeta.ErrDoneForNow) {
				fmt.Println("Scan declined by load admission, retry later")
				return
			}
			if err != nil {
				fmt.Printf("Error running listing pass: %v\n", err)
				return
			}
			fmt.Printf("Listing pass %s stored as block %s (%d bytes, %d shards)\n", listID, meta.BlockID, meta.OriginalSize, len(meta.Shards))
			return
		}

		out, err := os.Create(outPath)
		if err != nil {
			fmt.Printf("Error creating output: %v\n", err)
			return
		}
		defer out.Close()

		err = listSvc.ListPath(context.Background(), bucket, prefix, listID, out)
		if errors.Is(err, filemeta.ErrDoneForNow) {
			fmt.Println("Scan declined by load admission, retry later")
			return
		}
		if err != nil {
			fmt.Printf("Error running listing pass: %v\n", err)
			return
		}
		fmt.Printf("Listing pass %s complete: %s/%s -> %s\n", listID, bucket, prefix, outPath)
	},
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints [bucket] [prefix]",
	Short: "Show the listing checkpoints recorded for a path",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, prefix := args[0], args[1]

		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}
		repo := db.NewCheckpointRepository(dynamoDb.Client, cfg.CheckpointTable)

		cps, err := repo.ListCheckpoints(context.Background(), bucket+"/"+prefix)
		if err != nil {
			fmt.Printf("Error listing checkpoints: %v\n", err)
			return
		}

		for _, cp := range cps {
			updated := time.Unix(0, cp.UpdatedAt).Format(time.RFC3339)
			fmt.Printf("%-20s %-10s %-30s %s\n", cp.ListID, cp.Status, cp.LastName, updated)
		}
		fmt.Printf("%d checkpoints\n", len(cps))
	},
}

var (
	tagKey   string
	tagValue string
)

var discoverCmd = &cobra.Command{
	Use:   "discover-buckets",
	Short: "Find cache buckets by tag",
	Run: func(cmd *cobra.Command, args []string) {
		discovery := objectstore.NewBucketDiscovery(cfg.AwsConfig, tagKey, tagValue)
		buckets, err := discovery.DiscoverCacheBuckets(context.Background())
		if err != nil {
			fmt.Printf("Error discovering buckets: %v\n", err)
			return
		}
		for _, b := range buckets {
			fmt.Printf("%s://%s\n", b.Type, b.Name)
		}
		fmt.Printf("%d buckets tagged %s=%s\n", len(buckets), tagKey, tagValue)
	},
}

func init() {
	listPathCmd.Flags().StringVar(&listID, "list-id", "default", "Identifier of the listing pass")
	listPathCmd.Flags().BoolVar(&storeBlock, "store-block", false, "Persist the resolved stream as an erasure-coded cache block instead of just a file")
	discoverCmd.Flags().StringVar(&tagKey, "tag-key", "zmeta-cache", "Tag key marking cache buckets")
	discoverCmd.Flags().StringVar(&tagValue, "tag-value", "true", "Tag value marking cache buckets")
	rootCmd.AddCommand(listPathCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(discoverCmd)
}
