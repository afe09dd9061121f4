package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/cache"
)

// BucketDiscovery finds cache buckets by tag through the Resource Groups
// Tagging API, so new buckets join the placement pool without a config push.
// Lookups are cached; a failed refresh serves the last good set.
type BucketDiscovery struct {
	client   *resourcegroupstaggingapi.Client
	tagKey   string
	tagValue string
	cached   *cache.Cache[[]BucketConfig]
}

// NewBucketDiscovery builds a discovery client matching buckets carrying the
// given tag.
func NewBucketDiscovery(awsConfig aws.Config, tagKey, tagValue string) *BucketDiscovery {
	d := &BucketDiscovery{
		client:   resourcegroupstaggingapi.NewFromConfig(awsConfig),
		tagKey:   tagKey,
		tagValue: tagValue,
	}
	d.cached = cache.New(5*time.Minute, cache.Opts{ReturnLastGood: true}, d.lookup)
	return d
}

// DiscoverCacheBuckets returns the tagged buckets, served from cache when
// fresh.
func (d *BucketDiscovery) DiscoverCacheBuckets(ctx context.Context) ([]BucketConfig, error) {
	return d.cached.Get(ctx)
}

func (d *BucketDiscovery) lookup(ctx context.Context) ([]BucketConfig, error) {
	input := &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{"s3:bucket"},
		TagFilters: []types.TagFilter{
			{
				Key:    aws.String(d.tagKey),
				Values: []string{d.tagValue},
			},
		},
	}

	var buckets []BucketConfig
	for {
		result, err := d.client.GetResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to discover cache buckets: %w", err)
		}

		for _, mapping := range result.ResourceTagMappingList {
			if mapping.ResourceARN == nil {
				continue
			}
			name := bucketNameFromARN(*mapping.ResourceARN)
			if name == "" {
				log.Warnf("Skipping unparseable bucket ARN %q", *mapping.ResourceARN)
				continue
			}
			buckets = append(buckets, BucketConfig{Name: name, Type: S3Type})
		}

		if result.PaginationToken == nil || *result.PaginationToken == "" {
			break
		}
		input.PaginationToken = result.PaginationToken
	}

	log.Debugf("Discovered %d cache buckets tagged %s=%s", len(buckets), d.tagKey, d.tagValue)
	return buckets, nil
}

// bucketNameFromARN extracts the bucket name from "arn:aws:s3:::name".
func bucketNameFromARN(arn string) string {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 || idx == len(arn)-1 {
		return ""
	}
	return arn[idx+1:]
}
