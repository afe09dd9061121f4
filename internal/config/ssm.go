package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ApplySSMParameters overlays parameters from an SSM Parameter Store
// hierarchy onto the viper configuration. A parameter /zmeta/obj_quorum
// under path /zmeta becomes the key obj_quorum; nested paths map to dotted
// keys. CLI flags still win because viper.Set has lower precedence than
// flag bindings.
func ApplySSMParameters(ctx context.Context, awsConfig aws.Config, path string) error {
	client := ssm.NewFromConfig(awsConfig)

	input := &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	}

	applied := 0
	for {
		result, err := client.GetParametersByPath(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to read SSM parameters under %s: %w", path, err)
		}

		for _, p := range result.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key := ssmKey(path, *p.Name)
			if key == "" {
				continue
			}
			viper.Set(key, *p.Value)
			applied++
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		input.NextToken = result.NextToken
	}

	log.Debugf("Applied %d SSM parameters from %s", applied, path)
	return nil
}

// ssmKey converts a parameter name beneath the base path into a viper key.
func ssmKey(basePath, name string) string {
	rel := strings.TrimPrefix(name, strings.TrimSuffix(basePath, "/"))
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return ""
	}
	return strings.ReplaceAll(rel, "/", ".")
}
