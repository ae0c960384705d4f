// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package artifacts stores sealed agent definitions. The publish flow
// writes each sealed artifact here best-effort; storage failures never
// fail the publish response.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store is the artifact storage port.
type Store interface {
	Put(ctx context.Context, name, signature string, definition map[string]interface{}) error
}

// S3Store writes artifacts to an S3 bucket (or S3-compatible storage).
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an artifact store for the given bucket
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("artifact bucket name required")
	}

	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Put writes the sealed artifact under agents/<name>/<timestamp>.json
func (s *S3Store) Put(ctx context.Context, name, signature string, definition map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"signature":  signature,
		"definition": definition,
		"sealed_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	key := fmt.Sprintf("agents/%s/%d.json", name, time.Now().UTC().UnixNano())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", key, err)
	}
	return nil
}
