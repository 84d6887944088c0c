package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "mtg-monitor"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	StateKey        string // "multi_meeting_state_v2"
}

// Client keeps the cursor state blob in MinIO/S3.
type Client struct {
	minioClient *minio.Client
	bucket      string
	stateKey    string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if config.StateKey == "" {
		return nil, fmt.Errorf("state key is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
		stateKey:    config.StateKey,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// StateObject returns the object name of the cursor state blob.
func (c *Client) StateObject() string {
	return StateObjectName(c.stateKey)
}

// StateObjectName returns the object name for a state key.
func StateObjectName(key string) string {
	return path.Join("state", key+".json")
}

// LoadState reads the cursor state. A missing object yields an empty state.
func (c *Client) LoadState(ctx context.Context) (models.State, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, c.StateObject(), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return models.State{}, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	return DecodeState(data)
}

// SaveState writes the whole cursor state, replacing the previous blob.
func (c *Client) SaveState(ctx context.Context, state models.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = c.minioClient.PutObject(ctx, c.bucket, c.StateObject(), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put state: %w", err)
	}
	return nil
}

// DecodeState parses a state blob. Empty input yields an empty state and
// null cursors are dropped.
func DecodeState(data []byte) (models.State, error) {
	state := models.State{}
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	for k, v := range state {
		if v == nil {
			delete(state, k)
		}
	}
	return state, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
