package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jhellingsdata/search-app/engine/domain"
)

// ObjectGetter is the slice of the S3 API the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// CorpusConfig selects where the article corpus is loaded from at startup.
type CorpusConfig struct {
	UseS3     bool
	Bucket    string
	Key       string
	LocalPath string
}

// NewS3Client builds an S3 client from the ambient AWS configuration.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// LoadCorpus loads the slug-to-article mapping from S3 when configured, with
// a fallback to the local file if the remote read fails but a local copy
// exists. With UseS3 false the getter may be nil.
func LoadCorpus(ctx context.Context, cfg CorpusConfig, getter ObjectGetter, log *slog.Logger) (map[string]domain.ArticleRecord, error) {
	if log == nil {
		log = slog.Default()
	}

	if cfg.UseS3 {
		articles, err := loadFromS3(ctx, cfg, getter)
		if err == nil {
			return articles, nil
		}
		log.Error("store: s3 corpus load failed, trying local file", "error", err, "bucket", cfg.Bucket, "key", cfg.Key)
		if _, statErr := os.Stat(cfg.LocalPath); statErr != nil {
			return nil, fmt.Errorf("store: s3 load failed and no local fallback at %s: %w", cfg.LocalPath, err)
		}
	}

	return loadFromFile(cfg.LocalPath)
}

func loadFromS3(ctx context.Context, cfg CorpusConfig, getter ObjectGetter) (map[string]domain.ArticleRecord, error) {
	if getter == nil {
		return nil, fmt.Errorf("store: nil s3 client")
	}
	out, err := getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(cfg.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("store: s3 get s3://%s/%s: %w", cfg.Bucket, cfg.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 read body: %w", err)
	}

	var articles map[string]domain.ArticleRecord
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("store: s3 decode: %w", err)
	}
	return articles, nil
}

func loadFromFile(path string) (map[string]domain.ArticleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var articles map[string]domain.ArticleRecord
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return articles, nil
}
