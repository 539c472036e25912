package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "futuresflow/config"
	"futuresflow/internal/metadata"
	"futuresflow/logger"
	"futuresflow/models"
)

// objectPutter is the part of the S3 client the mirror uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// partRecorder records uploaded parts in table metadata.
type partRecorder interface {
	AddFile(df metadata.DataFile) error
}

// S3Mirror uploads every persisted batch as a parquet part under
// prefix/market/symbol/tradingDay/.
type S3Mirror struct {
	client      objectPutter
	bucket      string
	prefix      string
	compression string
	version     string
	manifest    partRecorder
	log         *logger.Log

	parts int64
	bytes int64
}

// NewS3Mirror builds the S3 client from cfg. Static keys are used when set,
// otherwise the default AWS credential chain.
func NewS3Mirror(ctx context.Context, cfg appconfig.S3Config, version string) (*S3Mirror, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	m := newS3Mirror(client, cfg.Bucket, cfg.Prefix, cfg.Compression, version)
	if cfg.MetadataDir != "" {
		gen := metadata.NewGenerator(cfg.MetadataDir, "s3://"+path.Join(cfg.Bucket, cfg.Prefix), cfg.Table)
		if err := gen.WriteCatalogEntry(filepath.Join(cfg.MetadataDir, "catalog")); err != nil {
			return nil, fmt.Errorf("failed to write table catalog entry: %w", err)
		}
		m.manifest = gen
	}
	m.log.WithComponent("s3").WithFields(logger.Fields{
		"bucket":     cfg.Bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
		"metadata":   cfg.MetadataDir,
	}).Info("s3 mirror initialized")
	return m, nil
}

func newS3Mirror(client objectPutter, bucket, prefix, compression, version string) *S3Mirror {
	return &S3Mirror{
		client:      client,
		bucket:      bucket,
		prefix:      prefix,
		compression: compression,
		version:     version,
		log:         logger.GetLogger(),
	}
}

func (m *S3Mirror) Name() string { return "s3" }

// Key returns the object key for one uploaded batch.
func (m *S3Mirror) Key(category models.InstrumentCategory, instrumentID, tradingDay, batchID string) string {
	return path.Join(m.prefix, category.MarketCode, category.Symbol, tradingDay,
		fmt.Sprintf("%s_%s_%s.parquet", instrumentID, tradingDay, batchID))
}

func (m *S3Mirror) Write(ctx context.Context, category models.InstrumentCategory, instrumentID, tradingDay string, ticks []models.MarketTick) error {
	if len(ticks) == 0 {
		return nil
	}
	data, err := EncodeParquet(category, ticks, m.compression)
	if err != nil {
		return err
	}

	key := m.Key(category, instrumentID, tradingDay, uuid.NewString())
	_, err = m.client.PutObject(context.WithoutCancel(ctx), &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":        "parquet",
			"compression":         m.compression,
			"futuresflow-version": m.version,
			"rows":                fmt.Sprint(len(ticks)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", m.bucket, err)
	}

	if m.manifest != nil {
		df := metadata.DataFile{
			Path:        "s3://" + path.Join(m.bucket, key),
			FileSize:    int64(len(data)),
			RecordCount: int64(len(ticks)),
			Partition: map[string]any{
				"market":      category.MarketCode,
				"symbol":      category.Symbol,
				"trading_day": tradingDay,
				"instrument":  instrumentID,
			},
			Timestamp: time.Now(),
		}
		// the part is already durable in S3; a stale manifest is only logged
		if err := m.manifest.AddFile(df); err != nil {
			m.log.WithComponent("s3").WithError(err).WithField("key", key).Warn("failed to record part in table metadata")
		}
	}

	atomic.AddInt64(&m.parts, 1)
	atomic.AddInt64(&m.bytes, int64(len(data)))
	m.log.WithComponent("s3").WithFields(logger.Fields{
		"key":  key,
		"rows": len(ticks),
		"size": len(data),
	}).Debug("uploaded parquet part")
	return nil
}

// Stats returns the number of parts and bytes uploaded.
func (m *S3Mirror) Stats() (parts, uploaded int64) {
	return atomic.LoadInt64(&m.parts), atomic.LoadInt64(&m.bytes)
}
