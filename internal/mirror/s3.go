package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"partpipe/internal/config"
	"partpipe/internal/pipeline"
)

// versionMetadataKey is the S3 object metadata key carrying the manifest version.
const versionMetadataKey = "partpipe-version"

// S3Mirror is an S3-backed implementation of the Mirror interface.
// Object layout mirrors the filesystem backend:
//
//	<prefix>/artifacts/<checksum>
//	<prefix>/manifests/<hostID>/<name>
//
// Manifest versions are stored as object metadata. Uploads go through the
// multipart upload manager so large STEP and native part files stream
// without buffering in memory.
type S3Mirror struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Mirror creates an S3 mirror from the given configuration. Credentials
// come from the default AWS chain unless static keys are configured.
func NewS3Mirror(cfg config.MirrorConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Mirror{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   strings.TrimSuffix(cfg.S3Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (m *S3Mirror) artifactKey(checksum string) string {
	return m.join("artifacts", checksum)
}

func (m *S3Mirror) manifestKey(hostID, name string) string {
	return m.join("manifests", hostID, name)
}

func (m *S3Mirror) join(parts ...string) string {
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// PutArtifact stores content identified by its checksum. Existing objects
// are not re-uploaded: checksum-keyed content never changes.
func (m *S3Mirror) PutArtifact(checksum string, r io.Reader, size int64) error {
	ctx := context.Background()
	key := m.artifactKey(checksum)

	exists, err := m.objectExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read artifact: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading artifact %s: %w", checksum, err)
	}
	return nil
}

// GetArtifact retrieves an artifact by checksum and writes it to w.
func (m *S3Mirror) GetArtifact(checksum string, w io.Writer) error {
	out, err := m.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.artifactKey(checksum)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("artifact not found: %s", checksum)
		}
		return fmt.Errorf("downloading artifact %s: %w", checksum, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	return nil
}

// PutManifest stores a named manifest for a specific host with its version
// recorded as object metadata.
func (m *S3Mirror) PutManifest(hostID string, name string, r io.Reader, size int64, version int64) error {
	_, err := m.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.manifestKey(hostID, name)),
		Body:   r,
		Metadata: map[string]string{
			versionMetadataKey: strconv.FormatInt(version, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("uploading manifest %q for host %s: %w", name, hostID, err)
	}
	return nil
}

// GetManifest retrieves a named manifest for a specific host and writes it to w.
func (m *S3Mirror) GetManifest(hostID string, name string, w io.Writer) error {
	out, err := m.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.manifestKey(hostID, name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("manifest %q not found for host: %s", name, hostID)
		}
		return fmt.Errorf("downloading manifest %q for host %s: %w", name, hostID, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	return nil
}

// GetManifestVersion returns the manifest version for a host/name pair.
// Returns 0 when no manifest object exists or it carries no version metadata.
func (m *S3Mirror) GetManifestVersion(hostID string, name string) (int64, error) {
	out, err := m.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.manifestKey(hostID, name)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("checking manifest %q for host %s: %w", name, hostID, err)
	}

	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies the bucket exists and is reachable with the
// configured credentials.
func (m *S3Mirror) ValidateSetup() error {
	_, err := m.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", m.bucket, err)
	}
	return nil
}

// objectExists reports whether the given key exists in the bucket.
func (m *S3Mirror) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s: %w", key, err)
	}
	return true, nil
}

// Compile-time check that S3Mirror implements pipeline.Mirror
var _ pipeline.Mirror = (*S3Mirror)(nil)
