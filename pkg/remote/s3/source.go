// Package s3 implements the remote listing and artifact interfaces over
// S3-compatible object storage (AWS S3, MinIO, Localstack).
//
// Layout: one media root per account under an optional key prefix —
// `<prefix><account>/<serverPath>`. Object storage carries no server-side
// favorite flag, so the favorite set lives in a small JSON manifest at
// `<prefix><account>/.mediasync/favorites.json`, read by listings and
// rewritten by SetFavorite.
//
// Object storage also has no rename-stable file id; the object key plays
// that role. The core treats ids as opaque, so a renamed object simply
// reconciles as delete + add, which is the best object storage can do.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	awshttp "github.com/aws/smithy-go/transport/http"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/internal/ratelimiter"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/remote"
)

// favoritesManifest is the relative key of the per-account favorites file.
const favoritesManifest = ".mediasync/favorites.json"

// Config contains configuration for the S3 media source.
type Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// RequestsPerSecond throttles outbound S3 calls. Zero means unlimited.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
	Burst             uint `mapstructure:"burst"`
}

// Source implements remote.ListingSource and remote.ArtifactSource over
// one S3 bucket.
type Source struct {
	client  *s3.Client
	bucket  string
	prefix  string
	limiter *ratelimiter.RateLimiter
}

// New creates an S3 media source.
//
// A custom endpoint (MinIO, Localstack) switches the client to path-style
// addressing. Static credentials are used when provided, otherwise the
// default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 source: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 source: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	burst := cfg.Burst
	if burst == 0 {
		burst = cfg.RequestsPerSecond
	}

	return &Source{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		limiter: ratelimiter.New(cfg.RequestsPerSecond, burst),
	}, nil
}

// accountPrefix returns the bucket key prefix holding an account's root.
func (s *Source) accountPrefix(account media.Account) string {
	return s.prefix + string(account) + "/"
}

// Search lists the account root and maps objects to media records.
//
// Live photo pairs are detected by stem: an image with a sibling video of
// the same base name (IMG_0042.HEIC + IMG_0042.MOV) gets the video's id
// as its live photo peer, matching how photo services upload live pairs.
func (s *Source) Search(ctx context.Context, scope media.Scope, limit int) ([]media.MediaRecord, error) {
	base := s.accountPrefix(scope.Account)
	listPrefix := base + strings.TrimPrefix(scope.RootPath, "/")

	favorites, err := s.loadFavorites(ctx, scope.Account)
	if err != nil {
		return nil, err
	}

	var records []media.MediaRecord

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("list objects", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			serverPath := strings.TrimPrefix(key, base)
			if serverPath == "" || strings.HasPrefix(serverPath, ".mediasync/") {
				continue
			}

			rec := media.MediaRecord{
				ID:         media.ID(key),
				Account:    scope.Account,
				ServerPath: "/" + serverPath,
				FileName:   path.Base(serverPath),
				ETag:       strings.Trim(aws.ToString(obj.ETag), `"`),
				ModifiedAt: aws.ToTime(obj.LastModified),
				Kind:       classifyKind(serverPath),
				SizeBytes:  aws.ToInt64(obj.Size),
				Status:     media.StatusNormal,
			}
			rec.HasPreview = rec.Kind == media.KindImage
			if _, fav := favorites[rec.ID]; fav {
				rec.IsFavorite = true
			}

			if !scope.From.IsZero() && rec.ModifiedAt.Before(scope.From) {
				continue
			}
			if !scope.To.IsZero() && rec.ModifiedAt.After(scope.To) {
				continue
			}

			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		if limit > 0 && len(records) >= limit {
			break
		}
	}

	pairLivePhotos(records)

	logger.Debug("s3 search %s%s: %d records", scope.Account, scope.RootPath, len(records))
	return records, nil
}

// ListFavorites returns the records named by the favorites manifest.
func (s *Source) ListFavorites(ctx context.Context, account media.Account) ([]media.MediaRecord, error) {
	favorites, err := s.loadFavorites(ctx, account)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, nil
	}

	// Favorites carry no time window: list the whole account root and
	// keep the records the manifest names.
	all, err := s.Search(ctx, media.Scope{Account: account}, 0)
	if err != nil {
		return nil, err
	}

	var out []media.MediaRecord
	for i := range all {
		if _, ok := favorites[all[i].ID]; ok {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// SetFavorite rewrites the favorites manifest with the toggle applied.
func (s *Source) SetFavorite(ctx context.Context, account media.Account, id media.ID, favorite bool) error {
	favorites, err := s.loadFavorites(ctx, account)
	if err != nil {
		return err
	}

	if favorite {
		favorites[id] = struct{}{}
	} else {
		delete(favorites, id)
	}

	ids := make([]string, 0, len(favorites))
	for fav := range favorites {
		ids = append(ids, string(fav))
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode favorites manifest: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	key := s.accountPrefix(account) + favoritesManifest
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return classify("write favorites manifest", err)
	}
	return nil
}

// FetchThumbnail returns the artifact bytes for (id, etag).
//
// Plain object storage renders no server-side previews, so the object
// itself is served; thumbnail decoding/scaling belongs to the excluded
// codec layer. If-Match pins the read to the requested etag: a 412 means
// the object changed and surfaces as not found, prompting a re-list.
func (s *Source) FetchThumbnail(ctx context.Context, id media.ID, etag string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(string(id)),
		IfMatch: aws.String(`"` + etag + `"`),
	})
	if err != nil {
		return nil, classifyFetch(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify("read object body", err)
	}
	return data, nil
}

// FetchOriginal returns the current object bytes for a record.
func (s *Source) FetchOriginal(ctx context.Context, id media.ID) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(id)),
	})
	if err != nil {
		return nil, classifyFetch(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify("read object body", err)
	}
	return data, nil
}

// loadFavorites reads the favorites manifest. A missing manifest is an
// empty favorite set, not an error.
func (s *Source) loadFavorites(ctx context.Context, account media.Account) (map[media.ID]struct{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	key := s.accountPrefix(account) + favoritesManifest

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return map[media.ID]struct{}{}, nil
		}
		return nil, classify("read favorites manifest", err)
	}
	defer out.Body.Close()

	var ids []string
	if err := json.NewDecoder(out.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode favorites manifest: %w", err)
	}

	favorites := make(map[media.ID]struct{}, len(ids))
	for _, id := range ids {
		favorites[media.ID(id)] = struct{}{}
	}
	return favorites, nil
}

// pairLivePhotos links images to same-stem videos in place.
func pairLivePhotos(records []media.MediaRecord) {
	videoByStem := make(map[string]media.ID)
	for i := range records {
		if records[i].Kind == media.KindVideo {
			stem := strings.TrimSuffix(records[i].ServerPath, path.Ext(records[i].ServerPath))
			videoByStem[stem] = records[i].ID
		}
	}
	for i := range records {
		if records[i].Kind != media.KindImage {
			continue
		}
		stem := strings.TrimSuffix(records[i].ServerPath, path.Ext(records[i].ServerPath))
		if peer, ok := videoByStem[stem]; ok {
			records[i].LivePhotoPeerID = peer
		}
	}
}

// classifyKind maps a file extension to a media class.
func classifyKind(serverPath string) media.ClassKind {
	switch strings.ToLower(path.Ext(serverPath)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".heic", ".heif", ".webp", ".tiff", ".bmp", ".raw", ".dng":
		return media.KindImage
	case ".mov", ".mp4", ".m4v", ".avi", ".mkv", ".webm", ".hevc":
		return media.KindVideo
	case ".mp3", ".m4a", ".aac", ".flac", ".wav", ".ogg":
		return media.KindAudio
	default:
		return media.KindOther
	}
}

// classify maps an S3 failure to the remote error taxonomy.
func classify(op string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == 401 || status == 403 {
			return &remote.Error{Code: remote.AuthExpired, StatusCode: status, Message: fmt.Sprintf("%s: credentials rejected", op)}
		}
		return &remote.Error{Code: remote.ServerError, StatusCode: status, Message: fmt.Sprintf("%s: %v", op, err)}
	}
	return &remote.Error{Code: remote.NetworkUnavailable, Message: fmt.Sprintf("%s: %v", op, err)}
}

// classifyFetch is classify for artifact reads, where a missing or
// changed object is remote.ErrArtifactNotFound rather than a failure.
func classifyFetch(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return remote.ErrArtifactNotFound
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 412 {
		return remote.ErrArtifactNotFound
	}
	return classify("fetch object", err)
}
