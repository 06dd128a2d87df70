package s3client

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appConfig "spbackup/config"
	"spbackup/internal/models"
	"spbackup/pkg/utils"
)

const deleteBatchSize = 1000

// Client keeps site archives in one bucket under <prefix>/<site>/<archive>.
type Client struct {
	s3Client *s3.Client
	config   *appConfig.Config
}

func New(cfg *appConfig.Config) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("no bucket configured, set S3_BUCKET or --bucket")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return &Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// UploadArchive copies a finished archive to <prefix>/<site>/<file name>.
func (c *Client) UploadArchive(ctx context.Context, localPath, siteName string) (*models.UploadResult, error) {
	startTime := time.Now()

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected an archive", localPath)
	}

	key := ArchiveKey(c.config.Prefix, siteName, localPath)
	uploader := manager.NewUploader(c.s3Client)
	if err := c.uploadSingleFile(ctx, uploader, localPath, key); err != nil {
		return nil, err
	}

	return &models.UploadResult{
		BucketName:     c.config.BucketName,
		Key:            key,
		LocalPath:      localPath,
		SizeBytes:      info.Size(),
		UploadDuration: time.Since(startTime).String(),
	}, nil
}

func (c *Client) uploadSingleFile(ctx context.Context, uploader *manager.Uploader, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(detectContentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Inventory summarizes the archives kept in the bucket, per site.
func (c *Client) Inventory(ctx context.Context) (*models.ArchiveInventory, error) {
	bucketName := c.config.BucketName

	locationResp, err := c.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket location: %w", err)
	}

	region := string(locationResp.LocationConstraint)
	if region == "" {
		region = c.config.Region
	}

	objects, err := c.listArchives(ctx, buildKey(c.config.Prefix, "", ""))
	if err != nil {
		return nil, err
	}

	inventory := summarize(c.config.Prefix, objects)
	inventory.BucketName = bucketName
	inventory.Region = region
	inventory.APIEndpoint = c.config.ApiURL
	return inventory, nil
}

// PruneOldArchives deletes archives below prefix last modified more than
// daysOld days ago. With dryRun it only reports what would go.
func (c *Client) PruneOldArchives(ctx context.Context, prefix string, daysOld int, dryRun bool) (*models.PruneResult, error) {
	if daysOld <= 0 {
		return nil, fmt.Errorf("days must be greater than 0")
	}
	bucketName := c.config.BucketName
	cutoffDate := time.Now().AddDate(0, 0, -daysOld)

	if prefix == "" {
		prefix = c.config.Prefix
	}
	listPrefix := prefix
	if !strings.HasSuffix(listPrefix, "/") && listPrefix != "" {
		listPrefix += "/"
	}

	objects, err := c.listArchives(ctx, listPrefix)
	if err != nil {
		return nil, err
	}

	toDelete, totalSize := pruneCandidates(objects, cutoffDate)
	deletedFiles := make([]string, 0, len(toDelete))
	for _, obj := range toDelete {
		deletedFiles = append(deletedFiles, aws.ToString(obj.Key))
	}

	deletedCount := 0
	if !dryRun {
		for i := 0; i < len(toDelete); i += deleteBatchSize {
			end := min(i+deleteBatchSize, len(toDelete))
			batch := toDelete[i:end]

			_, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucketName),
				Delete: &types.Delete{
					Objects: batch,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to delete objects batch: %w", err)
			}
			deletedCount += len(batch)
		}
	}

	return &models.PruneResult{
		BucketName:     bucketName,
		Prefix:         prefix,
		DaysOld:        daysOld,
		DryRun:         dryRun,
		DeletedFiles:   deletedFiles,
		DeletedCount:   deletedCount,
		TotalSizeBytes: totalSize,
		TotalSizeHuman: utils.FormatBytes(totalSize),
		OperationTime:  utils.FormatTime(time.Now()),
		CutoffDate:     utils.FormatTime(cutoffDate),
	}, nil
}

// DownloadLatestArchive fetches the newest archive of siteName into destDir.
func (c *Client) DownloadLatestArchive(ctx context.Context, siteName, destDir string) (*models.RestoreResult, error) {
	startTime := time.Now()

	objects, err := c.listArchives(ctx, buildKey(c.config.Prefix, siteName, ""))
	if err != nil {
		return nil, err
	}
	latest, ok := latestArchive(objects)
	if !ok {
		return nil, fmt.Errorf("no archives found for site %s", siteName)
	}
	key := aws.ToString(latest.Key)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	localPath := filepath.Join(destDir, path.Base(key))

	file, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	downloader := manager.NewDownloader(c.s3Client)
	size, err := downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		utils.CleanupTempFile(localPath)
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}

	return &models.RestoreResult{
		BucketName:       c.config.BucketName,
		Site:             siteName,
		Key:              key,
		LocalPath:        localPath,
		SizeBytes:        size,
		SizeHuman:        utils.FormatBytes(size),
		LastModified:     utils.FormatTime(aws.ToTime(latest.LastModified)),
		OperationTime:    utils.FormatTime(startTime),
		DownloadDuration: time.Since(startTime).String(),
	}, nil
}

func (c *Client) listArchives(ctx context.Context, prefix string) ([]types.Object, error) {
	var objects []types.Object

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.config.BucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if strings.HasSuffix(aws.ToString(obj.Key), utils.ArchiveExtension) {
				objects = append(objects, obj)
			}
		}
	}
	return objects, nil
}

// ArchiveKey is the object key an archive is uploaded under.
func ArchiveKey(prefix, siteName, localPath string) string {
	return buildKey(prefix, siteName, filepath.Base(localPath))
}

// buildKey joins the non-empty parts with "/". An empty last part leaves a
// trailing slash so the result can be used as a listing prefix.
func buildKey(prefix, siteName, filename string) string {
	var parts []string
	for _, p := range []string{prefix, siteName} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	if filename == "" {
		if len(parts) == 0 {
			return ""
		}
		return strings.Join(parts, "/") + "/"
	}
	return strings.Join(append(parts, filename), "/")
}

// siteFromKey returns the site folder of an archive key below prefix.
func siteFromKey(prefix, key string) string {
	rest := strings.TrimPrefix(key, buildKey(prefix, "", ""))
	if i := strings.Index(rest, "/"); i > 0 {
		return rest[:i]
	}
	return ""
}

func pruneCandidates(objects []types.Object, cutoff time.Time) ([]types.ObjectIdentifier, int64) {
	var ids []types.ObjectIdentifier
	var totalSize int64
	for _, obj := range objects {
		if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			totalSize += aws.ToInt64(obj.Size)
		}
	}
	return ids, totalSize
}

// latestArchive picks the most recently modified object; ties go to the
// lexically greatest key, which carries the newest run timestamp.
func latestArchive(objects []types.Object) (types.Object, bool) {
	var latest types.Object
	found := false
	for _, obj := range objects {
		if !found {
			latest, found = obj, true
			continue
		}
		lt, ot := aws.ToTime(latest.LastModified), aws.ToTime(obj.LastModified)
		if ot.After(lt) || (ot.Equal(lt) && aws.ToString(obj.Key) > aws.ToString(latest.Key)) {
			latest = obj
		}
	}
	return latest, found
}

func summarize(prefix string, objects []types.Object) *models.ArchiveInventory {
	inventory := &models.ArchiveInventory{}
	bySite := make(map[string]*models.SiteArchives)

	for _, obj := range objects {
		size := aws.ToInt64(obj.Size)
		modified := aws.ToTime(obj.LastModified)

		inventory.ObjectCount++
		inventory.TotalSizeBytes += size
		if modified.After(inventory.LastModified) {
			inventory.LastModified = modified
		}

		name := siteFromKey(prefix, aws.ToString(obj.Key))
		if name == "" {
			continue
		}
		site, ok := bySite[name]
		if !ok {
			site = &models.SiteArchives{Site: name}
			bySite[name] = site
		}
		site.ArchiveCount++
		site.TotalSizeBytes += size
		if modified.After(site.LastModified) || site.LatestKey == "" {
			site.LastModified = modified
			site.LatestKey = aws.ToString(obj.Key)
		}
	}

	for _, site := range bySite {
		site.TotalSizeHuman = utils.FormatBytes(site.TotalSizeBytes)
		inventory.Sites = append(inventory.Sites, *site)
	}
	sort.Slice(inventory.Sites, func(i, j int) bool {
		return inventory.Sites[i].Site < inventory.Sites[j].Site
	})
	inventory.TotalSizeHuman = utils.FormatBytes(inventory.TotalSizeBytes)
	return inventory
}

func detectContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, utils.ArchiveExtension):
		return "application/gzip"
	case strings.HasSuffix(filename, ".tar"):
		return "application/x-tar"
	case strings.HasSuffix(filename, ".log"):
		return "text/plain"
	}
	return "application/octet-stream"
}
