package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// DeleteObjects accepts at most 1000 keys per call.
const maxDeleteBatch = 1000

// storageProvider manages S3 buckets: the CSV drop zone and the public
// web bucket.
type storageProvider struct {
	c *clients
}

func (p *storageProvider) Exists(ctx context.Context, name string) (bool, error) {
	_, err := p.c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &name})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}
	return true, nil
}

func (p *storageProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	input := &s3.CreateBucketInput{Bucket: &req.Name}
	if p.c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.c.region),
		}
	}

	_, err := p.c.s3.CreateBucket(ctx, input)
	switch {
	case err == nil:
		logging.Debug("bucket created", "bucket", req.Name)
	case isConflict(err):
		logging.Debug("bucket already owned, adopting", "bucket", req.Name)
	default:
		return "", fmt.Errorf("failed to create bucket %s: %w", req.Name, err)
	}

	return bucketARN(req.Identity.Partition, req.Name), nil
}

func (p *storageProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	name := bucketFromID(id)
	out, err := p.c.s3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to locate bucket %s: %w", name, err)
	}
	region := string(out.LocationConstraint)
	if region == "" {
		region = "us-east-1"
	}
	return provider.Details{"name": name, "region": region}, nil
}

// Delete empties the bucket, versions and delete markers included, then
// removes it.
func (p *storageProvider) Delete(ctx context.Context, id string) error {
	name := bucketFromID(id)
	if err := p.empty(ctx, name); err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	_, err := p.c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: &name})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	return nil
}

// empty removes every object version and delete marker, then whatever
// plain objects remain.
func (p *storageProvider) empty(ctx context.Context, name string) error {
	var keyMarker, versionMarker *string
	for {
		out, err := p.c.s3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          &name,
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return fmt.Errorf("failed to list versions in %s: %w", name, err)
		}

		var doomed []s3types.ObjectIdentifier
		for _, v := range out.Versions {
			doomed = append(doomed, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			doomed = append(doomed, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		if err := p.deleteObjects(ctx, name, doomed); err != nil {
			return err
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		keyMarker = out.NextKeyMarker
		versionMarker = out.NextVersionIdMarker
	}

	pager := s3.NewListObjectsV2Paginator(p.c.s3, &s3.ListObjectsV2Input{Bucket: &name})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects in %s: %w", name, err)
		}
		var doomed []s3types.ObjectIdentifier
		for _, o := range page.Contents {
			doomed = append(doomed, s3types.ObjectIdentifier{Key: o.Key})
		}
		if err := p.deleteObjects(ctx, name, doomed); err != nil {
			return err
		}
	}
	return nil
}

func (p *storageProvider) deleteObjects(ctx context.Context, name string, objects []s3types.ObjectIdentifier) error {
	quiet := true
	for _, batch := range splitBatches(objects, maxDeleteBatch) {
		_, err := p.c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &name,
			Delete: &s3types.Delete{Objects: batch, Quiet: &quiet},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects from %s: %w", name, err)
		}
	}
	return nil
}

// Upload puts a single object into the bucket.
func (p *storageProvider) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := p.c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", key, bucket, err)
	}
	return nil
}

// PublishSite opens the bucket to public reads, uploads the rendered
// dashboard and switches on static website hosting.
func (p *storageProvider) PublishSite(ctx context.Context, bucket string, doc []byte) (string, error) {
	off := false
	_, err := p.c.s3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: &bucket,
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       &off,
			IgnorePublicAcls:      &off,
			BlockPublicPolicy:     &off,
			RestrictPublicBuckets: &off,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to unblock public access on %s: %w", bucket, err)
	}

	raw, err := json.Marshal(publicReadPolicy(bucket))
	if err != nil {
		return "", fmt.Errorf("failed to encode bucket policy: %w", err)
	}
	policy := string(raw)
	_, err = p.c.s3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{Bucket: &bucket, Policy: &policy})
	if err != nil {
		return "", fmt.Errorf("failed to apply public read policy to %s: %w", bucket, err)
	}

	key := "index.html"
	contentType := "text/html; charset=utf-8"
	_, err = p.c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(doc),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload dashboard to %s: %w", bucket, err)
	}

	suffix := "index.html"
	_, err = p.c.s3.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: &bucket,
		WebsiteConfiguration: &s3types.WebsiteConfiguration{
			IndexDocument: &s3types.IndexDocument{Suffix: &suffix},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to enable website hosting on %s: %w", bucket, err)
	}

	logging.Debug("site published", "bucket", bucket)
	return websiteURL(bucket, p.c.region), nil
}

// publicReadPolicy grants anonymous GetObject on every key in bucket.
func publicReadPolicy(bucket string) map[string]any {
	return map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Sid":       "PublicReadObjects",
			"Effect":    "Allow",
			"Principal": "*",
			"Action":    []string{"s3:GetObject"},
			"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
		}},
	}
}

// websiteURL is the S3 static-site endpoint for bucket in region.
func websiteURL(bucket, region string) string {
	return fmt.Sprintf("http://%s.s3-website-%s.amazonaws.com/", bucket, region)
}

func bucketARN(partition, name string) string {
	return fmt.Sprintf("arn:%s:s3:::%s", partitionOrDefault(partition), name)
}

// bucketFromID accepts a bucket ARN or a bare bucket name.
func bucketFromID(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// splitBatches slices objects into runs of at most n.
func splitBatches(objects []s3types.ObjectIdentifier, n int) [][]s3types.ObjectIdentifier {
	var batches [][]s3types.ObjectIdentifier
	for start := 0; start < len(objects); start += n {
		end := start + n
		if end > len(objects) {
			end = len(objects)
		}
		batches = append(batches, objects[start:end])
	}
	return batches
}
