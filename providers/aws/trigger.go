package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// triggerProvider wires events between resources: S3 object-created
// notifications into the loader and DynamoDB stream records into the
// notifier. A trigger has no name of its own; it is addressed through
// the resource that hosts it, the bucket for notifications and the
// consuming function for stream mappings.
type triggerProvider struct {
	c *clients
}

// Exists probes the host both ways: as a bucket carrying notification
// configuration, then as a function carrying event source mappings.
func (p *triggerProvider) Exists(ctx context.Context, name string) (bool, error) {
	out, err := p.c.s3.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{Bucket: &name})
	if err == nil {
		return len(out.LambdaFunctionConfigurations) > 0, nil
	}

	mappings, merr := p.c.lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{FunctionName: &name})
	if merr == nil {
		return len(mappings.EventSourceMappings) > 0, nil
	}
	if isNotFound(merr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check triggers on %s: %w", name, merr)
}

func (p *triggerProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	tr := req.Spec.Trigger
	if tr == nil {
		return "", fmt.Errorf("resource %s carries no trigger spec", req.Spec.Key)
	}
	switch tr.Style {
	case ir.TriggerBucketNotification:
		return p.createBucketNotification(ctx, req, tr)
	case ir.TriggerStreamMapping:
		return p.createStreamMapping(ctx, req, tr)
	}
	return "", fmt.Errorf("unknown trigger style %q", tr.Style)
}

// createBucketNotification grants S3 invoke rights on the target, waits
// for the permission to propagate, then points the bucket's notification
// configuration at the function. Returns the bucket ARN as the trigger
// identifier.
func (p *triggerProvider) createBucketNotification(ctx context.Context, req provider.CreateRequest, tr *ir.TriggerSpec) (string, error) {
	bucket := req.Deps[tr.Source]
	target := req.Deps[tr.Target]
	if bucket == nil || target == nil {
		return "", fmt.Errorf("trigger %s is missing its bucket or function dependency", req.Spec.Key)
	}

	statementID := "S3Invoke-" + bucket.Name
	if err := addInvokePermission(ctx, p.c, target.Name, statementID, "s3.amazonaws.com", bucket.ID); err != nil {
		return "", err
	}
	if err := waitPermissionVisible(ctx, p.c, target.Name, statementID); err != nil {
		return "", err
	}

	cfg := s3types.LambdaFunctionConfiguration{
		LambdaFunctionArn: &target.ID,
		Events:            []s3types.Event{s3types.Event("s3:ObjectCreated:*")},
	}
	if tr.SuffixFilter != "" {
		suffix := tr.SuffixFilter
		cfg.Filter = &s3types.NotificationConfigurationFilter{
			Key: &s3types.S3KeyFilter{
				FilterRules: []s3types.FilterRule{
					{Name: s3types.FilterRuleName("suffix"), Value: &suffix},
				},
			},
		}
	}

	_, err := p.c.s3.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket: &bucket.Name,
		NotificationConfiguration: &s3types.NotificationConfiguration{
			LambdaFunctionConfigurations: []s3types.LambdaFunctionConfiguration{cfg},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to configure notifications on %s: %w", bucket.Name, err)
	}

	logging.Debug("bucket notification configured", "bucket", bucket.Name, "function", target.Name)
	return bucket.ID, nil
}

// createStreamMapping binds the table's change stream to the target
// function, batch size one so each write is considered individually.
// Returns the mapping UUID as the trigger identifier.
func (p *triggerProvider) createStreamMapping(ctx context.Context, req provider.CreateRequest, tr *ir.TriggerSpec) (string, error) {
	table := req.Deps[tr.Source]
	target := req.Deps[tr.Target]
	if table == nil || target == nil {
		return "", fmt.Errorf("trigger %s is missing its table or function dependency", req.Spec.Key)
	}

	desc, err := p.c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &table.Name})
	if err != nil {
		return "", fmt.Errorf("failed to describe table %s: %w", table.Name, err)
	}
	if desc.Table == nil || desc.Table.LatestStreamArn == nil {
		return "", fmt.Errorf("table %s has no change stream", table.Name)
	}
	streamARN := *desc.Table.LatestStreamArn

	batchSize := int32(1)
	enabled := true
	out, err := p.c.lambda.CreateEventSourceMapping(ctx, &lambda.CreateEventSourceMappingInput{
		EventSourceArn:   &streamARN,
		FunctionName:     &target.Name,
		StartingPosition: lambdatypes.EventSourcePositionLatest,
		BatchSize:        &batchSize,
		Enabled:          &enabled,
	})
	if err == nil {
		logging.Debug("stream mapping created", "table", table.Name, "function", target.Name)
		return *out.UUID, nil
	}
	if !isConflict(err) {
		return "", fmt.Errorf("failed to map stream of %s to %s: %w", table.Name, target.Name, err)
	}

	// Already mapped: recover the existing mapping's identifier.
	list, lerr := p.c.lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{
		EventSourceArn: &streamARN,
		FunctionName:   &target.Name,
	})
	if lerr != nil {
		return "", fmt.Errorf("failed to find existing stream mapping for %s: %w", target.Name, lerr)
	}
	for _, m := range list.EventSourceMappings {
		if m.UUID != nil {
			return *m.UUID, nil
		}
	}
	return "", fmt.Errorf("stream mapping for %s conflicts but cannot be found: %w", target.Name, err)
}

// Describe reports readiness: a bucket-hosted trigger once the
// notification configuration is visible, a stream mapping once AWS marks
// it enabled.
func (p *triggerProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	if strings.HasPrefix(id, "arn:") {
		bucket := bucketFromID(id)
		out, err := p.c.s3.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{Bucket: &bucket})
		if err != nil {
			return nil, fmt.Errorf("failed to read notifications of %s: %w", bucket, err)
		}
		return provider.Details{"ready": boolDetail(len(out.LambdaFunctionConfigurations) > 0)}, nil
	}

	out, err := p.c.lambda.GetEventSourceMapping(ctx, &lambda.GetEventSourceMappingInput{UUID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to read stream mapping %s: %w", id, err)
	}
	state := ""
	if out.State != nil {
		state = *out.State
	}
	return provider.Details{"state": state, "ready": boolDetail(state == "Enabled")}, nil
}

// Delete unwires a trigger. Bucket-hosted triggers are identified by the
// bucket ARN and stream mappings by their UUID; a bare host name from an
// unfinished create clears both ways.
func (p *triggerProvider) Delete(ctx context.Context, id string) error {
	if strings.HasPrefix(id, "arn:") {
		return p.clearBucketNotifications(ctx, bucketFromID(id))
	}
	if looksLikeMappingID(id) {
		_, err := p.c.lambda.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{UUID: &id})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete stream mapping %s: %w", id, err)
		}
		return nil
	}

	if err := p.clearBucketNotifications(ctx, id); err != nil {
		logging.Debug("host is not a bucket, sweeping function mappings", "host", id)
	}
	out, err := p.c.lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{FunctionName: &id})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list mappings of %s: %w", id, err)
	}
	for _, m := range out.EventSourceMappings {
		if m.UUID == nil {
			continue
		}
		_, err := p.c.lambda.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{UUID: m.UUID})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete stream mapping %s: %w", *m.UUID, err)
		}
	}
	return nil
}

// clearBucketNotifications replaces the bucket's notification
// configuration with an empty one.
func (p *triggerProvider) clearBucketNotifications(ctx context.Context, bucket string) error {
	_, err := p.c.s3.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket:                    &bucket,
		NotificationConfiguration: &s3types.NotificationConfiguration{},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to clear notifications on %s: %w", bucket, err)
	}
	return nil
}

// looksLikeMappingID reports whether id has the shape of an event source
// mapping UUID.
func looksLikeMappingID(id string) bool {
	return len(id) == 36 && strings.Count(id, "-") == 4
}

func boolDetail(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
