package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

const tableWaitTimeout = 3 * time.Minute

// tableProvider manages the DynamoDB inventory table.
type tableProvider struct {
	c *clients
}

func (p *tableProvider) Exists(ctx context.Context, name string) (bool, error) {
	_, err := p.c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &name})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return true, nil
}

// Create provisions the table on-demand with a composite key and, when
// requested, a change stream. It waits for ACTIVE before returning so
// dependents can bind to the stream immediately.
func (p *tableProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	table := req.Spec.Table
	if table == nil {
		return "", fmt.Errorf("resource %s carries no table spec", req.Spec.Key)
	}

	input := &dynamodb.CreateTableInput{
		TableName: &req.Name,
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: &table.PartitionKey, KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: &table.SortKey, KeyType: ddbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: &table.PartitionKey, AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: &table.SortKey, AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	}
	if table.Stream {
		enabled := true
		input.StreamSpecification = &ddbtypes.StreamSpecification{
			StreamEnabled:  &enabled,
			StreamViewType: ddbtypes.StreamViewTypeNewAndOldImages,
		}
	}

	_, err := p.c.dynamodb.CreateTable(ctx, input)
	switch {
	case err == nil:
		logging.Debug("table creating", "table", req.Name)
	case isConflict(err):
		logging.Debug("table already exists, adopting", "table", req.Name)
	default:
		return "", fmt.Errorf("failed to create table %s: %w", req.Name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(p.c.dynamodb)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: &req.Name}, tableWaitTimeout); err != nil {
		return "", fmt.Errorf("table %s never became active: %w", req.Name, err)
	}

	out, err := p.c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &req.Name})
	if err != nil {
		return "", fmt.Errorf("failed to describe table %s: %w", req.Name, err)
	}
	if out.Table == nil || out.Table.TableArn == nil {
		return "", fmt.Errorf("table %s reported no ARN", req.Name)
	}
	return *out.Table.TableArn, nil
}

func (p *tableProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	name := tableFromID(id)
	out, err := p.c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	det := provider.Details{"status": string(out.Table.TableStatus)}
	if out.Table.LatestStreamArn != nil {
		det["stream_arn"] = *out.Table.LatestStreamArn
	}
	return det, nil
}

func (p *tableProvider) Delete(ctx context.Context, id string) error {
	name := tableFromID(id)
	_, err := p.c.dynamodb.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: &name})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(p.c.dynamodb)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: &name}, tableWaitTimeout); err != nil {
		return fmt.Errorf("table %s is still deleting: %w", name, err)
	}
	return nil
}

// tableFromID accepts a table ARN or a bare table name.
func tableFromID(id string) string {
	if !strings.HasPrefix(id, "arn:") {
		return id
	}
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
