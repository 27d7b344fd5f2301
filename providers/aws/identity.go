package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
)

// Resolver derives the caller identity from STS. The partition comes out
// of the caller ARN so derived ARNs stay correct outside the commercial
// partition.
type Resolver struct {
	c        *clients
	roleName string
}

func (r *Resolver) Resolve(ctx context.Context) (ir.Identity, error) {
	out, err := r.c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return ir.Identity{}, fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	if out.Account == nil || out.Arn == nil {
		return ir.Identity{}, fmt.Errorf("caller identity response is missing account or ARN")
	}

	partition := arnPartition(*out.Arn)
	identity := ir.Identity{
		Account:   *out.Account,
		Partition: partition,
		Region:    r.c.region,
		RoleARN:   fmt.Sprintf("arn:%s:iam::%s:role/%s", partition, *out.Account, r.roleName),
	}
	logging.Debug("caller identity resolved",
		"account", identity.Account, "partition", identity.Partition, "region", identity.Region)
	return identity, nil
}

// arnPartition extracts the partition segment of an ARN, defaulting to
// the commercial partition when the ARN is malformed.
func arnPartition(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return "aws"
}

func partitionOrDefault(p string) string {
	if p == "" {
		return "aws"
	}
	return p
}
