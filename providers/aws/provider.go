// Package aws implements the resource providers on top of the AWS SDK.
// One provider per resource kind, all sharing a single SDK session.
package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/stockpile-io/stockpile/internal/config"
	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// clients bundles the SDK clients shared by every provider.
type clients struct {
	region   string
	s3       *s3.Client
	dynamodb *dynamodb.Client
	lambda   *lambda.Client
	gateway  *apigatewayv2.Client
	sns      *sns.Client
	sts      *sts.Client
}

// Set holds the per-kind providers backed by one SDK session.
type Set struct {
	c        *clients
	resolver *Resolver
	cfg      config.Config
}

// New loads the default AWS credential chain for the configured region
// and builds the provider set.
func New(ctx context.Context, cfg config.Config) (*Set, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &clients{
		region:   cfg.Region,
		s3:       s3.NewFromConfig(awsCfg),
		dynamodb: dynamodb.NewFromConfig(awsCfg),
		lambda:   lambda.NewFromConfig(awsCfg),
		gateway:  apigatewayv2.NewFromConfig(awsCfg),
		sns:      sns.NewFromConfig(awsCfg),
		sts:      sts.NewFromConfig(awsCfg),
	}

	return &Set{
		c:        c,
		resolver: &Resolver{c: c, roleName: cfg.RoleName},
		cfg:      cfg,
	}, nil
}

// Register wires one provider per resource kind into the registry.
func (s *Set) Register(reg *provider.Registry) {
	reg.Register(ir.KindStorage, &storageProvider{c: s.c})
	reg.Register(ir.KindTable, &tableProvider{c: s.c})
	reg.Register(ir.KindFunction, &functionProvider{c: s.c, sourceRoot: s.cfg.LambdaDir})
	reg.Register(ir.KindGateway, &gatewayProvider{c: s.c})
	reg.Register(ir.KindTopic, &topicProvider{c: s.c})
	reg.Register(ir.KindTrigger, &triggerProvider{c: s.c})
}

// Identity returns the STS-backed identity resolver.
func (s *Set) Identity() *Resolver {
	return s.resolver
}
