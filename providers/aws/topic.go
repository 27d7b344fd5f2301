package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// topicProvider manages the low-stock SNS topic.
type topicProvider struct {
	c *clients
}

// findTopic scans the account's topics for one whose ARN ends in name.
func (p *topicProvider) findTopic(ctx context.Context, name string) (string, error) {
	var next *string
	for {
		out, err := p.c.sns.ListTopics(ctx, &sns.ListTopicsInput{NextToken: next})
		if err != nil {
			return "", fmt.Errorf("failed to list topics: %w", err)
		}
		for _, t := range out.Topics {
			if t.TopicArn != nil && strings.HasSuffix(*t.TopicArn, ":"+name) {
				return *t.TopicArn, nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		next = out.NextToken
	}
}

func (p *topicProvider) Exists(ctx context.Context, name string) (bool, error) {
	arn, err := p.findTopic(ctx, name)
	return arn != "", err
}

// Create is naturally convergent: CreateTopic returns the existing ARN
// when the topic is already there.
func (p *topicProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	out, err := p.c.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: &req.Name})
	if err != nil {
		return "", fmt.Errorf("failed to create topic %s: %w", req.Name, err)
	}
	return *out.TopicArn, nil
}

func (p *topicProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	out, err := p.c.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to describe topic %s: %w", id, err)
	}
	return provider.Details{
		"subscriptions_confirmed": out.Attributes["SubscriptionsConfirmed"],
		"subscriptions_pending":   out.Attributes["SubscriptionsPending"],
	}, nil
}

func (p *topicProvider) Delete(ctx context.Context, id string) error {
	arn := id
	if !strings.HasPrefix(arn, "arn:") {
		found, err := p.findTopic(ctx, arn)
		if err != nil {
			return err
		}
		if found == "" {
			return nil
		}
		arn = found
	}

	_, err := p.c.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: &arn})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete topic %s: %w", arn, err)
	}
	return nil
}

// matchesSubscription reports whether sub already delivers to endpoint
// over protocol. Pending confirmations match too; their protocol and
// endpoint are set before any ARN is assigned.
func matchesSubscription(sub snstypes.Subscription, protocol, endpoint string) bool {
	return sub.Protocol != nil && *sub.Protocol == protocol &&
		sub.Endpoint != nil && *sub.Endpoint == endpoint
}

// EnsureSubscription subscribes endpoint to the topic unless an
// equivalent subscription is already registered. Reports whether a new
// subscription was requested.
func (p *topicProvider) EnsureSubscription(ctx context.Context, topicID, protocol, endpoint string) (bool, error) {
	var next *string
	for {
		out, err := p.c.sns.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
			TopicArn:  &topicID,
			NextToken: next,
		})
		if err != nil {
			return false, fmt.Errorf("failed to list subscriptions of %s: %w", topicID, err)
		}
		for _, sub := range out.Subscriptions {
			if matchesSubscription(sub, protocol, endpoint) {
				logging.Debug("subscription already present", "topic", topicID, "endpoint", endpoint)
				return false, nil
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	_, err := p.c.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: &topicID,
		Protocol: &protocol,
		Endpoint: &endpoint,
	})
	if err != nil {
		return false, fmt.Errorf("failed to subscribe %s to %s: %w", endpoint, topicID, err)
	}
	return true, nil
}
