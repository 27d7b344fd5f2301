package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	gwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"

	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// gatewayProvider manages the HTTP API fronting the read function.
// API names are not unique in the service, so lookup scans by name and
// the first match wins.
type gatewayProvider struct {
	c *clients
}

// findAPI returns the id of the API named name, or "" when absent.
func (p *gatewayProvider) findAPI(ctx context.Context, name string) (string, error) {
	var next *string
	for {
		out, err := p.c.gateway.GetApis(ctx, &apigatewayv2.GetApisInput{NextToken: next})
		if err != nil {
			return "", fmt.Errorf("failed to list APIs: %w", err)
		}
		for _, api := range out.Items {
			if api.Name != nil && *api.Name == name && api.ApiId != nil {
				return *api.ApiId, nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		next = out.NextToken
	}
}

func (p *gatewayProvider) Exists(ctx context.Context, name string) (bool, error) {
	id, err := p.findAPI(ctx, name)
	return id != "", err
}

// Create converges the whole API surface: the API itself, the invoke
// permission on the target function, the proxy integration, the routes
// and the auto-deployed stage. Every piece tolerates already existing.
func (p *gatewayProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	gw := req.Spec.Gateway
	if gw == nil {
		return "", fmt.Errorf("resource %s carries no gateway spec", req.Spec.Key)
	}
	target := req.Deps[gw.Target]
	if target == nil || target.ID == "" {
		return "", fmt.Errorf("gateway %s has no reconciled target function", req.Name)
	}

	apiID, err := p.findAPI(ctx, req.Name)
	if err != nil {
		return "", err
	}
	if apiID == "" {
		out, err := p.c.gateway.CreateApi(ctx, &apigatewayv2.CreateApiInput{
			Name:         &req.Name,
			ProtocolType: gwtypes.ProtocolTypeHttp,
			CorsConfiguration: &gwtypes.Cors{
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"GET", "OPTIONS"},
				AllowHeaders: []string{"Content-Type"},
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to create API %s: %w", req.Name, err)
		}
		apiID = *out.ApiId
		logging.Debug("API created", "api", req.Name, "id", apiID)
	} else {
		logging.Debug("API already exists, adopting", "api", req.Name, "id", apiID)
	}

	sourceARN := fmt.Sprintf("arn:%s:execute-api:%s:%s:%s/*/*",
		partitionOrDefault(req.Identity.Partition), req.Identity.Region, req.Identity.Account, apiID)
	if err := addInvokePermission(ctx, p.c, target.Name, "ApiGatewayInvoke-"+apiID, "apigateway.amazonaws.com", sourceARN); err != nil {
		return "", err
	}

	integrationID, err := p.ensureIntegration(ctx, apiID, target.ID)
	if err != nil {
		return "", err
	}

	targetRef := "integrations/" + integrationID
	for _, routeKey := range gw.Routes {
		_, err := p.c.gateway.CreateRoute(ctx, &apigatewayv2.CreateRouteInput{
			ApiId:    &apiID,
			RouteKey: &routeKey,
			Target:   &targetRef,
		})
		if err != nil && !isConflict(err) {
			return "", fmt.Errorf("failed to create route %s: %w", routeKey, err)
		}
	}

	stage := gw.Stage
	autoDeploy := true
	_, err = p.c.gateway.CreateStage(ctx, &apigatewayv2.CreateStageInput{
		ApiId:      &apiID,
		StageName:  &stage,
		AutoDeploy: &autoDeploy,
	})
	if err != nil && !isConflict(err) {
		return "", fmt.Errorf("failed to create stage %s: %w", gw.Stage, err)
	}

	return apiID, nil
}

// matchesIntegration reports whether item already proxies to functionARN.
func matchesIntegration(item gwtypes.Integration, functionARN string) bool {
	return item.IntegrationUri != nil && *item.IntegrationUri == functionARN &&
		item.IntegrationId != nil
}

// ensureIntegration reuses an existing proxy integration to the function
// instead of stacking a new one on every run.
func (p *gatewayProvider) ensureIntegration(ctx context.Context, apiID, functionARN string) (string, error) {
	var next *string
	for {
		out, err := p.c.gateway.GetIntegrations(ctx, &apigatewayv2.GetIntegrationsInput{ApiId: &apiID, NextToken: next})
		if err != nil {
			return "", fmt.Errorf("failed to list integrations of %s: %w", apiID, err)
		}
		for _, item := range out.Items {
			if matchesIntegration(item, functionARN) {
				return *item.IntegrationId, nil
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	payloadVersion := "2.0"
	out, err := p.c.gateway.CreateIntegration(ctx, &apigatewayv2.CreateIntegrationInput{
		ApiId:                &apiID,
		IntegrationType:      gwtypes.IntegrationTypeAwsProxy,
		IntegrationUri:       &functionARN,
		PayloadFormatVersion: &payloadVersion,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create integration for %s: %w", apiID, err)
	}
	return *out.IntegrationId, nil
}

func (p *gatewayProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	out, err := p.c.gateway.GetApi(ctx, &apigatewayv2.GetApiInput{ApiId: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to describe API %s: %w", id, err)
	}

	endpoint := endpointURL(id, p.c.region)
	if out.ApiEndpoint != nil && *out.ApiEndpoint != "" {
		endpoint = *out.ApiEndpoint
	}
	return provider.Details{"endpoint": endpoint}, nil
}

func (p *gatewayProvider) Delete(ctx context.Context, id string) error {
	_, err := p.c.gateway.DeleteApi(ctx, &apigatewayv2.DeleteApiInput{ApiId: &id})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to delete API %s: %w", id, err)
	}

	// The identifier may be an API name left by an unfinished create.
	apiID, err := p.findAPI(ctx, id)
	if err != nil || apiID == "" {
		return err
	}
	_, err = p.c.gateway.DeleteApi(ctx, &apigatewayv2.DeleteApiInput{ApiId: &apiID})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete API %s: %w", apiID, err)
	}
	return nil
}

// endpointURL is the invoke URL of an HTTP API on its default stage.
func endpointURL(apiID, region string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com", apiID, region)
}
