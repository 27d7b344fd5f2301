package aws

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/stockpile-io/stockpile/internal/assets"
	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

const (
	functionHandler    = "lambda_function.lambda_handler"
	functionTimeout    = int32(30)
	functionMemory     = int32(256)
	functionUpdateWait = 2 * time.Minute

	permissionWaitTimeout  = time.Minute
	permissionWaitInterval = 2 * time.Second
)

// functionProvider manages the Lambda functions. Function source lives
// under sourceRoot, one directory per function.
type functionProvider struct {
	c          *clients
	sourceRoot string
}

func (p *functionProvider) Exists(ctx context.Context, name string) (bool, error) {
	_, err := p.c.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &name})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check function %s: %w", name, err)
	}
	return true, nil
}

// Create packages the function source and creates the function, or
// refreshes code and configuration when it already exists.
func (p *functionProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	fn := req.Spec.Function
	if fn == nil {
		return "", fmt.Errorf("resource %s carries no function spec", req.Spec.Key)
	}

	zip, err := assets.PackageFunction(filepath.Join(p.sourceRoot, fn.SourceDir))
	if err != nil {
		return "", err
	}
	env, err := resolveEnv(req)
	if err != nil {
		return "", err
	}

	role := req.Identity.RoleARN
	handler := functionHandler
	timeout := functionTimeout
	memory := functionMemory

	_, err = p.c.lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: &req.Name,
		Runtime:      lambdatypes.Runtime("python3.11"),
		Handler:      &handler,
		Role:         &role,
		Code:         &lambdatypes.FunctionCode{ZipFile: zip},
		Timeout:      &timeout,
		MemorySize:   &memory,
		Environment:  &lambdatypes.Environment{Variables: env},
		Publish:      true,
	})
	switch {
	case err == nil:
		logging.Debug("function created", "function", req.Name)
	case isConflict(err):
		if err := p.update(ctx, req.Name, zip, role, env); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("failed to create function %s: %w", req.Name, err)
	}

	return functionARN(req.Identity, req.Name), nil
}

// update refreshes code first, then configuration, waiting out the
// in-progress state between the two calls.
func (p *functionProvider) update(ctx context.Context, name string, zip []byte, role string, env map[string]string) error {
	logging.Debug("function exists, updating", "function", name)
	_, err := p.c.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: &name,
		ZipFile:      zip,
		Publish:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to update code of %s: %w", name, err)
	}

	waiter := lambda.NewFunctionUpdatedV2Waiter(p.c.lambda)
	if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: &name}, functionUpdateWait); err != nil {
		return fmt.Errorf("function %s stuck updating: %w", name, err)
	}

	_, err = p.c.lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: &name,
		Role:         &role,
		Environment:  &lambdatypes.Environment{Variables: env},
	})
	if err != nil {
		return fmt.Errorf("failed to update configuration of %s: %w", name, err)
	}
	return nil
}

func (p *functionProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	name := functionFromID(id)
	out, err := p.c.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to describe function %s: %w", name, err)
	}

	det := provider.Details{}
	if cfg := out.Configuration; cfg != nil {
		det["state"] = string(cfg.State)
		if cfg.FunctionArn != nil {
			det["arn"] = *cfg.FunctionArn
		}
	}
	return det, nil
}

func (p *functionProvider) Delete(ctx context.Context, id string) error {
	name := functionFromID(id)
	_, err := p.c.lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: &name})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete function %s: %w", name, err)
	}
	return nil
}

// SweepTriggers deletes every event source mapping attached to the
// function so it can be removed cleanly.
func (p *functionProvider) SweepTriggers(ctx context.Context, functionName string) error {
	out, err := p.c.lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{
		FunctionName: &functionName,
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list event source mappings of %s: %w", functionName, err)
	}

	for _, m := range out.EventSourceMappings {
		if m.UUID == nil {
			continue
		}
		_, err := p.c.lambda.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{UUID: m.UUID})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete event source mapping %s: %w", *m.UUID, err)
		}
		logging.Debug("event source mapping removed", "function", functionName, "uuid", *m.UUID)
	}
	return nil
}

// resolveEnv merges the static environment with values drawn from
// dependency handles.
func resolveEnv(req provider.CreateRequest) (map[string]string, error) {
	fn := req.Spec.Function
	env := make(map[string]string, len(fn.Env)+len(fn.EnvFromDeps))
	for k, v := range fn.Env {
		env[k] = v
	}
	for k, ref := range fn.EnvFromDeps {
		h := req.Deps[ref.Key]
		if h == nil {
			return nil, fmt.Errorf("function %s needs %s, which is not among its dependencies", req.Name, ref.Key)
		}
		switch ref.Attr {
		case ir.AttrID:
			env[k] = h.ID
		default:
			env[k] = h.Name
		}
	}
	return env, nil
}

// functionARN is the unqualified ARN, deliberately without a version
// suffix so it stays stable across code updates.
func functionARN(identity ir.Identity, name string) string {
	return fmt.Sprintf("arn:%s:lambda:%s:%s:function:%s",
		partitionOrDefault(identity.Partition), identity.Region, identity.Account, name)
}

// functionFromID accepts a function ARN or a bare name. The API takes
// either, but plain names keep log lines readable.
func functionFromID(id string) string {
	if !strings.HasPrefix(id, "arn:") {
		return id
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// addInvokePermission grants principal the right to invoke the function,
// converging when the statement already exists.
func addInvokePermission(ctx context.Context, c *clients, functionName, statementID, principal, sourceARN string) error {
	action := "lambda:InvokeFunction"
	_, err := c.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: &functionName,
		StatementId:  &statementID,
		Action:       &action,
		Principal:    &principal,
		SourceArn:    &sourceARN,
	})
	if err != nil && !isConflict(err) {
		return fmt.Errorf("failed to grant %s invoke on %s: %w", principal, functionName, err)
	}
	return nil
}

// waitPermissionVisible polls the function policy until the statement
// shows up. IAM propagation lags the AddPermission call.
func waitPermissionVisible(ctx context.Context, c *clients, functionName, statementID string) error {
	return provider.WaitUntil(ctx, "permission "+statementID, permissionWaitTimeout, permissionWaitInterval,
		func(ctx context.Context) (bool, error) {
			out, err := c.lambda.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: &functionName})
			if err != nil {
				if isNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return out.Policy != nil && strings.Contains(*out.Policy, statementID), nil
		})
}
