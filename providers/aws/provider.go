// Package aws maps stackpilot resource kinds onto the AWS API using the
// v2 SDK. One Provider instance serves one account/region pair.
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type Provider struct {
	region    string
	ec2Client *ec2.Client
	iamClient *iam.Client
}

// Factory builds the AWS provider from registry options (region, profile).
func Factory(options map[string]string) (provider.Provider, error) {
	region := options["region"]
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if profile := options["profile"]; profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Provider{
		region:    region,
		ec2Client: ec2.NewFromConfig(cfg),
		iamClient: iam.NewFromConfig(cfg),
	}, nil
}

func (p *Provider) Create(ctx context.Context, kind ir.Kind, params map[string]any) (*provider.CreateResult, error) {
	var (
		res *provider.CreateResult
		err error
	)
	switch kind {
	case ir.KindNetwork:
		res, err = p.createNetwork(ctx, params)
	case ir.KindSubnet:
		res, err = p.createSubnet(ctx, params)
	case ir.KindInternetGateway:
		res, err = p.createInternetGateway(ctx, params)
	case ir.KindRouteTable:
		res, err = p.createRouteTable(ctx, params)
	case ir.KindSecurityRuleSet:
		res, err = p.createSecurityRuleSet(ctx, params)
	case ir.KindIdentityRole:
		res, err = p.createIdentityRole(ctx, params)
	case ir.KindComputeInstance:
		res, err = p.createComputeInstance(ctx, params)
	default:
		return nil, &provider.Error{Op: "create", Resource: string(kind), Permanent: true,
			Err: fmt.Errorf("unsupported resource kind: %s", kind)}
	}
	if err != nil {
		return nil, provider.Classify("create", string(kind), err)
	}
	return res, nil
}

func (p *Provider) Update(ctx context.Context, id string, kind ir.Kind, params map[string]any) (provider.Status, error) {
	var err error
	switch kind {
	case ir.KindNetwork, ir.KindSubnet, ir.KindInternetGateway, ir.KindRouteTable:
		err = p.updateTags(ctx, id, params)
	case ir.KindSecurityRuleSet:
		err = p.updateSecurityRuleSet(ctx, id, params)
	case ir.KindIdentityRole:
		err = p.updateIdentityRole(ctx, id, params)
	case ir.KindComputeInstance:
		err = p.updateTags(ctx, id, params)
	default:
		return "", &provider.Error{Op: "update", Resource: string(kind), Permanent: true,
			Err: fmt.Errorf("unsupported resource kind: %s", kind)}
	}
	if err != nil {
		return "", provider.Classify("update", id, err)
	}
	return p.Describe(ctx, id, kind)
}

func (p *Provider) Describe(ctx context.Context, id string, kind ir.Kind) (provider.Status, error) {
	var (
		status provider.Status
		err    error
	)
	switch kind {
	case ir.KindNetwork:
		status, err = p.describeNetwork(ctx, id)
	case ir.KindSubnet:
		status, err = p.describeSubnet(ctx, id)
	case ir.KindInternetGateway:
		status, err = p.describeInternetGateway(ctx, id)
	case ir.KindRouteTable:
		status, err = p.describeRouteTable(ctx, id)
	case ir.KindSecurityRuleSet:
		status, err = p.describeSecurityRuleSet(ctx, id)
	case ir.KindIdentityRole:
		status, err = p.describeIdentityRole(ctx, id)
	case ir.KindComputeInstance:
		status, err = p.describeComputeInstance(ctx, id)
	default:
		return "", &provider.Error{Op: "describe", Resource: string(kind), Permanent: true,
			Err: fmt.Errorf("unsupported resource kind: %s", kind)}
	}
	if err != nil {
		return "", provider.Classify("describe", id, err)
	}
	return status, nil
}

func (p *Provider) Delete(ctx context.Context, id string, kind ir.Kind) (provider.Status, error) {
	var err error
	switch kind {
	case ir.KindNetwork:
		err = p.deleteNetwork(ctx, id)
	case ir.KindSubnet:
		err = p.deleteSubnet(ctx, id)
	case ir.KindInternetGateway:
		err = p.deleteInternetGateway(ctx, id)
	case ir.KindRouteTable:
		err = p.deleteRouteTable(ctx, id)
	case ir.KindSecurityRuleSet:
		err = p.deleteSecurityRuleSet(ctx, id)
	case ir.KindIdentityRole:
		err = p.deleteIdentityRole(ctx, id)
	case ir.KindComputeInstance:
		err = p.deleteComputeInstance(ctx, id)
	default:
		return "", &provider.Error{Op: "delete", Resource: string(kind), Permanent: true,
			Err: fmt.Errorf("unsupported resource kind: %s", kind)}
	}
	if err != nil {
		return "", provider.Classify("delete", id, err)
	}
	return provider.StatusGone, nil
}

// decode maps loosely typed manifest params onto a kind-specific config
// struct, so each kind's recognized options are enumerated in one place.
func decode(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
