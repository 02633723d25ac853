package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type IdentityRoleConfig struct {
	Name                  string            `json:"name"`
	AssumeRolePolicy      string            `json:"assumeRolePolicy"`
	ManagedPolicyArns     []string          `json:"managedPolicyArns"`
	InlinePolicies        map[string]string `json:"inlinePolicies"`
	CreateInstanceProfile bool              `json:"createInstanceProfile"`
	Tags                  map[string]string `json:"tags"`
}

// defaultAssumeRolePolicy lets EC2 assume the role, which is the common case
// for roles attached to compute instances.
const defaultAssumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Service": "ec2.amazonaws.com"},
    "Action": "sts:AssumeRole"
  }]
}`

func (p *Provider) createIdentityRole(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg IdentityRoleConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.AssumeRolePolicy == "" {
		cfg.AssumeRolePolicy = defaultAssumeRolePolicy
	}

	input := &iam.CreateRoleInput{
		RoleName:                 aws.String(cfg.Name),
		AssumeRolePolicyDocument: aws.String(cfg.AssumeRolePolicy),
	}
	for k, v := range cfg.Tags {
		input.Tags = append(input.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	resp, err := p.iamClient.CreateRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create IAM role: %w", err)
	}
	roleName := aws.ToString(resp.Role.RoleName)

	for _, arn := range cfg.ManagedPolicyArns {
		if _, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: aws.String(arn),
		}); err != nil {
			return nil, fmt.Errorf("failed to attach policy %s: %w", arn, err)
		}
	}
	for name, doc := range cfg.InlinePolicies {
		if _, err := p.iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(roleName),
			PolicyName:     aws.String(name),
			PolicyDocument: aws.String(doc),
		}); err != nil {
			return nil, fmt.Errorf("failed to put inline policy %s: %w", name, err)
		}
	}

	attrs := map[string]any{
		"id":   roleName,
		"arn":  aws.ToString(resp.Role.Arn),
		"name": roleName,
	}

	if cfg.CreateInstanceProfile {
		if _, err := p.iamClient.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
			InstanceProfileName: aws.String(roleName),
		}); err != nil {
			return nil, fmt.Errorf("failed to create instance profile: %w", err)
		}
		if _, err := p.iamClient.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
			InstanceProfileName: aws.String(roleName),
			RoleName:            aws.String(roleName),
		}); err != nil {
			return nil, fmt.Errorf("failed to add role to instance profile: %w", err)
		}
		attrs["instanceProfile"] = roleName
	}

	return &provider.CreateResult{
		ID:     roleName,
		Status: provider.StatusReady,
		Attrs:  attrs,
	}, nil
}

// updateIdentityRole reconciles the trust policy and attached policies. The
// role name itself is immutable.
func (p *Provider) updateIdentityRole(ctx context.Context, id string, params map[string]any) error {
	var cfg IdentityRoleConfig
	if err := decode(params, &cfg); err != nil {
		return err
	}

	if cfg.AssumeRolePolicy != "" {
		if _, err := p.iamClient.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(id),
			PolicyDocument: aws.String(cfg.AssumeRolePolicy),
		}); err != nil {
			return fmt.Errorf("failed to update trust policy: %w", err)
		}
	}

	attached, err := p.iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(id),
	})
	if err != nil {
		return err
	}
	desired := make(map[string]bool, len(cfg.ManagedPolicyArns))
	for _, arn := range cfg.ManagedPolicyArns {
		desired[arn] = true
	}
	current := make(map[string]bool, len(attached.AttachedPolicies))
	for _, pol := range attached.AttachedPolicies {
		arn := aws.ToString(pol.PolicyArn)
		current[arn] = true
		if !desired[arn] {
			if _, err := p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  aws.String(id),
				PolicyArn: pol.PolicyArn,
			}); err != nil {
				return fmt.Errorf("failed to detach policy %s: %w", arn, err)
			}
		}
	}
	for arn := range desired {
		if !current[arn] {
			if _, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
				RoleName:  aws.String(id),
				PolicyArn: aws.String(arn),
			}); err != nil {
				return fmt.Errorf("failed to attach policy %s: %w", arn, err)
			}
		}
	}

	for name, doc := range cfg.InlinePolicies {
		if _, err := p.iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(id),
			PolicyName:     aws.String(name),
			PolicyDocument: aws.String(doc),
		}); err != nil {
			return fmt.Errorf("failed to put inline policy %s: %w", name, err)
		}
	}
	return nil
}

func (p *Provider) describeIdentityRole(ctx context.Context, id string) (provider.Status, error) {
	_, err := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(id)})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	return provider.StatusReady, nil
}

func (p *Provider) deleteIdentityRole(ctx context.Context, id string) error {
	// The role cannot go until its profile membership, attached policies, and
	// inline policies are gone.
	if _, err := p.iamClient.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(id),
		RoleName:            aws.String(id),
	}); err == nil {
		_, _ = p.iamClient.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
			InstanceProfileName: aws.String(id),
		})
	}

	attached, err := p.iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	for _, pol := range attached.AttachedPolicies {
		if _, err := p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(id),
			PolicyArn: pol.PolicyArn,
		}); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to detach policy: %w", err)
		}
	}

	inline, err := p.iamClient.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	if inline != nil {
		for _, name := range inline.PolicyNames {
			if _, err := p.iamClient.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(id),
				PolicyName: aws.String(name),
			}); err != nil && !isNotFound(err) {
				return fmt.Errorf("failed to delete inline policy %s: %w", name, err)
			}
		}
	}

	_, err = p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete IAM role: %w", err)
	}
	return nil
}
