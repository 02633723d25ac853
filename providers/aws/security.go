package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type SecurityRuleSetConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	NetworkID   string            `json:"networkId"`
	Ingress     []SecurityRule    `json:"ingress"`
	Egress      []SecurityRule    `json:"egress"`
	Tags        map[string]string `json:"tags"`
}

type SecurityRule struct {
	Protocol   string   `json:"protocol"`
	FromPort   int32    `json:"fromPort"`
	ToPort     int32    `json:"toPort"`
	CidrBlocks []string `json:"cidrBlocks"`
}

func (p *Provider) createSecurityRuleSet(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg SecurityRuleSetConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Description == "" {
		cfg.Description = "managed by stackpilot"
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(cfg.Name),
		Description: aws.String(cfg.Description),
		VpcId:       aws.String(cfg.NetworkID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := aws.ToString(resp.GroupId)

	if err := p.authorizeRules(ctx, groupID, cfg.Ingress, cfg.Egress); err != nil {
		return nil, err
	}
	p.tagResource(ctx, groupID, cfg.Tags)

	return &provider.CreateResult{
		ID:     groupID,
		Status: provider.StatusReady,
		Attrs: map[string]any{
			"id":        groupID,
			"name":      cfg.Name,
			"networkId": cfg.NetworkID,
		},
	}, nil
}

// updateSecurityRuleSet revokes every current rule and re-authorizes from the
// desired set. The group keeps its identity so references stay valid.
func (p *Provider) updateSecurityRuleSet(ctx context.Context, id string, params map[string]any) error {
	var cfg SecurityRuleSetConfig
	if err := decode(params, &cfg); err != nil {
		return err
	}

	resp, err := p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil {
		return err
	}
	if len(resp.SecurityGroups) == 0 {
		return fmt.Errorf("security group %s no longer exists", id)
	}
	group := resp.SecurityGroups[0]

	if len(group.IpPermissions) > 0 {
		if _, err := p.ec2Client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(id),
			IpPermissions: group.IpPermissions,
		}); err != nil {
			return fmt.Errorf("failed to revoke ingress rules: %w", err)
		}
	}
	if len(group.IpPermissionsEgress) > 0 {
		if _, err := p.ec2Client.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(id),
			IpPermissions: group.IpPermissionsEgress,
		}); err != nil {
			return fmt.Errorf("failed to revoke egress rules: %w", err)
		}
	}

	return p.authorizeRules(ctx, id, cfg.Ingress, cfg.Egress)
}

func (p *Provider) authorizeRules(ctx context.Context, groupID string, ingress, egress []SecurityRule) error {
	if len(ingress) > 0 {
		if _, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: toIPPermissions(ingress),
		}); err != nil {
			return fmt.Errorf("failed to authorize ingress rules: %w", err)
		}
	}
	if len(egress) > 0 {
		if _, err := p.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: toIPPermissions(egress),
		}); err != nil {
			return fmt.Errorf("failed to authorize egress rules: %w", err)
		}
	}
	return nil
}

func toIPPermissions(rules []SecurityRule) []types.IpPermission {
	perms := make([]types.IpPermission, 0, len(rules))
	for _, rule := range rules {
		perm := types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
		}
		if rule.Protocol != "-1" {
			perm.FromPort = aws.Int32(rule.FromPort)
			perm.ToPort = aws.Int32(rule.ToPort)
		}
		for _, cidr := range rule.CidrBlocks {
			perm.IpRanges = append(perm.IpRanges, types.IpRange{CidrIp: aws.String(cidr)})
		}
		perms = append(perms, perm)
	}
	return perms
}

func (p *Provider) describeSecurityRuleSet(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	if len(resp.SecurityGroups) == 0 {
		return provider.StatusGone, nil
	}
	return provider.StatusReady, nil
}

func (p *Provider) deleteSecurityRuleSet(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete security group: %w", err)
	}
	return nil
}
