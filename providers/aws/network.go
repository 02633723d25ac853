package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type NetworkConfig struct {
	CidrBlock          string            `json:"cidrBlock"`
	EnableDnsSupport   bool              `json:"enableDnsSupport"`
	EnableDnsHostnames bool              `json:"enableDnsHostnames"`
	Tags               map[string]string `json:"tags"`
}

type SubnetConfig struct {
	NetworkID           string            `json:"networkId"`
	CidrBlock           string            `json:"cidrBlock"`
	AvailabilityZone    string            `json:"availabilityZone"`
	MapPublicIpOnLaunch bool              `json:"mapPublicIpOnLaunch"`
	Tags                map[string]string `json:"tags"`
}

type InternetGatewayConfig struct {
	NetworkID string            `json:"networkId"`
	Tags      map[string]string `json:"tags"`
}

type RouteTableConfig struct {
	NetworkID string            `json:"networkId"`
	Routes    []RouteConfig     `json:"routes"`
	SubnetIDs []string          `json:"subnetIds"`
	Tags      map[string]string `json:"tags"`
}

type RouteConfig struct {
	DestinationCidr string `json:"destinationCidr"`
	GatewayID       string `json:"gatewayId"`
}

func (p *Provider) createNetwork(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg NetworkConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(cfg.CidrBlock),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := aws.ToString(resp.Vpc.VpcId)

	if cfg.EnableDnsSupport {
		_, _ = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:            aws.String(vpcID),
			EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}
	if cfg.EnableDnsHostnames {
		_, _ = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              aws.String(vpcID),
			EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}
	p.tagResource(ctx, vpcID, cfg.Tags)

	return &provider.CreateResult{
		ID:     vpcID,
		Status: provider.StatusProvisioning,
		Attrs: map[string]any{
			"id":        vpcID,
			"cidrBlock": aws.ToString(resp.Vpc.CidrBlock),
		},
	}, nil
}

func (p *Provider) describeNetwork(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	if len(resp.Vpcs) == 0 {
		return provider.StatusGone, nil
	}
	if resp.Vpcs[0].State == types.VpcStateAvailable {
		return provider.StatusReady, nil
	}
	return provider.StatusProvisioning, nil
}

func (p *Provider) deleteNetwork(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete VPC: %w", err)
	}
	return nil
}

func (p *Provider) createSubnet(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg SubnetConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     aws.String(cfg.NetworkID),
		CidrBlock: aws.String(cfg.CidrBlock),
	}
	if cfg.AvailabilityZone != "" {
		input.AvailabilityZone = aws.String(cfg.AvailabilityZone)
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := aws.ToString(resp.Subnet.SubnetId)

	if cfg.MapPublicIpOnLaunch {
		_, _ = p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}
	p.tagResource(ctx, subnetID, cfg.Tags)

	return &provider.CreateResult{
		ID:     subnetID,
		Status: provider.StatusProvisioning,
		Attrs: map[string]any{
			"id":        subnetID,
			"networkId": cfg.NetworkID,
		},
	}, nil
}

func (p *Provider) describeSubnet(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{id}})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	if len(resp.Subnets) == 0 {
		return provider.StatusGone, nil
	}
	if resp.Subnets[0].State == types.SubnetStateAvailable {
		return provider.StatusReady, nil
	}
	return provider.StatusProvisioning, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete subnet: %w", err)
	}
	return nil
}

func (p *Provider) createInternetGateway(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg InternetGatewayConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(resp.InternetGateway.InternetGatewayId)

	if cfg.NetworkID != "" {
		if _, err := p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(cfg.NetworkID),
		}); err != nil {
			return nil, fmt.Errorf("failed to attach internet gateway: %w", err)
		}
	}
	p.tagResource(ctx, igwID, cfg.Tags)

	return &provider.CreateResult{
		ID:     igwID,
		Status: provider.StatusReady,
		Attrs: map[string]any{
			"id":        igwID,
			"networkId": cfg.NetworkID,
		},
	}, nil
}

func (p *Provider) describeInternetGateway(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	if len(resp.InternetGateways) == 0 {
		return provider.StatusGone, nil
	}
	return provider.StatusReady, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, id string) error {
	// Detach from whatever VPC it is attached to first.
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	for _, igw := range resp.InternetGateways {
		for _, att := range igw.Attachments {
			_, _ = p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
				InternetGatewayId: aws.String(id),
				VpcId:             att.VpcId,
			})
		}
	}

	_, err = p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete internet gateway: %w", err)
	}
	return nil
}

func (p *Provider) createRouteTable(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg RouteTableConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}

	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId: aws.String(cfg.NetworkID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := aws.ToString(resp.RouteTable.RouteTableId)

	for _, route := range cfg.Routes {
		if _, err := p.ec2Client.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String(route.DestinationCidr),
			GatewayId:            aws.String(route.GatewayID),
		}); err != nil {
			return nil, fmt.Errorf("failed to create route %s: %w", route.DestinationCidr, err)
		}
	}
	for _, subnetID := range cfg.SubnetIDs {
		if _, err := p.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(rtID),
			SubnetId:     aws.String(subnetID),
		}); err != nil {
			return nil, fmt.Errorf("failed to associate route table with %s: %w", subnetID, err)
		}
	}
	p.tagResource(ctx, rtID, cfg.Tags)

	return &provider.CreateResult{
		ID:     rtID,
		Status: provider.StatusReady,
		Attrs: map[string]any{
			"id":        rtID,
			"networkId": cfg.NetworkID,
		},
	}, nil
}

func (p *Provider) describeRouteTable(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	if len(resp.RouteTables) == 0 {
		return provider.StatusGone, nil
	}
	return provider.StatusReady, nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, id string) error {
	// Associations must go before the table itself.
	resp, err := p.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	for _, rt := range resp.RouteTables {
		for _, assoc := range rt.Associations {
			if aws.ToBool(assoc.Main) {
				continue
			}
			_, _ = p.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: assoc.RouteTableAssociationId,
			})
		}
	}

	_, err = p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
		RouteTableId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete route table: %w", err)
	}
	return nil
}

// updateTags is the in-place update for EC2-family resources: only tags are
// mutable here, everything else is treated as immutable.
func (p *Provider) updateTags(ctx context.Context, id string, params map[string]any) error {
	var cfg struct {
		Tags map[string]string `json:"tags"`
	}
	if err := decode(params, &cfg); err != nil {
		return err
	}
	if len(cfg.Tags) == 0 {
		return nil
	}

	var tags []types.Tag
	for k, v := range cfg.Tags {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      tags,
	})
	return err
}

func (p *Provider) tagResource(ctx context.Context, id string, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	var ec2Tags []types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	// Tagging is best-effort on create; a tag failure shouldn't orphan the
	// resource we just made.
	_, _ = p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	})
}

// isNotFound matches the EC2-style .NotFound error code family.
func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		if len(code) > 9 && code[len(code)-9:] == ".NotFound" {
			return true
		}
		switch code {
		case "NoSuchEntity", "InvalidGroup.NotFound", "NotFoundException":
			return true
		}
	}
	return false
}
