package aws

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type ComputeInstanceConfig struct {
	ImageID          string            `json:"imageId"`
	InstanceType     string            `json:"instanceType"`
	SubnetID         string            `json:"subnetId"`
	SecurityGroupIDs []string          `json:"securityGroupIds"`
	KeyName          string            `json:"keyName"`
	InstanceProfile  string            `json:"instanceProfile"`
	UserData         string            `json:"userData"`
	PublicIP         bool              `json:"publicIp"`
	Tags             map[string]string `json:"tags"`
}

func (p *Provider) createComputeInstance(ctx context.Context, params map[string]any) (*provider.CreateResult, error) {
	var cfg ComputeInstanceConfig
	if err := decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.InstanceType == "" {
		cfg.InstanceType = "t3.micro"
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(cfg.ImageID),
		InstanceType: types.InstanceType(cfg.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if cfg.KeyName != "" {
		input.KeyName = aws.String(cfg.KeyName)
	}
	if cfg.InstanceProfile != "" {
		input.IamInstanceProfile = &types.IamInstanceProfileSpecification{
			Name: aws.String(cfg.InstanceProfile),
		}
	}
	if cfg.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(cfg.UserData)))
	}
	if cfg.SubnetID != "" {
		// Keep subnet, groups and public IP on one network interface so they
		// don't conflict with the top-level fields.
		ni := types.InstanceNetworkInterfaceSpecification{
			DeviceIndex:              aws.Int32(0),
			SubnetId:                 aws.String(cfg.SubnetID),
			AssociatePublicIpAddress: aws.Bool(cfg.PublicIP),
			Groups:                   cfg.SecurityGroupIDs,
		}
		input.NetworkInterfaces = []types.InstanceNetworkInterfaceSpecification{ni}
	} else {
		input.SecurityGroupIds = cfg.SecurityGroupIDs
	}

	resp, err := p.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to launch instance: %w", err)
	}
	if len(resp.Instances) == 0 {
		return nil, fmt.Errorf("RunInstances returned no instances")
	}
	inst := resp.Instances[0]
	instanceID := aws.ToString(inst.InstanceId)

	p.tagResource(ctx, instanceID, cfg.Tags)

	attrs := map[string]any{
		"id":           instanceID,
		"instanceType": cfg.InstanceType,
		"imageId":      cfg.ImageID,
	}
	if inst.PrivateIpAddress != nil {
		attrs["privateIp"] = aws.ToString(inst.PrivateIpAddress)
	}

	return &provider.CreateResult{
		ID:     instanceID,
		Status: provider.StatusProvisioning,
		Attrs:  attrs,
	}, nil
}

func (p *Provider) describeComputeInstance(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return provider.StatusGone, nil
		}
		return "", err
	}
	for _, resv := range resp.Reservations {
		for _, inst := range resv.Instances {
			switch inst.State.Name {
			case types.InstanceStateNameRunning:
				return p.instanceHealth(ctx, id)
			case types.InstanceStateNamePending:
				return provider.StatusProvisioning, nil
			case types.InstanceStateNameTerminated, types.InstanceStateNameShuttingDown:
				return provider.StatusGone, nil
			default:
				return provider.StatusDegraded, nil
			}
		}
	}
	return provider.StatusGone, nil
}

// instanceHealth refines a running instance's status with the EC2 status
// checks. A running instance with failing checks reports as degraded rather
// than ready.
func (p *Provider) instanceHealth(ctx context.Context, id string) (provider.Status, error) {
	resp, err := p.ec2Client.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return provider.StatusProvisioning, nil
	}
	for _, st := range resp.InstanceStatuses {
		if st.InstanceStatus == nil || st.SystemStatus == nil {
			continue
		}
		switch {
		case st.InstanceStatus.Status == types.SummaryStatusOk && st.SystemStatus.Status == types.SummaryStatusOk:
			return provider.StatusReady, nil
		case st.InstanceStatus.Status == types.SummaryStatusInitializing || st.SystemStatus.Status == types.SummaryStatusInitializing:
			return provider.StatusProvisioning, nil
		default:
			return provider.StatusDegraded, nil
		}
	}
	// Status checks have not reported yet.
	return provider.StatusProvisioning, nil
}

func (p *Provider) deleteComputeInstance(ctx context.Context, id string) error {
	_, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to terminate instance: %w", err)
	}
	return nil
}
