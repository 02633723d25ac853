package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// s3Store persists deployment state in S3, with optional DynamoDB
// conditional-put locking for shared team use.
type s3Store struct {
	bucket        string
	prefix        string
	region        string
	dynamoDBTable string
	sseEncrypt    bool
	profile       string

	s3Client *s3.Client
	dbClient *dynamodb.Client

	current *ir.DeploymentState
}

func newS3Store(config map[string]string) (Store, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	prefix := config["prefix"]
	if prefix == "" {
		prefix = "stackpilot"
	}

	region := config["region"]
	if region == "" {
		region = "us-east-1"
	}

	st := &s3Store{
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		region:        region,
		dynamoDBTable: config["dynamodb_table"],
		sseEncrypt:    config["encrypt"] == "true",
		profile:       config["profile"],
	}

	if err := st.initClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize s3 backend: %w", err)
	}

	return st, nil
}

func (s *s3Store) initClients() error {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(s.region))
	if s.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	s.s3Client = s3.NewFromConfig(cfg)
	if s.dynamoDBTable != "" {
		s.dbClient = dynamodb.NewFromConfig(cfg)
	}

	return nil
}

func (s *s3Store) objectKey(deploymentID string) string {
	return fmt.Sprintf("%s/%s/state.json", s.prefix, deploymentID)
}

func (s *s3Store) Load(ctx context.Context, deploymentID string) (*ir.DeploymentState, error) {
	key := s.objectKey(deploymentID)

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			s.current = ir.NewDeploymentState(deploymentID)
			return s.current.Clone(), nil
		}
		return nil, &StoreError{Op: "load", Err: fmt.Errorf("s3://%s/%s: %w", s.bucket, key, err)}
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}

	if IsEncrypted(raw) {
		raw, err = Decrypt(raw)
		if err != nil {
			return nil, &StoreError{Op: "load", Err: err}
		}
	}

	var ds ir.DeploymentState
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, &StoreError{Op: "load", Err: fmt.Errorf("corrupt remote state: %w", err)}
	}
	if ds.Resources == nil {
		ds.Resources = make(map[string]*ir.ResourceState)
	}

	s.current = &ds
	return s.current.Clone(), nil
}

func (s *s3Store) Commit(ctx context.Context, name string, rs *ir.ResourceState) error {
	if s.current == nil {
		return &StoreError{Op: "commit", Err: fmt.Errorf("store not loaded")}
	}

	next := s.current.Clone()
	next.Resources[name] = rs.Clone()
	next.Serial++
	next.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return &StoreError{Op: "commit", Err: err}
	}

	content, err := Encrypt(raw)
	if err != nil {
		return &StoreError{Op: "commit", Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(next.ID)),
		Body:   bytes.NewReader(content),
	}
	if s.sseEncrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return &StoreError{Op: "commit", Err: fmt.Errorf("s3://%s/%s: %w", s.bucket, *input.Key, err)}
	}

	s.current = next
	return nil
}

func (s *s3Store) Snapshot() *ir.DeploymentState {
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

func (s *s3Store) Lock(deploymentID string) error {
	if s.dynamoDBTable == "" {
		return nil // No locking without DynamoDB
	}

	lockInfo := fmt.Sprintf("stackpilot-%d-%d", os.Getpid(), time.Now().UnixNano())
	lockID := s.objectKey(deploymentID)

	_, err := s.dbClient.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(s.dynamoDBTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: lockID},
			"Info":    &dbtypes.AttributeValueMemberS{Value: lockInfo},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmt.Errorf("deployment is locked by another process. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q", lockID, s.dynamoDBTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	return nil
}

func (s *s3Store) Unlock(deploymentID string) error {
	if s.dynamoDBTable == "" {
		return nil
	}

	lockID := s.objectKey(deploymentID)

	_, err := s.dbClient.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(s.dynamoDBTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: lockID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}
