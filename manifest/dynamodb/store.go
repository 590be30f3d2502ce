// Package dynamodb stores index manifests in a DynamoDB table so that
// multiple readers and writers can share one catalog.
//
// Table schema:
//   - Partition key: name (string) - the index name
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vecscan-manifests \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/manifest"
)

// Attribute names of a manifest item. "name" is a DynamoDB reserved word,
// so expressions refer to it through ExpressionAttributeNames.
const (
	attrName           = "name"
	attrDimension      = "dimension"
	attrMetric         = "metric"
	attrM              = "m"
	attrEFConstruction = "ef_construction"
	attrGraphKey       = "graph_key"
	attrPagesKey       = "pages_key"
	attrRecordCount    = "record_count"
	attrCreatedAt      = "created_at"
	attrUpdatedAt      = "updated_at"
)

// Client is the subset of the DynamoDB API the store depends on.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements manifest.Store on top of one DynamoDB table.
type Store struct {
	client Client
	table  string
}

var _ manifest.Store = (*Store)(nil)

// New returns a store writing to the given table.
func New(client Client, table string) *Store {
	return &Store{
		client: client,
		table:  table,
	}
}

// NewFromDefaultConfig builds the client from the ambient AWS
// configuration (environment, shared config, instance role).
func NewFromDefaultConfig(ctx context.Context, table string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: failed to load aws config: %w", err)
	}

	return New(dynamodb.NewFromConfig(cfg), table), nil
}

// Create implements manifest.Store. The conditional put turns a name
// collision into manifest.ErrAlreadyExists instead of a silent overwrite.
func (s *Store) Create(ctx context.Context, m *manifest.Manifest) error {
	if err := manifest.ValidateName(m.Name); err != nil {
		return err
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     marshalManifest(m),
		ConditionExpression:      aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %q", manifest.ErrAlreadyExists, m.Name)
		}

		return fmt.Errorf("dynamodb: failed to create manifest %q: %w", m.Name, err)
	}

	return nil
}

// Put implements manifest.Store.
func (s *Store) Put(ctx context.Context, m *manifest.Manifest) error {
	if err := manifest.ValidateName(m.Name); err != nil {
		return err
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      marshalManifest(m),
	}); err != nil {
		return fmt.Errorf("dynamodb: failed to put manifest %q: %w", m.Name, err)
	}

	return nil
}

// Get implements manifest.Store.
func (s *Store) Get(ctx context.Context, name string) (*manifest.Manifest, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrName: &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: failed to get manifest %q: %w", name, err)
	}

	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %q", manifest.ErrNotFound, name)
	}

	return unmarshalManifest(out.Item)
}

// Delete implements manifest.Store. DynamoDB deletes are idempotent, a
// missing item is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := manifest.ValidateName(name); err != nil {
		return err
	}

	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrName: &types.AttributeValueMemberS{Value: name},
		},
	}); err != nil {
		return fmt.Errorf("dynamodb: failed to delete manifest %q: %w", name, err)
	}

	return nil
}

// List implements manifest.Store. The scan follows LastEvaluatedKey
// until the table is exhausted.
func (s *Store) List(ctx context.Context) ([]*manifest.Manifest, error) {
	var (
		manifests []*manifest.Manifest
		startKey  map[string]types.AttributeValue
	)

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb: failed to scan manifests: %w", err)
		}

		for _, item := range out.Items {
			m, err := unmarshalManifest(item)
			if err != nil {
				return nil, err
			}

			manifests = append(manifests, m)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}

		startKey = out.LastEvaluatedKey
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name < manifests[j].Name
	})

	return manifests, nil
}

func marshalManifest(m *manifest.Manifest) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrName:           &types.AttributeValueMemberS{Value: m.Name},
		attrDimension:      &types.AttributeValueMemberN{Value: strconv.Itoa(m.Dimension)},
		attrMetric:         &types.AttributeValueMemberN{Value: strconv.Itoa(int(m.Metric))},
		attrM:              &types.AttributeValueMemberN{Value: strconv.Itoa(m.M)},
		attrEFConstruction: &types.AttributeValueMemberN{Value: strconv.Itoa(m.EFConstruction)},
		attrGraphKey:       &types.AttributeValueMemberS{Value: m.GraphKey},
		attrPagesKey:       &types.AttributeValueMemberS{Value: m.PagesKey},
		attrRecordCount:    &types.AttributeValueMemberN{Value: strconv.FormatUint(m.RecordCount, 10)},
		attrCreatedAt:      &types.AttributeValueMemberS{Value: m.CreatedAt.Format(time.RFC3339Nano)},
		attrUpdatedAt:      &types.AttributeValueMemberS{Value: m.UpdatedAt.Format(time.RFC3339Nano)},
	}
}

func unmarshalManifest(item map[string]types.AttributeValue) (*manifest.Manifest, error) {
	name, err := stringAttr(item, attrName)
	if err != nil {
		return nil, err
	}

	dimension, err := intAttr(item, attrDimension)
	if err != nil {
		return nil, err
	}

	metric, err := intAttr(item, attrMetric)
	if err != nil {
		return nil, err
	}

	mParam, err := intAttr(item, attrM)
	if err != nil {
		return nil, err
	}

	efConstruction, err := intAttr(item, attrEFConstruction)
	if err != nil {
		return nil, err
	}

	graphKey, err := stringAttr(item, attrGraphKey)
	if err != nil {
		return nil, err
	}

	pagesKey, err := stringAttr(item, attrPagesKey)
	if err != nil {
		return nil, err
	}

	recordCount, err := uint64Attr(item, attrRecordCount)
	if err != nil {
		return nil, err
	}

	createdAt, err := timeAttr(item, attrCreatedAt)
	if err != nil {
		return nil, err
	}

	updatedAt, err := timeAttr(item, attrUpdatedAt)
	if err != nil {
		return nil, err
	}

	return &manifest.Manifest{
		Name:           name,
		Dimension:      dimension,
		Metric:         distance.Metric(metric),
		M:              mParam,
		EFConstruction: efConstruction,
		GraphKey:       graphKey,
		PagesKey:       pagesKey,
		RecordCount:    recordCount,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func stringAttr(item map[string]types.AttributeValue, key string) (string, error) {
	attr, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb: missing or invalid attribute %q", key)
	}

	return attr.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	attr, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamodb: missing or invalid attribute %q", key)
	}

	v, err := strconv.Atoi(attr.Value)
	if err != nil {
		return 0, fmt.Errorf("dynamodb: failed to parse attribute %q: %w", key, err)
	}

	return v, nil
}

func uint64Attr(item map[string]types.AttributeValue, key string) (uint64, error) {
	attr, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamodb: missing or invalid attribute %q", key)
	}

	v, err := strconv.ParseUint(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamodb: failed to parse attribute %q: %w", key, err)
	}

	return v, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	attr, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return time.Time{}, fmt.Errorf("dynamodb: missing or invalid attribute %q", key)
	}

	t, err := time.Parse(time.RFC3339Nano, attr.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("dynamodb: failed to parse attribute %q: %w", key, err)
	}

	return t, nil
}
