// Package dynamodb stores the literature map in a single DynamoDB table.
//
// Layout:
//
//	PK = PROJECT#<projectID>, SK = META            project metadata
//	PK = PROJECT#<projectID>, SK = NODE#<nodeID>   node rows
//	PK = PROJECT#<projectID>, SK = EDGE#<edgeID>   edge rows
//	GSI1PK = NODE#<nodeID>                          direct node lookup for position updates
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"literature-flow/application/ports"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/infrastructure/persistence"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	entityNode    = "NODE"
	entityEdge    = "EDGE"
	entityProject = "PROJECT"
)

var (
	_ ports.GraphStore   = (*Store)(nil)
	_ ports.ProjectStore = (*Store)(nil)
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type keys struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
}

type nodeItem struct {
	keys
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	persistence.NodeRecord
}

type edgeItem struct {
	keys
	persistence.EdgeRecord
}

type projectItem struct {
	keys
	persistence.ProjectRecord
}

// Store implements the graph and project stores on DynamoDB
type Store struct {
	client    API
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewStore creates a store for the given table and node-lookup index
func NewStore(client API, tableName, indexName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger.Named("dynamodb"),
	}
}

func projectPK(projectID string) string { return "PROJECT#" + projectID }
func nodeSK(nodeID string) string       { return "NODE#" + nodeID }
func edgeSK(edgeID string) string       { return "EDGE#" + edgeID }

// GetProject reads the project metadata item
func (s *Store) GetProject(ctx context.Context, projectID string) (*entities.Project, error) {
	key, err := attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
	}{projectPK(projectID), "META"})
	if err != nil {
		return nil, fmt.Errorf("failed to build key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	if err != nil {
		return nil, translate("get project", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("project " + projectID)
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return item.ToProject(), nil
}

// PutProject writes project metadata
func (s *Store) PutProject(ctx context.Context, project entities.Project) error {
	item, err := attributevalue.MarshalMap(projectItem{
		keys: keys{PK: projectPK(project.ID), SK: "META", EntityType: entityProject},
		ProjectRecord: persistence.ProjectRecord{
			ID:         project.ID,
			Title:      project.Title,
			Hypothesis: project.Hypothesis,
			PaperType:  project.PaperType,
			Theme:      project.Theme,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return translate("put project", err)
	}
	return nil
}

// ListNodes queries every node item of the project
func (s *Store) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	items, err := s.queryProject(ctx, projectID, "NODE#")
	if err != nil {
		return nil, translate("list nodes", err)
	}

	var rows []nodeItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	nodes := make([]*entities.Node, 0, len(rows))
	for _, row := range rows {
		node, err := row.ToNode()
		if err != nil {
			s.logger.Warn("Skipping unreadable node item", zap.String("nodeID", row.ID), zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ListEdges queries every edge item of the project
func (s *Store) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	items, err := s.queryProject(ctx, projectID, "EDGE#")
	if err != nil {
		return nil, translate("list edges", err)
	}

	var rows []edgeItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	edges := make([]*entities.Edge, 0, len(rows))
	for _, row := range rows {
		edge, err := row.ToEdge()
		if err != nil {
			s.logger.Warn("Skipping unreadable edge item", zap.String("edgeID", row.ID), zap.Error(err))
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func (s *Store) queryProject(ctx context.Context, projectID, skPrefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("SK").BeginsWith(skPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// InsertNode writes a node item. An existing item with the same id is a conflict.
func (s *Store) InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error) {
	item, err := attributevalue.MarshalMap(nodeItem{
		keys:       keys{PK: projectPK(projectID), SK: nodeSK(node.ID), EntityType: entityNode},
		GSI1PK:     nodeSK(node.ID),
		GSI1SK:     projectPK(projectID),
		NodeRecord: persistence.NodeRecordFrom(projectID, node),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node: %w", err)
	}
	if err := s.putNew(ctx, item); err != nil {
		return nil, translate("insert node", err)
	}
	return node, nil
}

// InsertEdge writes an edge item
func (s *Store) InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error) {
	item, err := attributevalue.MarshalMap(edgeItem{
		keys:       keys{PK: projectPK(projectID), SK: edgeSK(edge.ID), EntityType: entityEdge},
		EdgeRecord: persistence.EdgeRecordFrom(projectID, edge),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge: %w", err)
	}
	if err := s.putNew(ctx, item); err != nil {
		return nil, translate("insert edge", err)
	}
	return edge, nil
}

func (s *Store) putNew(ctx context.Context, item map[string]types.AttributeValue) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// UpdateNodePosition finds the node through the lookup index and sets the mode
// attribute and the legacy attribute
func (s *Store) UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error {
	var attr string
	switch mode {
	case valueobjects.LayoutHierarchical:
		attr = "HierarchicalPosition"
	case valueobjects.LayoutSpatial:
		attr = "SpatialPosition"
	default:
		return pkgerrors.NewValidationError("unknown layout mode: " + string(mode))
	}

	projectID, err := s.projectOf(ctx, nodeID)
	if err != nil {
		return err
	}

	rec := persistence.PositionRecord{X: pos.X(), Y: pos.Y()}
	update := expression.Set(expression.Name(attr), expression.Value(rec)).
		Set(expression.Name("Position"), expression.Value(rec))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	key, err := attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
	}{projectPK(projectID), nodeSK(nodeID)})
	if err != nil {
		return fmt.Errorf("failed to build key: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailure(err) {
			return pkgerrors.NewNotFoundError("node " + nodeID)
		}
		return translate("update node position", err)
	}

	s.logger.Debug("Node position updated",
		zap.String("nodeID", nodeID),
		zap.String("mode", string(mode)),
	)
	return nil
}

func (s *Store) projectOf(ctx context.Context, nodeID string) (string, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(nodeSK(nodeID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return "", fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return "", translate("find node", err)
	}
	if len(out.Items) == 0 {
		return "", pkgerrors.NewNotFoundError("node " + nodeID)
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return "", fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return item.ProjectID, nil
}

func isConditionFailure(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

// translate maps DynamoDB API errors onto application error types
func translate(operation string, err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return pkgerrors.NewDatabaseError(operation, err)
	}
	switch ae.ErrorCode() {
	case "ConditionalCheckFailedException":
		return pkgerrors.NewConflictError(operation + ": item already exists").WithCause(err)
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	case "ResourceNotFoundException":
		return pkgerrors.NewInternalError("table not found: " + operation).WithCause(err)
	}
	return pkgerrors.NewDatabaseError(operation, err)
}
