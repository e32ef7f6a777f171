package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"literature-flow/domain/core/valueobjects"
	"literature-flow/domain/events"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPutEvents struct {
	mock.Mock
}

func (m *mockPutEvents) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func moved(n int) []events.DomainEvent {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeMoved("42", "c1", valueobjects.LayoutSpatial, valueobjects.MustPosition(float64(i), 0), ts)
	}
	return out
}

func TestPublisher_BatchesOfTen(t *testing.T) {
	client := new(mockPutEvents)
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(client, "map-events", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), moved(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)

	require.NoError(t, p.Publish(context.Background(), nil))
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestPublisher_Entry(t *testing.T) {
	client := new(mockPutEvents)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil)

	insight := events.NewInsightCreated("42", "i1", "Insight-A", []string{"c1", "c2"}, time.Now().UTC())
	p := NewPublisher(client, "map-events", nil)
	require.NoError(t, p.Publish(context.Background(), []events.DomainEvent{insight}))

	in := client.Calls[0].Arguments.Get(1).(*eventbridge.PutEventsInput)
	entry := in.Entries[0]
	assert.Equal(t, "map-events", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeInsightCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"project/42"}, entry.Resources)

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "i1", detail["insight_id"])
	assert.Equal(t, "42", detail["aggregate_id"])
}

func TestPublisher_Failures(t *testing.T) {
	client := new(mockPutEvents)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
	}, nil).Once()

	p := NewPublisher(client, "map-events", zap.NewNop())
	err := p.Publish(context.Background(), moved(1))
	assert.ErrorContains(t, err, "throttled")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))

	err = p.Publish(context.Background(), moved(1))
	assert.ErrorContains(t, err, "1 events failed")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}
