package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sokoni/server/internal/infra/config"
	"github.com/sokoni/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutter struct {
	mock.Mock
}

func (m *MockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func testEvent() *model.CallbackEvent {
	return &model.CallbackEvent{
		ID:            uuid.MustParse("6f1c1e9a-8d3b-4a57-9a44-1b0f3c2d9e10"),
		Provider:      "mpesa",
		CorrelationID: "ws_CO_1",
		Data:          `{"Body":{}}`,
		CreatedAt:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestCallbackArchive_Key(t *testing.T) {
	a := NewCallbackArchive(&MockPutter{}, "bucket", "/callbacks/")
	assert.Equal(t, "callbacks/mpesa/2024/01/15/6f1c1e9a-8d3b-4a57-9a44-1b0f3c2d9e10.json", a.Key(testEvent()))

	bare := NewCallbackArchive(&MockPutter{}, "bucket", "")
	assert.Equal(t, "mpesa/2024/01/15/6f1c1e9a-8d3b-4a57-9a44-1b0f3c2d9e10.json", bare.Key(testEvent()))
}

func TestCallbackArchive_Archive(t *testing.T) {
	t.Run("uploads raw body", func(t *testing.T) {
		putter := &MockPutter{}
		a := NewCallbackArchive(putter, "bucket", "callbacks")

		putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, _ := io.ReadAll(in.Body)
			return *in.Bucket == "bucket" &&
				*in.Key == "callbacks/mpesa/2024/01/15/6f1c1e9a-8d3b-4a57-9a44-1b0f3c2d9e10.json" &&
				string(body) == `{"Body":{}}` &&
				in.Metadata["correlation-id"] == "ws_CO_1"
		})).Return(&s3.PutObjectOutput{}, nil)

		require.NoError(t, a.Archive(context.Background(), testEvent()))
		putter.AssertExpectations(t)
	})

	t.Run("upload failure", func(t *testing.T) {
		putter := &MockPutter{}
		a := NewCallbackArchive(putter, "bucket", "callbacks")
		putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

		err := a.Archive(context.Background(), testEvent())
		assert.ErrorContains(t, err, "access denied")
	})
}

func TestNewClient_IncompleteConfig(t *testing.T) {
	_, err := NewClient(context.Background(), &config.StorageConfig{Bucket: "bucket"})
	assert.Error(t, err)
}
