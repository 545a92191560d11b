package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"odinboard/internal/config"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"
)

// MockLogger implements logger.Logger for tests
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Debugf(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Warnf(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Fatal(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Fatalf(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Panic(msg string) {
	m.Called(msg)
}

func (m *MockLogger) Panicf(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	m.Called(key, value)
	return m
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	m.Called(fields)
	return m
}

// ------------------------ tests not real connection ------------------------
func TestNew_NilConfig(t *testing.T) {
	mockLogger := new(MockLogger)

	client, err := New(mockLogger, nil)

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Equal(t, "nats config is required", err.Error())
}

func TestNew_EmptyURL(t *testing.T) {
	mockLogger := new(MockLogger)

	client, err := New(mockLogger, &config.NATSConfig{})

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Equal(t, "nats url is required", err.Error())
}

func TestReady_NilConnection(t *testing.T) {
	client := &Client{
		nc:  nil,
		log: new(MockLogger),
	}

	assert.False(t, client.Ready())
}

func TestPublish_NotConnected(t *testing.T) {
	client := &Client{
		nc:  nil,
		log: new(MockLogger),
	}

	err := client.Publish(context.Background(), "tokens.new", map[string]string{"id": "t1"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHealth_NotConnected(t *testing.T) {
	client := &Client{
		nc:  nil,
		log: new(MockLogger),
	}

	assert.ErrorIs(t, client.Health(context.Background()), ErrNotConnected)
}

func TestClose_NilConnection(t *testing.T) {
	mockLogger := new(MockLogger)
	client := &Client{
		nc:  nil,
		log: mockLogger,
	}

	err := client.Close()

	assert.NoError(t, err)
	mockLogger.AssertNotCalled(t, "Errorf", mock.Anything, mock.Anything)
	mockLogger.AssertNotCalled(t, "Infof", mock.Anything, mock.Anything)
}

// ------------------------ tests not real connection ------------------------

// ------------------------ tests in-memory nats connection ------------------------
func runTestWithInMemoryNATS(t *testing.T, testFunc func(*testing.T, *server.Server, string)) {
	t.Helper()

	// run in-memory NATS server
	opts := natsserver.DefaultTestOptions
	opts.Port = -1 // random port
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	// give server time running
	time.Sleep(100 * time.Millisecond)

	testFunc(t, s, s.ClientURL())
}

func TestNew_Success(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)

		client, err := New(mockLogger, &config.NATSConfig{URL: url})

		require.NoError(t, err)
		require.NotNil(t, client)
		assert.True(t, client.Ready())
		assert.NoError(t, client.Health(context.Background()))

		// cleanup not use client.Close() to avoid the unexpected call Infof
		if client != nil && client.nc != nil {
			client.nc.Close()
		}
	})
}

func TestPublish_SubjectPrefix(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)
		mockLogger.On("Debugf", mock.Anything, mock.Anything).Maybe()

		client, err := New(mockLogger, &config.NATSConfig{
			URL:             url,
			BroadcastPrefix: "board.test",
		})
		require.NoError(t, err)
		defer client.nc.Close()

		// raw subscriber on the prefixed subject
		sub, err := nats.Connect(url)
		require.NoError(t, err)
		defer sub.Close()

		received := make(chan *nats.Msg, 1)
		_, err = sub.Subscribe("board.test.tokens.new", func(msg *nats.Msg) {
			received <- msg
		})
		require.NoError(t, err)
		require.NoError(t, sub.Flush())

		err = client.Publish(context.Background(), "tokens.new", map[string]string{"id": "tok-1"})
		require.NoError(t, err)

		select {
		case msg := <-received:
			var got map[string]string
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, "tok-1", got["id"])
		case <-time.After(2 * time.Second):
			t.Fatal("did not receive broadcast on prefixed subject")
		}
	})
}

func TestPublish_DefaultPrefix(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)
		mockLogger.On("Debugf", mock.Anything, mock.Anything).Maybe()

		client, err := New(mockLogger, &config.NATSConfig{URL: url})
		require.NoError(t, err)
		defer client.nc.Close()

		sub, err := nats.Connect(url)
		require.NoError(t, err)
		defer sub.Close()

		received := make(chan *nats.Msg, 1)
		_, err = sub.Subscribe("odinboard.tokens.new", func(msg *nats.Msg) {
			received <- msg
		})
		require.NoError(t, err)
		require.NoError(t, sub.Flush())

		require.NoError(t, client.Publish(context.Background(), "tokens.new", "x"))

		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("default prefix must be odinboard")
		}
	})
}

func TestPublish_CancelledContext(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)

		client, err := New(mockLogger, &config.NATSConfig{URL: url})
		require.NoError(t, err)
		defer client.nc.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = client.Publish(ctx, "tokens.new", "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClose_Success(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)
		mockLogger.On("Infof", "NATS connection closed gracefully", mock.Anything).Once()

		client, err := New(mockLogger, &config.NATSConfig{URL: url})
		require.NoError(t, err)

		err = client.Close()
		assert.NoError(t, err)

		// check what conn real close
		assert.False(t, client.Ready())
		assert.ErrorIs(t, client.Health(context.Background()), ErrNotConnected)

		mockLogger.AssertExpectations(t)
	})
}

func TestClose_Idempotent(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, s *server.Server, url string) {
		mockLogger := new(MockLogger)
		mockLogger.On("Infof", "NATS connection closed gracefully", mock.Anything).Once()

		client, err := New(mockLogger, &config.NATSConfig{URL: url})
		require.NoError(t, err)

		assert.NoError(t, client.Close())
		assert.NoError(t, client.Close())
		assert.NoError(t, client.Close())

		mockLogger.AssertNumberOfCalls(t, "Infof", 1) // close only once
	})
}

// ------------------------ tests in-memory nats connection ------------------------
