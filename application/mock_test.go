package application

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, conn ConnectionParams, msg Message) error {
	args := m.Called(ctx, conn, msg)

	var err error
	if errInt := args.Get(0); errInt != nil {
		err = errInt.(error)
	}
	return err
}

func (m *MockPublisher) Status() MQTTStatus {
	args := m.Called()
	return args.Get(0).(MQTTStatus)
}

var _ Publisher = &MockPublisher{}
