package mocks

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTracking(ctx context.Context, in models.TrackingCreateInput) (*models.Tracking, error) {
	args := m.Called(ctx, in)
	t, _ := args.Get(0).(*models.Tracking)
	return t, args.Error(1)
}

func (m *MockRepository) ListTrackings(ctx context.Context) ([]*models.Tracking, error) {
	args := m.Called(ctx)
	ts, _ := args.Get(0).([]*models.Tracking)
	return ts, args.Error(1)
}

func (m *MockRepository) GetTrackingByCode(ctx context.Context, code string) (*models.Tracking, error) {
	args := m.Called(ctx, code)
	t, _ := args.Get(0).(*models.Tracking)
	return t, args.Error(1)
}

func (m *MockRepository) GetTrackingByID(ctx context.Context, id uint64) (*models.Tracking, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Tracking)
	return t, args.Error(1)
}

func (m *MockRepository) UpdateTracking(ctx context.Context, code string, f models.TrackingFields) (*models.Tracking, error) {
	args := m.Called(ctx, code, f)
	t, _ := args.Get(0).(*models.Tracking)
	return t, args.Error(1)
}

func (m *MockRepository) DeleteTracking(ctx context.Context, id uint64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ListHistory(ctx context.Context, trackingID uint64) ([]*models.HistoryEntry, error) {
	args := m.Called(ctx, trackingID)
	h, _ := args.Get(0).([]*models.HistoryEntry)
	return h, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
