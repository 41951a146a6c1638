package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/account-validity/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListExpiringSoon(ctx context.Context, windowEndMs int64) ([]*models.ExpiringAccount, error) {
	args := m.Called(ctx, windowEndMs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExpiringAccount), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendRenewalEmailToUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSweeperService_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	renewAt := 7 * 24 * time.Hour
	windowEndMs := now.Add(renewAt).UnixMilli()

	accounts := []*models.ExpiringAccount{
		{UserID: "@alice:example.com", ExpirationTsMs: now.Add(24 * time.Hour).UnixMilli()},
		{UserID: "@bob:example.com", ExpirationTsMs: now.Add(-time.Hour).UnixMilli()},
		{UserID: "@carol:example.com", ExpirationTsMs: now.Add(48 * time.Hour).UnixMilli()},
	}

	tests := []struct {
		name       string
		setupMocks func(*MockRepository, *MockMailer)
	}{
		{
			name: "dispatches a renewal email per expiring account",
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("ListExpiringSoon", mock.Anything, windowEndMs).Return(accounts, nil).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@alice:example.com").Return(nil).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@bob:example.com").Return(nil).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@carol:example.com").Return(nil).Once()
			},
		},
		{
			name: "one failed dispatch does not stop the rest",
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("ListExpiringSoon", mock.Anything, windowEndMs).Return(accounts, nil).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@alice:example.com").Return(nil).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@bob:example.com").Return(errors.New("publish error")).Once()
				m.On("SendRenewalEmailToUser", mock.Anything, "@carol:example.com").Return(nil).Once()
			},
		},
		{
			name: "no expiring accounts",
			setupMocks: func(r *MockRepository, _ *MockMailer) {
				r.On("ListExpiringSoon", mock.Anything, windowEndMs).Return([]*models.ExpiringAccount{}, nil).Once()
			},
		},
		{
			name: "list failure skips the whole pass",
			setupMocks: func(r *MockRepository, _ *MockMailer) {
				r.On("ListExpiringSoon", mock.Anything, windowEndMs).Return(nil, errors.New("db error")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			mailer := new(MockMailer)
			service := NewSweeperService(repo, mailer, renewAt, time.Minute, newNoopLogger())

			tt.setupMocks(repo, mailer)

			service.Sweep(context.Background(), now)

			repo.AssertExpectations(t)
			mailer.AssertExpectations(t)
		})
	}
}

func TestSweeperService_SweepCancelledContext(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	renewAt := 7 * 24 * time.Hour

	repo := new(MockRepository)
	mailer := new(MockMailer)
	service := NewSweeperService(repo, mailer, renewAt, time.Minute, newNoopLogger())

	accounts := []*models.ExpiringAccount{
		{UserID: "@alice:example.com", ExpirationTsMs: now.Add(time.Hour).UnixMilli()},
	}
	repo.On("ListExpiringSoon", mock.Anything, mock.Anything).Return(accounts, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service.Sweep(ctx, now)

	repo.AssertExpectations(t)
	mailer.AssertNotCalled(t, "SendRenewalEmailToUser", mock.Anything, mock.Anything)
}

func TestSweeperService_RunStopsOnContextDone(t *testing.T) {
	repo := new(MockRepository)
	mailer := new(MockMailer)
	service := NewSweeperService(repo, mailer, time.Hour, 50*time.Millisecond, newNoopLogger())

	repo.On("ListExpiringSoon", mock.Anything, mock.Anything).Return([]*models.ExpiringAccount{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		service.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	// Первый проход выполняется сразу при старте, до первого тика.
	assert.GreaterOrEqual(t, len(repo.Calls), 1)
}
