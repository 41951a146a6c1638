package renew

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/account-validity/internal/models"
)

// MockService реализует интерфейс renew.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ConsumeToken(ctx context.Context, token string) (models.RenewalResult, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.RenewalResult), args.Error(1)
}

func TestRenewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	const expirationTs int64 = 1735689600000 // 01-01-2025

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное продление по токену",
			url:  "/renew?token=goodtoken",
			setupMock: func(m *MockService) {
				m.On("ConsumeToken", mock.Anything, "goodtoken").Return(models.RenewalResult{
					Status:         models.StatusRenewed,
					UserID:         "@alice:example.com",
					ExpirationTsMs: expirationTs,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "successfully renewed and is valid until 01-01-2025",
		},
		{
			name: "повторное предъявление того же токена",
			url:  "/renew?token=goodtoken",
			setupMock: func(m *MockService) {
				m.On("ConsumeToken", mock.Anything, "goodtoken").Return(models.RenewalResult{
					Status:         models.StatusAlreadyRenewed,
					UserID:         "@alice:example.com",
					ExpirationTsMs: expirationTs,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "already been renewed with this link",
		},
		{
			name: "невалидный токен",
			url:  "/renew?token=badtoken",
			setupMock: func(m *MockService) {
				m.On("ConsumeToken", mock.Anything, "badtoken").Return(models.RenewalResult{
					Status: models.StatusInvalid,
				}, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "Invalid renewal token.",
		},
		{
			name:           "отсутствует токен в запросе",
			url:            "/renew",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"missing renewal token"}`,
		},
		{
			name: "ошибка хранилища",
			url:  "/renew?token=goodtoken",
			setupMock: func(m *MockService) {
				m.On("ConsumeToken", mock.Anything, "goodtoken").
					Return(models.RenewalResult{}, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not process renewal token"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService, "Matrix")

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
