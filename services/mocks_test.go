package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/helioslabs/mcpgate/domain"
)

// --- MockTokenRecordRepository ---

type MockTokenRecordRepository struct {
	mock.Mock
}

func (m *MockTokenRecordRepository) CreateRecord(ctx context.Context, rec *domain.TokenRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockTokenRecordRepository) GetRecord(ctx context.Context, jti string) (*domain.TokenRecord, error) {
	args := m.Called(ctx, jti)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenRecord), args.Error(1)
}

func (m *MockTokenRecordRepository) TouchRecord(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

func (m *MockTokenRecordRepository) RevokeRecord(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

func (m *MockTokenRecordRepository) ListRecordsBySubject(ctx context.Context, subjectID string) ([]*domain.TokenRecord, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TokenRecord), args.Error(1)
}

func (m *MockTokenRecordRepository) DeleteRecord(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

// --- MockProviderRepository ---

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) CreateProvider(ctx context.Context, cred *domain.ProviderCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockProviderRepository) GetProviderByServerID(ctx context.Context, serverID string) (*domain.ProviderCredential, error) {
	args := m.Called(ctx, serverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderCredential), args.Error(1)
}

func (m *MockProviderRepository) ListProviders(ctx context.Context) ([]*domain.ProviderCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ProviderCredential), args.Error(1)
}

// --- MockUserTokenRepository ---

type MockUserTokenRepository struct {
	mock.Mock
}

func (m *MockUserTokenRepository) UpsertUserToken(ctx context.Context, tok *domain.UserToken) error {
	args := m.Called(ctx, tok)
	return args.Error(0)
}

func (m *MockUserTokenRepository) GetUserToken(ctx context.Context, userID, serverID string) (*domain.UserToken, error) {
	args := m.Called(ctx, userID, serverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserToken), args.Error(1)
}

func (m *MockUserTokenRepository) ListUserTokens(ctx context.Context, userID string) ([]*domain.UserToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UserToken), args.Error(1)
}

func (m *MockUserTokenRepository) DeleteUserToken(ctx context.Context, userID, serverID string) error {
	args := m.Called(ctx, userID, serverID)
	return args.Error(0)
}
