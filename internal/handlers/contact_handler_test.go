package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/calvora/sales-gateway/internal/auth"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockContactService struct {
	mock.Mock
}

func (m *MockContactService) Create(ctx context.Context, p model.ContactCreateRequest) (*model.Contact, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactService) Get(ctx context.Context, userID, contactID int64) (*model.Contact, error) {
	args := m.Called(ctx, userID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactService) Update(ctx context.Context, userID int64, contact *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, userID, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactService) List(ctx context.Context, userID int64, f model.ContactFilter) ([]*model.Contact, int64, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Contact), args.Get(1).(int64), args.Error(2)
}

func int64Ptr(v int64) *int64 { return &v }

func authedContext(method, path string, body []byte, userID int64) *xhttp.RequestCtx {
	ctx := setupTestContext(method, path, body)
	auth.WithIdentity(ctx, auth.Claims{UserID: userID})
	return ctx
}

func TestContactHandler_CreateContact(t *testing.T) {
	t.Run("creates for authenticated user", func(t *testing.T) {
		svc := new(MockContactService)
		handler := NewContactHandler(svc)

		expected := &model.Contact{ID: 5, UserID: int64Ptr(10), Name: "Dana Reed", Phone: "+15551234567"}
		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.ContactCreateRequest) bool {
			return p.UserID == 10 && p.Name == "Dana Reed" && p.Phone == "+15551234567"
		})).Return(expected, nil)

		body, _ := json.Marshal(contactRequest{Name: "Dana Reed", Phone: "+15551234567"})
		ctx := authedContext("POST", "/api/v1/contacts", body, 10)
		handler.CreateContact(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Contact
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(5), response.ID)
		svc.AssertExpectations(t)
	})

	t.Run("rejects unauthenticated", func(t *testing.T) {
		svc := new(MockContactService)
		handler := NewContactHandler(svc)

		ctx := setupTestContext("POST", "/api/v1/contacts", []byte(`{"name":"x","phone":"+1"}`))
		handler.CreateContact(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestContactHandler_GetContact(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc := new(MockContactService)
		handler := NewContactHandler(svc)

		svc.On("Get", mock.Anything, int64(10), int64(77)).Return(nil, services.ErrContactNotFound)

		ctx := authedContext("GET", "/api/v1/contacts/77", nil, 10)
		ctx.SetUserValue("id", "77")
		handler.GetContact(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockContactService)
		handler := NewContactHandler(svc)

		ctx := authedContext("GET", "/api/v1/contacts/abc", nil, 10)
		ctx.SetUserValue("id", "abc")
		handler.GetContact(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestContactHandler_ListContacts(t *testing.T) {
	svc := new(MockContactService)
	handler := NewContactHandler(svc)

	items := []*model.Contact{{ID: 1, UserID: int64Ptr(10), Name: "A"}, {ID: 2, UserID: int64Ptr(10), Name: "B"}}
	svc.On("List", mock.Anything, int64(10), mock.MatchedBy(func(f model.ContactFilter) bool {
		return f.Status != nil && *f.Status == model.ContactStatusReady && f.Limit == 20
	})).Return(items, int64(2), nil)

	ctx := authedContext("GET", "/api/v1/contacts?status=ready&limit=20", nil, 10)
	handler.ListContacts(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response contactListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Len(t, response.Items, 2)
	assert.Equal(t, int64(2), response.Total)
	svc.AssertExpectations(t)
}
