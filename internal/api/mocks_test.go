package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/service"
	"github.com/fithub/fithub-api/internal/service/attach"
)

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Register(ctx context.Context, phone, nickname, password string) (*service.AuthTokens, error) {
	args := m.Called(ctx, phone, nickname, password)
	tokens, _ := args.Get(0).(*service.AuthTokens)
	return tokens, args.Error(1)
}

func (m *mockUserService) Login(ctx context.Context, phone, password string) (*service.AuthTokens, error) {
	args := m.Called(ctx, phone, password)
	tokens, _ := args.Get(0).(*service.AuthTokens)
	return tokens, args.Error(1)
}

func (m *mockUserService) Refresh(ctx context.Context, refreshToken string) (*service.AuthTokens, error) {
	args := m.Called(ctx, refreshToken)
	tokens, _ := args.Get(0).(*service.AuthTokens)
	return tokens, args.Error(1)
}

func (m *mockUserService) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	args := m.Called(ctx, nickname)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserService) UpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *mockUserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *mockUserService) Exercises(ctx context.Context, userID uuid.UUID) ([]domain.UserExercise, error) {
	args := m.Called(ctx, userID)
	exercises, _ := args.Get(0).([]domain.UserExercise)
	return exercises, args.Error(1)
}

func (m *mockUserService) SetExercises(ctx context.Context, userID uuid.UUID, categoryIDs []int64) ([]domain.UserExercise, error) {
	args := m.Called(ctx, userID, categoryIDs)
	exercises, _ := args.Get(0).([]domain.UserExercise)
	return exercises, args.Error(1)
}

func (m *mockUserService) SetMainExercise(ctx context.Context, userID uuid.UUID, categoryID int64) ([]domain.UserExercise, error) {
	args := m.Called(ctx, userID, categoryID)
	exercises, _ := args.Get(0).([]domain.UserExercise)
	return exercises, args.Error(1)
}

type mockContentService struct{ mock.Mock }

func (m *mockContentService) CreateContent(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ContentKind,
	in service.ContentInput,
	uploads []attach.Upload,
) (*service.ContentResult, error) {
	args := m.Called(ctx, userID, kind, in, uploads)
	res, _ := args.Get(0).(*service.ContentResult)
	return res, args.Error(1)
}

func (m *mockContentService) GetContent(ctx context.Context, id, viewerID uuid.UUID) (*service.ContentView, error) {
	args := m.Called(ctx, id, viewerID)
	view, _ := args.Get(0).(*service.ContentView)
	return view, args.Error(1)
}

func (m *mockContentService) UpdateContent(
	ctx context.Context,
	userID, id uuid.UUID,
	in service.ContentInput,
	keepURLs []string,
	uploads []attach.Upload,
) (*service.ContentResult, error) {
	args := m.Called(ctx, userID, id, in, keepURLs, uploads)
	res, _ := args.Get(0).(*service.ContentResult)
	return res, args.Error(1)
}

func (m *mockContentService) DeleteContent(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockContentService) ListContent(ctx context.Context, viewerID uuid.UUID, q service.ContentQuery) (*service.ContentPage, error) {
	args := m.Called(ctx, viewerID, q)
	page, _ := args.Get(0).(*service.ContentPage)
	return page, args.Error(1)
}

func (m *mockContentService) ListSaved(ctx context.Context, userID uuid.UUID, q service.ContentQuery) (*service.ContentPage, error) {
	args := m.Called(ctx, userID, q)
	page, _ := args.Get(0).(*service.ContentPage)
	return page, args.Error(1)
}

func (m *mockContentService) Popular(
	ctx context.Context,
	viewerID uuid.UUID,
	kind domain.ContentKind,
	limit int,
) ([]*service.ContentView, error) {
	args := m.Called(ctx, viewerID, kind, limit)
	views, _ := args.Get(0).([]*service.ContentView)
	return views, args.Error(1)
}

func (m *mockContentService) ToggleLike(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, userID, contentID)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

func (m *mockContentService) ToggleSave(ctx context.Context, userID, contentID uuid.UUID) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, userID, contentID)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

func (m *mockContentService) Report(ctx context.Context, userID, contentID uuid.UUID) (*service.ReportResult, error) {
	args := m.Called(ctx, userID, contentID)
	res, _ := args.Get(0).(*service.ReportResult)
	return res, args.Error(1)
}

func (m *mockContentService) Categories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]domain.Category)
	return categories, args.Error(1)
}

type mockCommentService struct{ mock.Mock }

func (m *mockCommentService) Create(ctx context.Context, userID, contentID uuid.UUID, body string) (*domain.Comment, error) {
	args := m.Called(ctx, userID, contentID, body)
	c, _ := args.Get(0).(*domain.Comment)
	return c, args.Error(1)
}

func (m *mockCommentService) Update(ctx context.Context, userID, commentID uuid.UUID, body string) (*domain.Comment, error) {
	args := m.Called(ctx, userID, commentID, body)
	c, _ := args.Get(0).(*domain.Comment)
	return c, args.Error(1)
}

func (m *mockCommentService) Delete(ctx context.Context, userID, commentID uuid.UUID) error {
	return m.Called(ctx, userID, commentID).Error(0)
}

func (m *mockCommentService) List(
	ctx context.Context,
	viewerID, contentID, after uuid.UUID,
	limit int,
) (*service.CommentPage, error) {
	args := m.Called(ctx, viewerID, contentID, after, limit)
	page, _ := args.Get(0).(*service.CommentPage)
	return page, args.Error(1)
}

func (m *mockCommentService) ToggleLike(ctx context.Context, userID, commentID uuid.UUID) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, userID, commentID)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

// newRequest builds a request with chi path parameters and, when user is not
// uuid.Nil, an authenticated user.
func newRequest(method, target string, body io.Reader, user uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if user != uuid.Nil {
		ctx = shared.WithUserID(ctx, user)
	}
	return req.WithContext(ctx)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
