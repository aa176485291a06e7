package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/service"
	"github.com/fithub/fithub-api/internal/service/attach"
	"github.com/fithub/fithub-api/internal/store"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type formImage struct {
	name    string
	payload []byte
}

// multipartBody builds a content request with a "data" part and image parts.
func multipartBody(t *testing.T, data interface{}, images ...formImage) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="data"`)
		h.Set("Content-Type", "application/json")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		require.NoError(t, json.NewEncoder(part).Encode(data))
	}
	for _, img := range images {
		part, err := mw.CreateFormFile("images", img.name)
		require.NoError(t, err)
		_, err = part.Write(img.payload)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func sampleContent(kind domain.ContentKind, owner uuid.UUID) *domain.Content {
	return &domain.Content{
		ID:         uuid.New(),
		Kind:       kind,
		UserID:     owner,
		CategoryID: 1,
		Body:       "deadlift day",
	}
}

func TestContentHandler_CreateMultipart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contents := new(mockContentService)
	created := sampleContent(domain.KindRecord, userID)
	contents.On("CreateContent", mock.Anything, userID, domain.KindRecord,
		service.ContentInput{CategoryID: 1, Body: "deadlift day", HashTags: []string{"legs"}},
		mock.MatchedBy(func(ups []attach.Upload) bool {
			return len(ups) == 2 &&
				ups[0].Filename == "a.png" && ups[0].ContentType == "image/png" &&
				ups[1].Filename == "b.png"
		}),
	).Return(&service.ContentResult{Content: created, FailedUploads: []string{"b.png"}}, nil)
	h := NewContentHandler(contents, logger.Discard())

	body, contentType := multipartBody(t,
		ContentRequest{CategoryID: 1, Body: "deadlift day", HashTags: []string{"legs"}},
		formImage{"a.png", pngHeader}, formImage{"b.png", pngHeader})
	req := newRequest(http.MethodPost, "/api/records", body, userID, map[string]string{"kind": "records"})
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp service.ContentResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, created.ID, resp.Content.ID)
	assert.Equal(t, []string{"b.png"}, resp.FailedUploads)
	contents.AssertExpectations(t)
}

func TestContentHandler_CreateJSON(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contents := new(mockContentService)
	contents.On("CreateContent", mock.Anything, userID, domain.KindArticle, mock.Anything, []attach.Upload(nil)).
		Return(&service.ContentResult{Content: sampleContent(domain.KindArticle, userID)}, nil)
	h := NewContentHandler(contents, logger.Discard())

	req := newRequest(http.MethodPost, "/api/articles",
		jsonBody(t, ContentRequest{CategoryID: 1, Title: "Form check", Body: "keep the bar close"}),
		userID, map[string]string{"kind": "articles"})
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	contents.AssertExpectations(t)
}

func TestContentHandler_CreateRejects(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	valid := ContentRequest{CategoryID: 1, Body: "deadlift day"}
	tooMany := make([]formImage, MaxImages+1)
	for i := range tooMany {
		tooMany[i] = formImage{"a.png", pngHeader}
	}

	tests := []struct {
		name       string
		data       interface{}
		images     []formImage
		kind       string
		user       uuid.UUID
		wantStatus int
		wantMsg    string
	}{
		{"anonymous", valid, nil, "records", uuid.Nil, http.StatusUnauthorized, "Unauthorized"},
		{"unknown kind", valid, nil, "videos", userID, http.StatusBadRequest, "Invalid kind: must be articles or records"},
		{"missing data part", nil, []formImage{{"a.png", pngHeader}}, "records", userID, http.StatusBadRequest, "Invalid data: part is required"},
		{"missing body", ContentRequest{CategoryID: 1}, nil, "records", userID, http.StatusBadRequest, "Invalid body: required field"},
		{"not an image", valid, []formImage{{"a.txt", []byte("hello world")}}, "records", userID, http.StatusBadRequest, `Invalid images: "a.txt" is not a supported image`},
		{"empty image", valid, []formImage{{"a.png", nil}}, "records", userID, http.StatusBadRequest, `Invalid images: "a.png" is empty`},
		{"too many images", valid, tooMany, "records", userID, http.StatusBadRequest, "Invalid images: at most 10 images allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := new(mockContentService)
			h := NewContentHandler(contents, logger.Discard())

			body, contentType := multipartBody(t, tt.data, tt.images...)
			req := newRequest(http.MethodPost, "/api/"+tt.kind, body, tt.user, map[string]string{"kind": tt.kind})
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			h.Create(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec).Error)
			contents.AssertNotCalled(t, "CreateContent")
		})
	}
}

func TestContentHandler_Get(t *testing.T) {
	t.Parallel()

	record := sampleContent(domain.KindRecord, uuid.New())
	record.Assets = []*domain.Asset{{
		ID: uuid.New(), ContentID: record.ID, StorageKey: "record/a_run.png",
		URL: "https://cdn/record/a_run.png", ThumbnailURL: "https://cdn/record/a_run.png_thumb.jpg",
	}}
	contents := new(mockContentService)
	contents.On("GetContent", mock.Anything, record.ID, uuid.Nil).
		Return(&service.ContentView{Content: record}, nil)
	missing := uuid.New()
	contents.On("GetContent", mock.Anything, missing, uuid.Nil).Return(nil, store.ErrContentNotFound)
	h := NewContentHandler(contents, logger.Discard())

	get := func(kind string, id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Get(rec, newRequest(http.MethodGet, "/api/"+kind+"/"+id, nil, uuid.Nil,
			map[string]string{"kind": kind, "id": id}))
		return rec
	}

	rec := get("records", record.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"thumbnail_url":"https://cdn/record/a_run.png_thumb.jpg"`)
	assert.NotContains(t, body, "storage_key")
	var view service.ContentView
	require.NoError(t, json.NewDecoder(strings.NewReader(body)).Decode(&view))
	assert.Equal(t, record.ID, view.ID)
	require.Len(t, view.Assets, 1)
	assert.Equal(t, record.Assets[0].ThumbnailURL, view.Assets[0].ThumbnailURL)

	assert.Equal(t, http.StatusNotFound, get("articles", record.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get("records", missing.String()).Code)
	assert.Equal(t, http.StatusBadRequest, get("records", "not-a-uuid").Code)
}

func TestContentHandler_Update(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	record := sampleContent(domain.KindRecord, userID)
	contents := new(mockContentService)
	contents.On("UpdateContent", mock.Anything, userID, record.ID,
		service.ContentInput{CategoryID: 2, Body: "squat day"},
		[]string{"https://cdn/a.png"},
		mock.MatchedBy(func(ups []attach.Upload) bool { return len(ups) == 1 }),
	).Return(&service.ContentResult{Content: record}, nil)
	h := NewContentHandler(contents, logger.Discard())

	body, contentType := multipartBody(t,
		ContentRequest{CategoryID: 2, Body: "squat day", KeepImages: []string{"https://cdn/a.png"}},
		formImage{"c.png", pngHeader})
	req := newRequest(http.MethodPut, "/api/records/"+record.ID.String(), body, userID,
		map[string]string{"kind": "records", "id": record.ID.String()})
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.Update(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	contents.AssertExpectations(t)
}

func TestContentHandler_UpdateImageLimit(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	keep := make([]string, MaxImages)
	for i := range keep {
		keep[i] = "https://cdn/" + uuid.NewString() + ".png"
	}
	contents := new(mockContentService)
	h := NewContentHandler(contents, logger.Discard())

	id := uuid.NewString()
	body, contentType := multipartBody(t,
		ContentRequest{CategoryID: 1, Body: "squat day", KeepImages: keep},
		formImage{"c.png", pngHeader})
	req := newRequest(http.MethodPut, "/api/records/"+id, body, userID,
		map[string]string{"kind": "records", "id": id})
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.Update(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	contents.AssertNotCalled(t, "UpdateContent")
}

func TestContentHandler_Delete(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	mine, theirs := uuid.New(), uuid.New()
	contents := new(mockContentService)
	contents.On("DeleteContent", mock.Anything, userID, mine).Return(nil)
	contents.On("DeleteContent", mock.Anything, userID, theirs).Return(service.ErrNotOwned)
	h := NewContentHandler(contents, logger.Discard())

	del := func(id uuid.UUID) int {
		rec := httptest.NewRecorder()
		h.Delete(rec, newRequest(http.MethodDelete, "/api/records/"+id.String(), nil, userID,
			map[string]string{"kind": "records", "id": id.String()}))
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, del(mine))
	assert.Equal(t, http.StatusForbidden, del(theirs))
}

func TestContentHandler_List(t *testing.T) {
	t.Parallel()

	author, last := uuid.New(), uuid.New()
	next := uuid.New()
	contents := new(mockContentService)
	contents.On("ListContent", mock.Anything, uuid.Nil, service.ContentQuery{
		Kind:       domain.KindArticle,
		CategoryID: 3,
		AuthorID:   author,
		Sort:       store.SortPopular,
		After:      last,
		Limit:      5,
	}).Return(&service.ContentPage{Items: []*service.ContentView{}, Next: &next}, nil)
	h := NewContentHandler(contents, logger.Discard())

	target := "/api/articles?category=3&sort=popular&limit=5&author=" + author.String() + "&last=" + last.String()
	rec := httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, target, nil, uuid.Nil, map[string]string{"kind": "articles"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var page service.ContentPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.NotNil(t, page.Next)
	assert.Equal(t, next, *page.Next)
	contents.AssertExpectations(t)

	for _, bad := range []string{"?sort=oldest", "?limit=-1", "?category=abc", "?last=xyz"} {
		rec = httptest.NewRecorder()
		h.List(rec, newRequest(http.MethodGet, "/api/articles"+bad, nil, uuid.Nil, map[string]string{"kind": "articles"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestContentHandler_ListSaved(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contents := new(mockContentService)
	contents.On("ListSaved", mock.Anything, userID, service.ContentQuery{Kind: domain.KindRecord, Limit: 2}).
		Return(&service.ContentPage{Items: []*service.ContentView{}}, nil)
	h := NewContentHandler(contents, logger.Discard())

	rec := httptest.NewRecorder()
	h.ListSaved(rec, newRequest(http.MethodGet, "/api/users/me/saved?kind=record&limit=2", nil, userID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	contents.AssertExpectations(t)

	rec = httptest.NewRecorder()
	h.ListSaved(rec, newRequest(http.MethodGet, "/api/users/me/saved?kind=video", nil, userID, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentHandler_Popular(t *testing.T) {
	t.Parallel()

	contents := new(mockContentService)
	contents.On("Popular", mock.Anything, uuid.Nil, domain.KindRecord, 3).
		Return([]*service.ContentView{{Content: sampleContent(domain.KindRecord, uuid.New())}}, nil)
	h := NewContentHandler(contents, logger.Discard())

	rec := httptest.NewRecorder()
	h.Popular(rec, newRequest(http.MethodGet, "/api/records/popular?limit=3", nil, uuid.Nil, map[string]string{"kind": "records"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []service.ContentView `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 1)
}

func TestContentHandler_LikeAndSave(t *testing.T) {
	t.Parallel()

	userID, contentID := uuid.New(), uuid.New()
	contents := new(mockContentService)
	contents.On("ToggleLike", mock.Anything, userID, contentID).Return(domain.ToggleOutcome{Active: true, Count: 4}, nil)
	contents.On("ToggleSave", mock.Anything, userID, contentID).Return(domain.ToggleOutcome{}, store.ErrContentNotFound)
	h := NewContentHandler(contents, logger.Discard())
	params := map[string]string{"kind": "articles", "id": contentID.String()}

	rec := httptest.NewRecorder()
	h.Like(rec, newRequest(http.MethodPost, "/like", nil, userID, params))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ToggleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ToggleResponse{Active: true, Count: 4}, resp)

	rec = httptest.NewRecorder()
	h.Save(rec, newRequest(http.MethodPost, "/save", nil, userID, params))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Like(rec, newRequest(http.MethodPost, "/like", nil, uuid.Nil, params))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContentHandler_Categories(t *testing.T) {
	t.Parallel()

	contents := new(mockContentService)
	contents.On("Categories", mock.Anything).Return([]domain.Category{{ID: 1, Name: "Chest"}}, nil)
	h := NewContentHandler(contents, logger.Discard())

	rec := httptest.NewRecorder()
	h.Categories(rec, newRequest(http.MethodGet, "/api/categories", nil, uuid.Nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Chest"))
}

func TestContentHandler_Report(t *testing.T) {
	t.Parallel()

	userID, contentID, ownID := uuid.New(), uuid.New(), uuid.New()
	reportedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	contents := new(mockContentService)
	contents.On("Report", mock.Anything, userID, contentID).
		Return(&service.ReportResult{ContentID: contentID, ReportedAt: reportedAt}, nil).Once()
	contents.On("Report", mock.Anything, userID, contentID).Return(nil, store.ErrAlreadyReported).Once()
	contents.On("Report", mock.Anything, userID, ownID).Return(nil, service.ErrReportOwnContent)
	h := NewContentHandler(contents, logger.Discard())
	params := map[string]string{"kind": "records", "id": contentID.String()}

	rec := httptest.NewRecorder()
	h.Report(rec, newRequest(http.MethodPost, "/report", nil, userID, params))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), contentID.String())

	rec = httptest.NewRecorder()
	h.Report(rec, newRequest(http.MethodPost, "/report", nil, userID, params))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Content already reported")

	rec = httptest.NewRecorder()
	h.Report(rec, newRequest(http.MethodPost, "/report", nil, userID,
		map[string]string{"kind": "records", "id": ownID.String()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Report(rec, newRequest(http.MethodPost, "/report", nil, uuid.Nil, params))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	contents.AssertExpectations(t)
}
