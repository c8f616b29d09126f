package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvector-go/internal/model"
	"docvector-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockDocumentService struct{ mock.Mock }

func (m *mockDocumentService) Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.UploadResult)
	return res, args.Error(1)
}

func (m *mockDocumentService) List(ctx context.Context) ([]model.DocumentSummary, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]model.DocumentSummary)
	return res, args.Error(1)
}

func (m *mockDocumentService) Delete(ctx context.Context, docID string) (int, error) {
	args := m.Called(ctx, docID)
	return args.Int(0), args.Error(1)
}

type mockSearchService struct{ mock.Mock }

func (m *mockSearchService) Search(ctx context.Context, query string, k int, filter map[string]string) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, k, filter)
	res, _ := args.Get(0).([]model.SearchResult)
	return res, args.Error(1)
}

func (m *mockSearchService) Similar(ctx context.Context, docID string, k int) ([]model.SearchResult, error) {
	args := m.Called(ctx, docID, k)
	res, _ := args.Get(0).([]model.SearchResult)
	return res, args.Error(1)
}

func (m *mockSearchService) Stats(ctx context.Context) (*model.Stats, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*model.Stats)
	return res, args.Error(1)
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if fileName != "-" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func newDocumentRouter(svc service.DocumentService, maxFileSize int64) *gin.Engine {
	h := NewDocumentHandler(svc, maxFileSize)
	r := gin.New()
	r.POST("/api/documents", h.Upload)
	r.GET("/api/documents", h.List)
	r.DELETE("/api/documents/:id", h.Delete)
	return r
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.NewError(model.ErrUnsupportedFileType, "x"), http.StatusUnsupportedMediaType},
		{model.NewError(model.ErrFileTooLarge, "x"), http.StatusRequestEntityTooLarge},
		{model.NewError(model.ErrValidation, "x"), http.StatusBadRequest},
		{model.NewError(model.ErrLoad, "x"), http.StatusBadRequest},
		{model.NewError(model.ErrNotFound, "x"), http.StatusNotFound},
		{model.NewError(model.ErrEmbeddingAPI, "x"), http.StatusBadGateway},
		{model.NewError(model.ErrVectorStore, "x"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}

func TestUploadSuccess(t *testing.T) {
	svc := &mockDocumentService{}
	svc.On("Upload", mock.Anything, service.UploadRequest{
		FileName: "doc.txt",
		Content:  []byte("hello"),
		Tags:     map[string]string{"team": "search"},
	}).Return(&service.UploadResult{DocID: "id-1", FileName: "doc.txt", FileType: "txt", ChunksCreated: 1}, nil)

	body, ct := multipartBody(t, "doc.txt", []byte("hello"), map[string]string{"tags": `{"team":"search"}`})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "id-1", out["doc_id"])
	assert.Equal(t, "txt", out["file_type"])
	assert.Equal(t, float64(1), out["chunks_created"])
	svc.AssertExpectations(t)
}

func TestUploadMissingFile(t *testing.T) {
	svc := &mockDocumentService{}
	body, ct := multipartBody(t, "-", nil, map[string]string{"other": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	out := decode(t, w)
	assert.Equal(t, "validation_error", out["error"])
	assert.Equal(t, "No file provided", out["message"])
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadBadTags(t *testing.T) {
	svc := &mockDocumentService{}
	body, ct := multipartBody(t, "doc.txt", []byte("hello"), map[string]string{"tags": "not-json"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadTooLarge(t *testing.T) {
	svc := &mockDocumentService{}
	body, ct := multipartBody(t, "doc.txt", []byte(strings.Repeat("a", 100)), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	newDocumentRouter(svc, 10).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "file_too_large", decode(t, w)["error"])
}

func TestUploadServiceErrors(t *testing.T) {
	svc := &mockDocumentService{}
	svc.On("Upload", mock.Anything, mock.Anything).
		Return(nil, model.NewError(model.ErrUnsupportedFileType, "File type not allowed. Allowed types: txt")).Once()

	body, ct := multipartBody(t, "tool.exe", []byte("MZ"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	out := decode(t, w)
	assert.Equal(t, float64(http.StatusUnsupportedMediaType), out["code"])
	assert.Equal(t, "unsupported_file_type", out["error"])
	assert.Equal(t, "File type not allowed. Allowed types: txt", out["message"])
}

func TestInternalErrorHidesDetails(t *testing.T) {
	svc := &mockDocumentService{}
	svc.On("List", mock.Anything).Return(nil, errors.New("secret connection string"))

	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := decode(t, w)
	assert.Equal(t, "internal_error", out["error"])
	assert.Equal(t, "Internal server error", out["message"])
}

func TestListDocuments(t *testing.T) {
	svc := &mockDocumentService{}
	svc.On("List", mock.Anything).Return([]model.DocumentSummary{{DocID: "a", FileName: "a.txt", ChunkCount: 2}}, nil)

	w := httptest.NewRecorder()
	newDocumentRouter(svc, 1024).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, float64(1), out["total"])
	docs := out["documents"].([]interface{})
	assert.Equal(t, "a", docs[0].(map[string]interface{})["doc_id"])
}

func TestDeleteDocument(t *testing.T) {
	svc := &mockDocumentService{}
	svc.On("Delete", mock.Anything, "a").Return(3, nil).Once()
	svc.On("Delete", mock.Anything, "missing").Return(0, model.NewError(model.ErrNotFound, "Document not found")).Once()
	r := newDocumentRouter(svc, 1024)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/documents/a", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Document not found", decode(t, w)["message"])
}

func newSearchRouter(svc service.SearchService) *gin.Engine {
	h := NewSearchHandler(svc)
	r := gin.New()
	r.POST("/api/search", h.Search)
	r.POST("/api/search/similar", h.Similar)
	r.GET("/api/search/stats", h.Stats)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearch(t *testing.T) {
	svc := &mockSearchService{}
	svc.On("Search", mock.Anything, "fox", 2, map[string]string{"file_type": "txt", "year": "2024"}).
		Return([]model.SearchResult{{Content: "quick fox", SimilarityScore: 0.9}}, nil)

	w := postJSON(newSearchRouter(svc), "/api/search", `{"query":"fox","k":2,"filter":{"file_type":"txt","year":2024}}`)

	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "fox", out["query"])
	assert.Equal(t, float64(1), out["total_results"])
	svc.AssertExpectations(t)
}

func TestSearchDefaultK(t *testing.T) {
	svc := &mockSearchService{}
	svc.On("Search", mock.Anything, "fox", 0, map[string]string(nil)).Return([]model.SearchResult{}, nil)

	w := postJSON(newSearchRouter(svc), "/api/search", `{"query":"fox"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSearchRejectsBadInput(t *testing.T) {
	svc := &mockSearchService{}
	r := newSearchRouter(svc)

	for _, body := range []string{
		`{"query":"fox","k":0}`,
		`{"query":"fox","k":-3}`,
		`{"query":"fox","filter":{"a":{"nested":1}}}`,
		`not json`,
	} {
		w := postJSON(r, "/api/search", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "validation_error", decode(t, w)["error"], body)
	}
	svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSimilar(t *testing.T) {
	svc := &mockSearchService{}
	svc.On("Similar", mock.Anything, "doc-1", 3).Return([]model.SearchResult{{Content: "x"}, {Content: "y"}}, nil)
	svc.On("Similar", mock.Anything, "missing", 0).Return(nil, model.NewError(model.ErrNotFound, "Document not found"))
	r := newSearchRouter(svc)

	w := postJSON(r, "/api/search/similar", `{"doc_id":"doc-1","k":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "doc-1", out["reference_doc_id"])
	assert.Len(t, out["similar_documents"], 2)

	w = postJSON(r, "/api/search/similar", `{"doc_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	svc := &mockSearchService{}
	svc.On("Stats", mock.Anything).Return(&model.Stats{TotalVectors: 4, Dimension: 8, IndexName: "idx", Provider: "memory"}, nil)

	w := httptest.NewRecorder()
	newSearchRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.Equal(t, float64(4), stats["total_vectors"])
	assert.Equal(t, "memory", stats["provider"])
}

func TestHealthAndNotFound(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health)
	r.NoRoute(NotFound)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	out := decode(t, w)
	assert.Equal(t, "not_found", out["error"])
	assert.Equal(t, "Not found", out["message"])
}
