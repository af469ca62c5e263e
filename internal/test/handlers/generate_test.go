package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/gemini"
	"renderiq-backend/internal/handlers"
	"renderiq-backend/internal/middleware"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/services"
	"renderiq-backend/internal/storage"
	"renderiq-backend/internal/veo"
)

type fakeLedger struct {
	balance int
}

func (f *fakeLedger) Balance(_ context.Context, _ uuid.UUID) (*models.CreditAccount, error) {
	return &models.CreditAccount{Balance: f.balance}, nil
}

func (f *fakeLedger) Debit(_ context.Context, _ uuid.UUID, amount int, _ string, _ uuid.UUID, _ string) error {
	if f.balance < amount {
		return billing.ErrInsufficientCredits
	}
	f.balance -= amount
	return nil
}

func (f *fakeLedger) Credit(_ context.Context, _ uuid.UUID, amount int, _ models.TransactionType, _ string, _ uuid.UUID, _ string) error {
	f.balance += amount
	return nil
}

type fakeVideos struct {
	err     error
	lastReq veo.VideoRequest
}

func (f *fakeVideos) GenerateVideo(_ context.Context, req veo.VideoRequest) (*veo.VideoResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &veo.VideoResult{VideoData: []byte("mp4"), ProcessingTime: 9000}, nil
}

func (f *fakeVideos) RetryWithBackoff(fn func() error, _ int) error { return fn() }

type fakeImages struct{}

func (f *fakeImages) GenerateImage(_ context.Context, _ gemini.ImageRequest) (*gemini.ImageResult, error) {
	return &gemini.ImageResult{Data: []byte("png"), MIMEType: "image/png", ProcessingTime: 800}, nil
}

func (f *fakeImages) RetryWithBackoff(fn func() error, _ int) error { return fn() }

type fakeArtifacts struct{}

func (f *fakeArtifacts) UploadBytes(_ context.Context, _ []byte, params storage.UploadParams, _ bool) (*services.StoredArtifact, error) {
	key := storage.ObjectKey(params)
	return &services.StoredArtifact{ID: uuid.New(), Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (f *fakeArtifacts) FetchAndStore(ctx context.Context, _ string, params storage.UploadParams, isPublic bool) (*services.StoredArtifact, error) {
	return f.UploadBytes(ctx, nil, params, isPublic)
}

func (f *fakeArtifacts) Fetch(_ context.Context, _ string) ([]byte, error) {
	return []byte("bytes"), nil
}

type fakeStore struct{}

func (f *fakeStore) CreateRender(_ context.Context, _ *models.Render) error { return nil }
func (f *fakeStore) UpdateRenderStatus(_ context.Context, _ uuid.UUID, _ models.RenderStatus) error {
	return nil
}
func (f *fakeStore) UpdateRenderOutput(_ context.Context, _ uuid.UUID, _, _ string, _ int) error {
	return nil
}
func (f *fakeStore) UpdateRenderError(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (f *fakeStore) UpdateRenderSource(_ context.Context, _ uuid.UUID, _, _ string, _ uuid.UUID) error {
	return nil
}
func (f *fakeStore) GetRender(_ context.Context, renderID, _ uuid.UUID) (*models.Render, error) {
	return nil, errors.New("not found")
}
func (f *fakeStore) NextChainPosition(_ context.Context, _ uuid.UUID) (int, error) { return 1, nil }
func (f *fakeStore) AddToGallery(_ context.Context, _, _ uuid.UUID, _ bool) error  { return nil }

type fakeTiers struct{}

func (f *fakeTiers) IsPro(_ context.Context, _ uuid.UUID) (bool, error) { return false, nil }

type fakeEvents struct{}

func (f *fakeEvents) PublishRenderEvent(_ uuid.UUID, _ string, _ map[string]interface{}) error {
	return nil
}

func newTestRouter(ledger *fakeLedger, videos *fakeVideos, authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	service := services.NewRenderService(
		ledger, &fakeImages{}, videos, &fakeArtifacts{}, &fakeStore{},
		&fakeTiers{}, &fakeEvents{}, slog.New(slog.DiscardHandler))

	videoHandler := handlers.NewVideoHandler(service)
	rendersHandler := handlers.NewRendersHandler(service, nil)

	router := gin.New()
	if authenticated {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, uuid.NewString())
		})
	}
	router.GET("/health", handlers.HealthCheck)
	router.POST("/api/v1/video", videoHandler.GenerateVideo)
	router.POST("/api/v1/renders", rendersHandler.GenerateImage)
	return router
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func multipartBodyWithFiles(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postVideo(t *testing.T, router *gin.Engine, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return postVideoWithFiles(t, router, fields, nil)
}

func postVideoWithFiles(t *testing.T, router *gin.Engine, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBodyWithFiles(t, fields, files)
	req, _ := http.NewRequest("POST", "/api/v1/video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 0}, &fakeVideos{}, false)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestGenerateVideo_Unauthenticated(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 1000}, &fakeVideos{}, false)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
		"duration":  "8",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateVideo_MissingFields(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 1000}, &fakeVideos{}, true)

	w := postVideo(t, router, map[string]string{
		"projectId": uuid.NewString(),
		"duration":  "8",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Missing required fields", resp.Error)
}

func TestGenerateVideo_InvalidDuration(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 1000}, &fakeVideos{}, true)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
		"duration":  "5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Duration must be 4, 6, or 8 seconds", resp.Error)
}

func TestGenerateVideo_InsufficientCredits(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 10}, &fakeVideos{}, true)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
		"duration":  "8",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp models.InsufficientCreditsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Insufficient credits", resp.Error)
	assert.Equal(t, 128, resp.Required)
	assert.Equal(t, 10, resp.Available)
}

func TestGenerateVideo_ProviderFailure(t *testing.T) {
	ledger := &fakeLedger{balance: 500}
	router := newTestRouter(ledger, &fakeVideos{err: errors.New("provider exploded")}, true)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
		"duration":  "8",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	// The debit was refunded before the response went out.
	assert.Equal(t, 500, ledger.balance)
}

func TestGenerateVideo_Success(t *testing.T) {
	ledger := &fakeLedger{balance: 500}
	router := newTestRouter(ledger, &fakeVideos{}, true)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
		"duration":  "8",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "completed", resp.Data.Status)
	assert.NotEmpty(t, resp.Data.ID)
	assert.NotEmpty(t, resp.Data.OutputURL)
	assert.Equal(t, 9000, resp.Data.ProcessingTime)

	assert.Equal(t, 372, ledger.balance)
}

func TestGenerateVideo_DefaultDuration(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 500}, &fakeVideos{}, true)

	// Duration omitted defaults to 8 seconds.
	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateVideo_UploadedImageDrivesFirstFrame(t *testing.T) {
	videos := &fakeVideos{}
	router := newTestRouter(&fakeLedger{balance: 500}, videos, true)

	w := postVideoWithFiles(t, router, map[string]string{
		"prompt":         "animate this villa",
		"projectId":      uuid.NewString(),
		"duration":       "8",
		"generationType": "image-to-video",
	}, map[string][]byte{
		"uploadedImage": []byte("villa jpeg bytes"),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// The conditioning image must reach the provider as the first frame.
	assert.Equal(t, []byte("villa jpeg bytes"), videos.lastReq.FirstFrame)
}

func TestGenerateVideo_KeyframesBoundSequence(t *testing.T) {
	videos := &fakeVideos{}
	router := newTestRouter(&fakeLedger{balance: 500}, videos, true)

	w := postVideoWithFiles(t, router, map[string]string{
		"prompt":         "walk through the villa",
		"projectId":      uuid.NewString(),
		"duration":       "8",
		"generationType": "keyframe-sequence",
		"keyframeCount":  "3",
	}, map[string][]byte{
		"keyframe_0": []byte("kf0"),
		"keyframe_1": []byte("kf1"),
		"keyframe_2": []byte("kf2"),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []byte("kf0"), videos.lastReq.FirstFrame)
	assert.Equal(t, []byte("kf2"), videos.lastReq.LastFrame)
	assert.Equal(t, [][]byte{[]byte("kf0"), []byte("kf1"), []byte("kf2")}, videos.lastReq.ReferenceFrames)
}

func TestGenerateVideo_InvalidProjectID(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 500}, &fakeVideos{}, true)

	w := postVideo(t, router, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": "not-a-uuid",
		"duration":  "8",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateImage_Success(t *testing.T) {
	ledger := &fakeLedger{balance: 100}
	router := newTestRouter(ledger, &fakeVideos{}, true)

	body, contentType := multipartBody(t, map[string]string{
		"prompt":    "a lakeside villa at dusk",
		"projectId": uuid.NewString(),
	})
	req, _ := http.NewRequest("POST", "/api/v1/renders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 98, ledger.balance)
}

func TestGenerateImage_MissingFields(t *testing.T) {
	router := newTestRouter(&fakeLedger{balance: 100}, &fakeVideos{}, true)

	body, contentType := multipartBody(t, map[string]string{
		"projectId": uuid.NewString(),
	})
	req, _ := http.NewRequest("POST", "/api/v1/renders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
