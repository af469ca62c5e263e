package services_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/gemini"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/services"
	"renderiq-backend/internal/storage"
	"renderiq-backend/internal/veo"
)

// In-memory doubles for the orchestrator's dependencies.

type ledgerEntry struct {
	amount int
	txType models.TransactionType
}

type fakeLedger struct {
	balance  int
	entries  []ledgerEntry
	debitErr error
}

func (f *fakeLedger) Balance(_ context.Context, _ uuid.UUID) (*models.CreditAccount, error) {
	return &models.CreditAccount{Balance: f.balance}, nil
}

func (f *fakeLedger) Debit(_ context.Context, _ uuid.UUID, amount int, _ string, _ uuid.UUID, _ string) error {
	if f.debitErr != nil {
		return f.debitErr
	}
	if f.balance < amount {
		return billing.ErrInsufficientCredits
	}
	f.balance -= amount
	f.entries = append(f.entries, ledgerEntry{amount: -amount, txType: models.TransactionSpent})
	return nil
}

func (f *fakeLedger) Credit(_ context.Context, _ uuid.UUID, amount int, txType models.TransactionType, _ string, _ uuid.UUID, _ string) error {
	f.balance += amount
	f.entries = append(f.entries, ledgerEntry{amount: amount, txType: txType})
	return nil
}

// retry mirrors the provider clients' backoff loop without the sleeps.
func retry(fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

type fakeImages struct {
	result       *gemini.ImageResult
	err          error
	failuresLeft int
	calls        int
}

func (f *fakeImages) GenerateImage(_ context.Context, _ gemini.ImageRequest) (*gemini.ImageResult, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("transient provider error")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeImages) RetryWithBackoff(fn func() error, maxRetries int) error {
	return retry(fn, maxRetries)
}

type fakeVideos struct {
	result       *veo.VideoResult
	err          error
	failuresLeft int
	calls        int
	lastReq      veo.VideoRequest
}

func (f *fakeVideos) GenerateVideo(_ context.Context, req veo.VideoRequest) (*veo.VideoResult, error) {
	f.calls++
	f.lastReq = req
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("transient provider error")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeVideos) RetryWithBackoff(fn func() error, maxRetries int) error {
	return retry(fn, maxRetries)
}

type fakeArtifacts struct {
	uploadErr error
	fetched   []string
	uploads   int
}

func (f *fakeArtifacts) UploadBytes(_ context.Context, _ []byte, params storage.UploadParams, _ bool) (*services.StoredArtifact, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads++
	key := storage.ObjectKey(params)
	return &services.StoredArtifact{ID: uuid.New(), Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (f *fakeArtifacts) FetchAndStore(ctx context.Context, sourceURL string, params storage.UploadParams, isPublic bool) (*services.StoredArtifact, error) {
	f.fetched = append(f.fetched, sourceURL)
	return f.UploadBytes(ctx, []byte("fetched"), params, isPublic)
}

func (f *fakeArtifacts) Fetch(_ context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	return []byte("reference bytes"), nil
}

type galleryEntry struct {
	renderID uuid.UUID
	isPublic bool
}

type fakeStore struct {
	renders       map[uuid.UUID]*models.Render
	statuses      map[uuid.UUID][]models.RenderStatus
	gallery       []galleryEntry
	chainPosition int
	outputErr     error
	createErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		renders:       make(map[uuid.UUID]*models.Render),
		statuses:      make(map[uuid.UUID][]models.RenderStatus),
		chainPosition: 1,
	}
}

func (f *fakeStore) CreateRender(_ context.Context, render *models.Render) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *render
	f.renders[render.ID] = &copied
	f.statuses[render.ID] = append(f.statuses[render.ID], render.Status)
	return nil
}

func (f *fakeStore) UpdateRenderStatus(_ context.Context, renderID uuid.UUID, status models.RenderStatus) error {
	f.renders[renderID].Status = status
	f.statuses[renderID] = append(f.statuses[renderID], status)
	return nil
}

func (f *fakeStore) UpdateRenderOutput(_ context.Context, renderID uuid.UUID, outputURL, outputKey string, processingTime int) error {
	if f.outputErr != nil {
		return f.outputErr
	}
	r := f.renders[renderID]
	r.Status = models.RenderCompleted
	r.OutputURL.String = outputURL
	r.OutputURL.Valid = true
	r.OutputKey.String = outputKey
	r.OutputKey.Valid = true
	f.statuses[renderID] = append(f.statuses[renderID], models.RenderCompleted)
	return nil
}

func (f *fakeStore) UpdateRenderError(_ context.Context, renderID uuid.UUID, errorMsg string) error {
	r := f.renders[renderID]
	r.Status = models.RenderFailed
	r.ErrorMessage.String = errorMsg
	r.ErrorMessage.Valid = true
	f.statuses[renderID] = append(f.statuses[renderID], models.RenderFailed)
	return nil
}

func (f *fakeStore) UpdateRenderSource(_ context.Context, renderID uuid.UUID, url, key string, fileID uuid.UUID) error {
	r := f.renders[renderID]
	r.UploadedImageURL.String = url
	r.UploadedImageURL.Valid = true
	return nil
}

func (f *fakeStore) GetRender(_ context.Context, renderID, _ uuid.UUID) (*models.Render, error) {
	r, ok := f.renders[renderID]
	if !ok {
		return nil, fmt.Errorf("render %s not found", renderID)
	}
	return r, nil
}

func (f *fakeStore) NextChainPosition(_ context.Context, _ uuid.UUID) (int, error) {
	pos := f.chainPosition
	f.chainPosition++
	return pos, nil
}

func (f *fakeStore) AddToGallery(_ context.Context, renderID, _ uuid.UUID, isPublic bool) error {
	f.gallery = append(f.gallery, galleryEntry{renderID: renderID, isPublic: isPublic})
	return nil
}

type fakeTiers struct {
	pro bool
}

func (f *fakeTiers) IsPro(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.pro, nil
}

type fakeEvents struct {
	published []string
}

func (f *fakeEvents) PublishRenderEvent(_ uuid.UUID, event string, _ map[string]interface{}) error {
	f.published = append(f.published, event)
	return nil
}

type fixture struct {
	ledger  *fakeLedger
	images  *fakeImages
	videos  *fakeVideos
	store   *fakeArtifacts
	db      *fakeStore
	tiers   *fakeTiers
	events  *fakeEvents
	service *services.RenderService
}

func newFixture(balance int) *fixture {
	f := &fixture{
		ledger: &fakeLedger{balance: balance},
		images: &fakeImages{result: &gemini.ImageResult{Data: []byte("png bytes"), MIMEType: "image/png", ProcessingTime: 1200}},
		videos: &fakeVideos{result: &veo.VideoResult{VideoURL: "https://provider.example.com/out.mp4", ProcessingTime: 42000}},
		store:  &fakeArtifacts{},
		db:     newFakeStore(),
		tiers:  &fakeTiers{},
		events: &fakeEvents{},
	}
	f.service = services.NewRenderService(
		f.ledger, f.images, f.videos, f.store, f.db, f.tiers, f.events,
		slog.New(slog.DiscardHandler))
	return f
}

func videoParams() services.VideoParams {
	return services.VideoParams{
		UserID:    uuid.New(),
		ProjectID: uuid.New(),
		Prompt:    "a lakeside villa at dusk",
		Duration:  8,
	}
}

func imageParams() services.ImageParams {
	return services.ImageParams{
		UserID:    uuid.New(),
		ProjectID: uuid.New(),
		Prompt:    "a lakeside villa at dusk",
	}
}

func TestGenerateVideo_InsufficientCredits(t *testing.T) {
	f := newFixture(10)

	_, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.Error(t, err)

	var creditsErr *services.InsufficientCreditsError
	require.ErrorAs(t, err, &creditsErr)
	assert.Equal(t, 128, creditsErr.Required)
	assert.Equal(t, 10, creditsErr.Available)

	// Nothing was debited, created or generated.
	assert.Equal(t, 10, f.ledger.balance)
	assert.Empty(t, f.ledger.entries)
	assert.Empty(t, f.db.renders)
	assert.Zero(t, f.videos.calls)
}

func TestGenerateVideo_InvalidDuration(t *testing.T) {
	f := newFixture(1000)
	params := videoParams()
	params.Duration = 5

	_, err := f.service.GenerateVideo(context.Background(), params)
	require.Error(t, err)

	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Duration must be 4, 6, or 8 seconds", validationErr.Message)

	assert.Equal(t, 1000, f.ledger.balance)
	assert.Empty(t, f.db.renders)
	assert.Zero(t, f.videos.calls)
}

func TestGenerateVideo_MissingPrompt(t *testing.T) {
	f := newFixture(1000)
	params := videoParams()
	params.Prompt = ""

	_, err := f.service.GenerateVideo(context.Background(), params)
	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Missing required fields", validationErr.Message)
}

func TestGenerateVideo_DebitRaceLeavesNoRender(t *testing.T) {
	f := newFixture(1000)
	// Balance check passes but a concurrent debit empties the account
	// before ours lands.
	f.ledger.debitErr = billing.ErrInsufficientCredits

	_, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.Error(t, err)

	var creditsErr *services.InsufficientCreditsError
	require.ErrorAs(t, err, &creditsErr)
	assert.Equal(t, 128, creditsErr.Required)

	assert.Empty(t, f.db.renders)
	assert.Zero(t, f.videos.calls)
}

func TestGenerateVideo_CreateFailureRefunds(t *testing.T) {
	f := newFixture(1000)
	f.db.createErr = errors.New("insert failed")

	_, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.Error(t, err)

	// The debit landed first, so it comes back.
	assert.Equal(t, 1000, f.ledger.balance)
	require.Len(t, f.ledger.entries, 2)
	assert.Equal(t, models.TransactionRefund, f.ledger.entries[1].txType)
	assert.Empty(t, f.db.renders)
}

func TestGenerateVideo_TransientProviderFailureRetries(t *testing.T) {
	f := newFixture(500)
	f.videos.failuresLeft = 2

	result, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.NoError(t, err)

	assert.Equal(t, models.RenderCompleted, result.Status)
	assert.Equal(t, 3, f.videos.calls)

	// One debit, no refund.
	assert.Equal(t, 372, f.ledger.balance)
	require.Len(t, f.ledger.entries, 1)
}

func TestGenerateImage_TransientProviderFailureRetries(t *testing.T) {
	f := newFixture(100)
	f.images.failuresLeft = 1

	_, err := f.service.GenerateImage(context.Background(), imageParams())
	require.NoError(t, err)
	assert.Equal(t, 2, f.images.calls)
	assert.Equal(t, 98, f.ledger.balance)
}

func TestGenerateVideo_ReferenceFramesForwarded(t *testing.T) {
	f := newFixture(500)
	frames := [][]byte{[]byte("kf0"), []byte("kf1"), []byte("kf2")}
	params := videoParams()
	params.FirstFrame = frames[0]
	params.LastFrame = frames[2]
	params.ReferenceFrames = frames
	params.GenerationType = models.GenerationKeyframeSequence

	_, err := f.service.GenerateVideo(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, frames, f.videos.lastReq.ReferenceFrames)
	assert.Equal(t, []byte("kf0"), f.videos.lastReq.FirstFrame)
	assert.Equal(t, []byte("kf2"), f.videos.lastReq.LastFrame)
}

func TestGenerateVideo_ProviderFailureRefunds(t *testing.T) {
	f := newFixture(1000)
	f.videos.err = errors.New("provider exploded")

	_, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.Error(t, err)

	// Debit then refund of the identical amount.
	assert.Equal(t, 1000, f.ledger.balance)
	require.Len(t, f.ledger.entries, 2)
	assert.Equal(t, -128, f.ledger.entries[0].amount)
	assert.Equal(t, 128, f.ledger.entries[1].amount)
	assert.Equal(t, models.TransactionRefund, f.ledger.entries[1].txType)

	// The render row ends failed.
	require.Len(t, f.db.renders, 1)
	for _, r := range f.db.renders {
		assert.Equal(t, models.RenderFailed, r.Status)
		assert.Contains(t, r.ErrorMessage.String, "provider exploded")
	}
	assert.Contains(t, f.events.published, "render.failed")
}

func TestGenerateVideo_UploadFailureRefunds(t *testing.T) {
	f := newFixture(500)
	f.store.uploadErr = services.ErrUploadFailed

	_, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.Error(t, err)

	assert.Equal(t, 500, f.ledger.balance)
	require.Len(t, f.ledger.entries, 2)
	assert.Equal(t, models.TransactionRefund, f.ledger.entries[1].txType)
	for _, r := range f.db.renders {
		assert.Equal(t, models.RenderFailed, r.Status)
	}
}

func TestGenerateVideo_Success(t *testing.T) {
	f := newFixture(500)

	result, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.NoError(t, err)

	assert.Equal(t, models.RenderCompleted, result.Status)
	assert.NotEmpty(t, result.OutputURL)
	assert.Equal(t, 42000, result.ProcessingTime)

	// 500 - 128, no refund.
	assert.Equal(t, 372, f.ledger.balance)
	require.Len(t, f.ledger.entries, 1)

	// Provider URL was fetched and re-uploaded, never served directly.
	assert.Contains(t, f.store.fetched, "https://provider.example.com/out.mp4")
	assert.NotEqual(t, "https://provider.example.com/out.mp4", result.OutputURL)

	// Lifecycle ran pending -> processing -> completed.
	statuses := f.db.statuses[result.RenderID]
	assert.Equal(t, []models.RenderStatus{models.RenderPending, models.RenderProcessing, models.RenderCompleted}, statuses)
	assert.Contains(t, f.events.published, "render.started")
	assert.Contains(t, f.events.published, "render.completed")
}

func TestGenerateVideo_FastModelPricing(t *testing.T) {
	f := newFixture(500)
	params := videoParams()
	params.Model = "veo-3.1-fast-generate-preview"
	params.Duration = 4

	result, err := f.service.GenerateVideo(context.Background(), params)
	require.NoError(t, err)

	// 0.15/s * 4s * 40 = 24 credits.
	assert.Equal(t, 476, f.ledger.balance)
	assert.Equal(t, 24, f.db.renders[result.RenderID].CreditsCost)
}

func TestGenerateVideo_InlineDataSkipsFetch(t *testing.T) {
	f := newFixture(500)
	f.videos.result = &veo.VideoResult{VideoData: []byte("mp4 bytes"), ProcessingTime: 10}

	result, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.NoError(t, err)
	assert.NotEmpty(t, result.OutputURL)
	assert.Empty(t, f.store.fetched)
}

func TestGenerateImage_Success(t *testing.T) {
	f := newFixture(100)

	result, err := f.service.GenerateImage(context.Background(), imageParams())
	require.NoError(t, err)

	assert.Equal(t, models.RenderCompleted, result.Status)
	// Default image model costs 2 credits.
	assert.Equal(t, 98, f.ledger.balance)
	assert.Equal(t, 2, f.db.renders[result.RenderID].CreditsCost)
}

func TestGenerateImage_HighQualityPricing(t *testing.T) {
	f := newFixture(100)
	params := imageParams()
	params.Quality = "ultra"
	params.ImageSize = "4K"

	result, err := f.service.GenerateImage(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 10, f.db.renders[result.RenderID].CreditsCost)
	assert.Equal(t, 90, f.ledger.balance)
}

func TestGenerateImage_GenerationFailureRefunds(t *testing.T) {
	f := newFixture(100)
	f.images.err = errors.New("model unavailable")

	_, err := f.service.GenerateImage(context.Background(), imageParams())
	require.Error(t, err)
	assert.Equal(t, 100, f.ledger.balance)
	require.Len(t, f.ledger.entries, 2)
	assert.Equal(t, models.TransactionRefund, f.ledger.entries[1].txType)
}

func TestGallery_FreeUserAlwaysPublic(t *testing.T) {
	f := newFixture(100)
	f.tiers.pro = false
	private := false
	params := imageParams()
	params.IsPublic = &private

	_, err := f.service.GenerateImage(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, f.db.gallery, 1)
	assert.True(t, f.db.gallery[0].isPublic)
}

func TestGallery_ProUserChoosesPrivate(t *testing.T) {
	f := newFixture(100)
	f.tiers.pro = true
	private := false
	params := imageParams()
	params.IsPublic = &private

	_, err := f.service.GenerateImage(context.Background(), params)
	require.NoError(t, err)

	// A private render gets no gallery row at all.
	assert.Empty(t, f.db.gallery)
}

func TestGallery_DefaultIsPublic(t *testing.T) {
	f := newFixture(100)
	f.tiers.pro = true

	_, err := f.service.GenerateImage(context.Background(), imageParams())
	require.NoError(t, err)

	require.Len(t, f.db.gallery, 1)
	assert.True(t, f.db.gallery[0].isPublic)
}

func TestChainPositions_AssignedInOrder(t *testing.T) {
	f := newFixture(1000)
	chainID := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	params := imageParams()
	params.ChainID = chainID
	first, err := f.service.GenerateImage(context.Background(), params)
	require.NoError(t, err)

	params2 := imageParams()
	params2.ChainID = chainID
	second, err := f.service.GenerateImage(context.Background(), params2)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.db.renders[first.RenderID].ChainPosition.Int64)
	assert.Equal(t, int64(2), f.db.renders[second.RenderID].ChainPosition.Int64)
}

func TestPersistFailureAfterDeliveryDoesNotRefund(t *testing.T) {
	f := newFixture(500)
	f.db.outputErr = errors.New("database unavailable")

	result, err := f.service.GenerateVideo(context.Background(), videoParams())
	require.NoError(t, err)

	// Billed and delivered; the persistence gap is logged, not refunded.
	assert.Equal(t, models.RenderCompleted, result.Status)
	assert.NotEmpty(t, result.OutputURL)
	assert.Equal(t, 372, f.ledger.balance)
	require.Len(t, f.ledger.entries, 1)
}

func TestReferenceRender_FetchedAsInput(t *testing.T) {
	f := newFixture(1000)

	// Seed a completed reference render.
	refID := uuid.New()
	userID := uuid.New()
	f.db.renders[refID] = &models.Render{ID: refID, UserID: userID, Status: models.RenderCompleted}
	f.db.renders[refID].OutputURL.String = "https://cdn.example.com/ref.png"
	f.db.renders[refID].OutputURL.Valid = true

	params := videoParams()
	params.UserID = userID
	params.ReferenceRenderID = uuid.NullUUID{UUID: refID, Valid: true}

	_, err := f.service.GenerateVideo(context.Background(), params)
	require.NoError(t, err)

	assert.Contains(t, f.store.fetched, "https://cdn.example.com/ref.png")
	assert.Equal(t, []byte("reference bytes"), f.videos.lastReq.FirstFrame)
}
