package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/gemini"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/registry"
	"renderiq-backend/internal/storage"
	"renderiq-backend/internal/supabase"
	"renderiq-backend/internal/veo"
)

// ValidationError marks request problems the client can fix. Handlers
// map it to a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InsufficientCreditsError carries the numbers for the 402 payload.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

type CreditLedger interface {
	Balance(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int, description string, referenceID uuid.UUID, referenceType string) error
	Credit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, referenceID uuid.UUID, referenceType string) error
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.ImageResult, error)
	RetryWithBackoff(fn func() error, maxRetries int) error
}

type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req veo.VideoRequest) (*veo.VideoResult, error)
	RetryWithBackoff(fn func() error, maxRetries int) error
}

type Artifacts interface {
	UploadBytes(ctx context.Context, data []byte, params storage.UploadParams, isPublic bool) (*StoredArtifact, error)
	FetchAndStore(ctx context.Context, sourceURL string, params storage.UploadParams, isPublic bool) (*StoredArtifact, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type RenderStore interface {
	CreateRender(ctx context.Context, render *models.Render) error
	UpdateRenderStatus(ctx context.Context, renderID uuid.UUID, status models.RenderStatus) error
	UpdateRenderOutput(ctx context.Context, renderID uuid.UUID, outputURL, outputKey string, processingTime int) error
	UpdateRenderError(ctx context.Context, renderID uuid.UUID, errorMsg string) error
	UpdateRenderSource(ctx context.Context, renderID uuid.UUID, url, key string, fileID uuid.UUID) error
	GetRender(ctx context.Context, renderID, userID uuid.UUID) (*models.Render, error)
	NextChainPosition(ctx context.Context, chainID uuid.UUID) (int, error)
	AddToGallery(ctx context.Context, renderID, userID uuid.UUID, isPublic bool) error
}

type TierResolver interface {
	IsPro(ctx context.Context, userID uuid.UUID) (bool, error)
}

type EventPublisher interface {
	PublishRenderEvent(renderID uuid.UUID, event string, payload map[string]interface{}) error
}

// RenderService orchestrates a generation request end to end: price,
// debit, generate, persist, record. Credits debited for a request that
// ultimately fails are always refunded in the same amount.
type RenderService struct {
	ledger CreditLedger
	images ImageGenerator
	videos VideoGenerator
	store  Artifacts
	db     RenderStore
	tiers  TierResolver
	events EventPublisher
	log    *slog.Logger
}

func NewRenderService(
	ledger CreditLedger,
	images ImageGenerator,
	videos VideoGenerator,
	store Artifacts,
	db RenderStore,
	tiers TierResolver,
	events EventPublisher,
	log *slog.Logger,
) *RenderService {
	return &RenderService{
		ledger: ledger,
		images: images,
		videos: videos,
		store:  store,
		db:     db,
		tiers:  tiers,
		events: events,
		log:    log,
	}
}

type ImageParams struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	Prompt      string
	Model       string
	Style       string
	Quality     string
	AspectRatio string
	ImageSize   string

	// Optional uploaded reference image.
	SourceImage    []byte
	SourceMIME     string
	SourceFilename string

	ChainID           uuid.NullUUID
	ReferenceRenderID uuid.NullUUID

	// Gallery visibility. Only honored for pro users; free renders
	// are always public. Nil means the user did not choose.
	IsPublic *bool
}

type VideoParams struct {
	UserID         uuid.UUID
	ProjectID      uuid.UUID
	Prompt         string
	Model          string
	Quality        string
	AspectRatio    string
	Duration       int
	GenerationType string
	Resolution     string

	FirstFrame      []byte
	LastFrame       []byte
	ReferenceFrames [][]byte

	ChainID           uuid.NullUUID
	ReferenceRenderID uuid.NullUUID

	IsPublic *bool
}

type Result struct {
	RenderID       uuid.UUID
	OutputURL      string
	Status         models.RenderStatus
	ProcessingTime int
}

// GenerateImage runs one image generation request.
func (s *RenderService) GenerateImage(ctx context.Context, params ImageParams) (*Result, error) {
	if params.Prompt == "" || params.ProjectID == uuid.Nil {
		return nil, &ValidationError{Message: "Missing required fields"}
	}

	model := registry.Resolve(registry.TypeImage, params.Model, params.Quality)
	creditParams := registry.CreditParams{Quality: params.Quality, ImageSize: params.ImageSize}
	var cost int
	var modelID string
	if model != nil {
		cost = model.CalculateCredits(creditParams)
		modelID = model.ID
	} else {
		cost = registry.FallbackCost(registry.TypeImage, creditParams)
		modelID = params.Model
	}

	render := &models.Render{
		ID:        uuid.New(),
		ProjectID: params.ProjectID,
		UserID:    params.UserID,
		Type:      models.RenderImage,
		Prompt:    params.Prompt,
		Settings: models.RenderSettings{
			Type: models.RenderImage,
			Image: &models.ImageSettings{
				Model:       modelID,
				Style:       params.Style,
				Quality:     params.Quality,
				AspectRatio: params.AspectRatio,
			},
		},
		Status:            models.RenderPending,
		CreditsCost:       cost,
		ChainID:           params.ChainID,
		ReferenceRenderID: params.ReferenceRenderID,
	}

	if err := s.begin(ctx, render, cost); err != nil {
		return nil, err
	}

	// Past this point every failure must refund the debit.
	req := gemini.ImageRequest{
		Model:       modelID,
		Prompt:      params.Prompt,
		AspectRatio: params.AspectRatio,
		Resolution:  params.ImageSize,
	}

	if params.ReferenceRenderID.Valid {
		data, mime, err := s.fetchReference(ctx, params.ReferenceRenderID.UUID, params.UserID)
		if err != nil {
			return nil, s.fail(ctx, render, cost, fmt.Errorf("failed to load reference render: %w", err))
		}
		req.ReferenceImage = data
		req.ReferenceMIME = mime
	}

	if len(params.SourceImage) > 0 {
		req.ReferenceImage = params.SourceImage
		req.ReferenceMIME = params.SourceMIME
		if err := s.persistSource(ctx, render, params.SourceImage, params.SourceMIME, params.SourceFilename); err != nil {
			return nil, s.fail(ctx, render, cost, err)
		}
	}

	var result *gemini.ImageResult
	err := s.images.RetryWithBackoff(func() error {
		var genErr error
		result, genErr = s.images.GenerateImage(ctx, req)
		return genErr
	}, 3)
	if err != nil {
		return nil, s.fail(ctx, render, cost, err)
	}

	artifact, err := s.store.UploadBytes(ctx, result.Data, storage.UploadParams{
		UserID:      params.UserID,
		ProjectID:   params.ProjectID,
		Category:    "renders",
		Filename:    render.ID.String() + storage.ExtensionFromContentType(result.MIMEType),
		ContentType: result.MIMEType,
	}, true)
	if err != nil {
		return nil, s.fail(ctx, render, cost, err)
	}

	return s.complete(ctx, render, params.UserID, params.IsPublic, artifact, result.ProcessingTime)
}

// GenerateVideo runs one video generation request.
func (s *RenderService) GenerateVideo(ctx context.Context, params VideoParams) (*Result, error) {
	if params.Prompt == "" || params.ProjectID == uuid.Nil {
		return nil, &ValidationError{Message: "Missing required fields"}
	}
	if !veo.ValidDuration(params.Duration) {
		return nil, &ValidationError{Message: "Duration must be 4, 6, or 8 seconds"}
	}

	model := registry.Resolve(registry.TypeVideo, params.Model, params.Quality)
	creditParams := registry.CreditParams{Quality: params.Quality, Duration: params.Duration}
	var cost int
	var modelID string
	if model != nil {
		cost = model.CalculateCredits(creditParams)
		modelID = model.ID
	} else {
		cost = registry.FallbackCost(registry.TypeVideo, creditParams)
		modelID = params.Model
	}

	generationType := params.GenerationType
	if generationType == "" {
		generationType = models.GenerationTextToVideo
		if len(params.FirstFrame) > 0 {
			generationType = models.GenerationImageToVideo
		}
		if len(params.FirstFrame) > 0 && len(params.LastFrame) > 0 {
			generationType = models.GenerationKeyframeSequence
		}
	}

	render := &models.Render{
		ID:        uuid.New(),
		ProjectID: params.ProjectID,
		UserID:    params.UserID,
		Type:      models.RenderVideo,
		Prompt:    params.Prompt,
		Settings: models.RenderSettings{
			Type: models.RenderVideo,
			Video: &models.VideoSettings{
				Model:          modelID,
				AspectRatio:    params.AspectRatio,
				Duration:       params.Duration,
				GenerationType: generationType,
			},
		},
		Status:            models.RenderPending,
		CreditsCost:       cost,
		ChainID:           params.ChainID,
		ReferenceRenderID: params.ReferenceRenderID,
	}

	if err := s.begin(ctx, render, cost); err != nil {
		return nil, err
	}

	req := veo.VideoRequest{
		Model:           modelID,
		Prompt:          params.Prompt,
		AspectRatio:     params.AspectRatio,
		DurationSeconds: params.Duration,
		Resolution:      params.Resolution,
		FirstFrame:      params.FirstFrame,
		LastFrame:       params.LastFrame,
		ReferenceFrames: params.ReferenceFrames,
	}

	if params.ReferenceRenderID.Valid && len(req.FirstFrame) == 0 {
		data, _, err := s.fetchReference(ctx, params.ReferenceRenderID.UUID, params.UserID)
		if err != nil {
			return nil, s.fail(ctx, render, cost, fmt.Errorf("failed to load reference render: %w", err))
		}
		req.FirstFrame = data
	}

	if len(params.FirstFrame) > 0 {
		if err := s.persistSource(ctx, render, params.FirstFrame, "image/png", ""); err != nil {
			return nil, s.fail(ctx, render, cost, err)
		}
	}

	var result *veo.VideoResult
	err := s.videos.RetryWithBackoff(func() error {
		var genErr error
		result, genErr = s.videos.GenerateVideo(ctx, req)
		return genErr
	}, 3)
	if err != nil {
		return nil, s.fail(ctx, render, cost, err)
	}

	uploadParams := storage.UploadParams{
		UserID:      params.UserID,
		ProjectID:   params.ProjectID,
		Category:    "renders",
		Filename:    render.ID.String() + ".mp4",
		ContentType: "video/mp4",
	}
	var artifact *StoredArtifact
	if len(result.VideoData) > 0 {
		artifact, err = s.store.UploadBytes(ctx, result.VideoData, uploadParams, true)
	} else {
		// Provider URLs expire; always re-upload to durable storage.
		artifact, err = s.store.FetchAndStore(ctx, result.VideoURL, uploadParams, true)
	}
	if err != nil {
		return nil, s.fail(ctx, render, cost, err)
	}

	return s.complete(ctx, render, params.UserID, params.IsPublic, artifact, result.ProcessingTime)
}

// begin prices and debits a render, then records it. The debit lands
// before the row is created, so a request that cannot pay leaves no
// trace. On return the render row exists in processing state and the
// user has paid for it.
func (s *RenderService) begin(ctx context.Context, render *models.Render, cost int) error {
	account, err := s.ledger.Balance(ctx, render.UserID)
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	if account.Balance < cost {
		return &InsufficientCreditsError{Required: cost, Available: account.Balance}
	}

	description := fmt.Sprintf("%s generation", render.Type)
	err = s.ledger.Debit(ctx, render.UserID, cost, description, render.ID, models.ReferenceRender)
	if errors.Is(err, billing.ErrInsufficientCredits) {
		// Lost a race with a concurrent debit.
		account, balErr := s.ledger.Balance(ctx, render.UserID)
		available := 0
		if balErr == nil {
			available = account.Balance
		}
		return &InsufficientCreditsError{Required: cost, Available: available}
	}
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	if render.ChainID.Valid {
		position, err := s.db.NextChainPosition(ctx, render.ChainID.UUID)
		if err != nil {
			s.refund(ctx, render.UserID, cost, render.ID)
			return fmt.Errorf("failed to claim chain position: %w", err)
		}
		render.ChainPosition.Int64 = int64(position)
		render.ChainPosition.Valid = true
	}

	if err := s.db.CreateRender(ctx, render); err != nil {
		s.refund(ctx, render.UserID, cost, render.ID)
		return fmt.Errorf("failed to create render: %w", err)
	}

	if err := s.db.UpdateRenderStatus(ctx, render.ID, models.RenderProcessing); err != nil {
		s.refund(ctx, render.UserID, cost, render.ID)
		return fmt.Errorf("failed to start render: %w", err)
	}
	s.events.PublishRenderEvent(render.ID, "render.started",
		supabase.RenderStartedPayload(render.ID, string(render.Type)))

	return nil
}

// fail marks the render failed, refunds the debit and wraps err.
func (s *RenderService) fail(ctx context.Context, render *models.Render, cost int, err error) error {
	s.refund(ctx, render.UserID, cost, render.ID)
	if dbErr := s.db.UpdateRenderError(ctx, render.ID, err.Error()); dbErr != nil {
		s.log.Error("failed to record render failure", "render_id", render.ID, "error", dbErr)
	}
	s.events.PublishRenderEvent(render.ID, "render.failed",
		supabase.RenderFailedPayload(render.ID, err.Error()))
	s.log.Error("render failed", "render_id", render.ID, "type", render.Type, "error", err)
	return fmt.Errorf("generation failed: %w", err)
}

func (s *RenderService) refund(ctx context.Context, userID uuid.UUID, amount int, renderID uuid.UUID) {
	err := s.ledger.Credit(ctx, userID, amount, models.TransactionRefund,
		"Refund for failed render", renderID, models.ReferenceRefund)
	if err != nil {
		// A failed refund must be visible in the logs for manual
		// reconciliation.
		s.log.Error("refund failed", "user_id", userID, "render_id", renderID, "amount", amount, "error", err)
	}
}

// complete records the output and gallery entry. The user has been
// billed for a delivered result, so persistence failures here are
// logged, never refunded.
func (s *RenderService) complete(ctx context.Context, render *models.Render, userID uuid.UUID, isPublic *bool, artifact *StoredArtifact, processingTime int) (*Result, error) {
	if err := s.db.UpdateRenderOutput(ctx, render.ID, artifact.URL, artifact.Key, processingTime); err != nil {
		s.log.Warn("failed to persist render output", "render_id", render.ID, "output_url", artifact.URL, "error", err)
	}

	public := true
	if isPublic != nil {
		pro, err := s.tiers.IsPro(ctx, userID)
		if err != nil {
			s.log.Warn("failed to resolve user tier", "user_id", userID, "error", err)
		} else if pro {
			public = *isPublic
		}
	}
	// Private renders get no gallery row at all.
	if public {
		if err := s.db.AddToGallery(ctx, render.ID, userID, true); err != nil {
			s.log.Warn("failed to add render to gallery", "render_id", render.ID, "error", err)
		}
	}

	s.events.PublishRenderEvent(render.ID, "render.completed",
		supabase.RenderCompletedPayload(render.ID, artifact.URL, processingTime))
	s.log.Info("render completed", "render_id", render.ID, "type", render.Type, "processing_ms", processingTime)

	return &Result{
		RenderID:       render.ID,
		OutputURL:      artifact.URL,
		Status:         models.RenderCompleted,
		ProcessingTime: processingTime,
	}, nil
}

// persistSource keeps a durable copy of the user's uploaded input image
// alongside the render.
func (s *RenderService) persistSource(ctx context.Context, render *models.Render, data []byte, mime, filename string) error {
	if mime == "" {
		mime = "image/png"
	}
	if filename == "" {
		filename = render.ID.String() + "-source" + storage.ExtensionFromContentType(mime)
	}
	artifact, err := s.store.UploadBytes(ctx, data, storage.UploadParams{
		UserID:      render.UserID,
		ProjectID:   render.ProjectID,
		Category:    "uploads",
		Filename:    filename,
		ContentType: mime,
	}, false)
	if err != nil {
		return fmt.Errorf("failed to store source image: %w", err)
	}
	if err := s.db.UpdateRenderSource(ctx, render.ID, artifact.URL, artifact.Key, artifact.ID); err != nil {
		return fmt.Errorf("failed to record source image: %w", err)
	}
	return nil
}

func (s *RenderService) fetchReference(ctx context.Context, renderID, userID uuid.UUID) ([]byte, string, error) {
	ref, err := s.db.GetRender(ctx, renderID, userID)
	if err != nil {
		return nil, "", err
	}
	if !ref.OutputURL.Valid || ref.OutputURL.String == "" {
		return nil, "", fmt.Errorf("reference render %s has no output", renderID)
	}
	data, err := s.store.Fetch(ctx, ref.OutputURL.String)
	if err != nil {
		return nil, "", err
	}
	return data, "image/png", nil
}
