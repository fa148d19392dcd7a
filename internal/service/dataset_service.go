package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/ingest"
	"github.com/chemviz/equipment-api/internal/logger"
	"github.com/chemviz/equipment-api/internal/mapper"
	"github.com/chemviz/equipment-api/internal/report"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const uploadSuccessMessage = "CSV file uploaded successfully"

// ReportFile is a rendered dataset report
type ReportFile struct {
	Filename string
	Content  []byte
}

// DatasetService ingests CSV uploads and serves the owner's datasets
type DatasetService struct {
	datasetRepo *repository.DatasetRepository
	validator   *ingest.Validator
	storage     storage.Storage
	cfg         config.DatasetsConfig
	locks       *userLocks
	logger      *zap.Logger
	now         func() time.Time
}

// NewDatasetService creates the dataset service. store may be nil when
// uploads are not archived.
func NewDatasetService(
	datasetRepo *repository.DatasetRepository,
	store storage.Storage,
	cfg *config.DatasetsConfig,
	logger *zap.Logger,
) *DatasetService {
	c := *cfg
	if c.RetentionCap < 1 {
		c.RetentionCap = domain.DefaultRetentionCap
	}
	if c.ReportMaxRows < 1 {
		c.ReportMaxRows = report.DefaultMaxDataRows
	}

	return &DatasetService{
		datasetRepo: datasetRepo,
		validator: ingest.NewValidator(ingest.Limits{
			MaxRows:           c.MaxRows,
			MaxBytes:          c.MaxUploadBytes(),
			AllowedExtensions: c.AllowedExtensions,
		}),
		storage: store,
		cfg:     c,
		locks:   newUserLocks(),
		logger:  logger,
		now:     time.Now,
	}
}

// MaxUploadBytes is the largest accepted file
func (s *DatasetService) MaxUploadBytes() int64 {
	return s.validator.Limits().MaxBytes
}

// Upload validates the CSV, persists it with its records and applies retention.
// Nothing is stored when validation fails.
func (s *DatasetService) Upload(ctx context.Context, upload ingest.Upload) (*domain.UploadResponse, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	log := logger.WithUser(s.logger, userCtx.UserID, userCtx.Username)

	var raw []byte
	if s.archiving() {
		var err error
		raw, err = io.ReadAll(io.LimitReader(upload.Body, s.MaxUploadBytes()+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		upload.Body = bytes.NewReader(raw)
	}

	table, err := s.validator.Validate(upload)
	if err != nil {
		if ingest.IsValidationError(err) {
			log.Info("upload rejected", zap.String("filename", upload.Filename), zap.Error(err))
		}
		return nil, err
	}

	name, err := ingest.SanitizeFilename(upload.Filename)
	if err != nil {
		return nil, err
	}

	summary := ingest.Summarize(table.Rows)
	dataset := &domain.Dataset{
		UserID:           userCtx.UserID,
		Name:             name,
		UploadedAt:       s.now().UTC(),
		TotalRecords:     summary.TotalRecords,
		AvgFlowrate:      summary.AvgFlowrate,
		AvgPressure:      summary.AvgPressure,
		AvgTemperature:   summary.AvgTemperature,
		TypeDistribution: datatypes.NewJSONType(summary.TypeDistribution),
	}

	if s.archiving() {
		key := storage.ArchiveKey(userCtx.UserID, name)
		if _, err := s.storage.Put(ctx, key, "text/csv", bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to archive upload: %w", err)
		}
		dataset.SourcePath = key
	}

	unlock := s.locks.Lock(userCtx.UserID)
	evicted, err := s.datasetRepo.CreateWithRetention(ctx, dataset, ingest.Records(0, table.Rows), s.cfg.RetentionCap)
	unlock()
	if err != nil {
		s.removeArchive(ctx, dataset.SourcePath)
		return nil, mapper.FormatError("dataset", "save", err)
	}

	for i := range evicted {
		s.removeArchive(ctx, evicted[i].SourcePath)
	}

	logger.WithDataset(log, userCtx.UserID, dataset.ID).Info("dataset uploaded",
		zap.String("name", dataset.Name),
		zap.Int("records", dataset.TotalRecords),
		zap.Int("dropped_missing", table.DroppedMissing),
		zap.Int("dropped_invalid", table.DroppedInvalid),
		zap.Int("evicted", len(evicted)),
	)

	return &domain.UploadResponse{
		Message:  uploadSuccessMessage,
		Dataset:  mapper.ToDatasetSummaryDTO(dataset),
		Warnings: table.Warnings(),
	}, nil
}

// List returns the caller's datasets, newest first
func (s *DatasetService) List(ctx context.Context) ([]domain.DatasetListItemDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	datasets, err := s.datasetRepo.ListByUser(ctx, userCtx.UserID, s.cfg.RetentionCap)
	if err != nil {
		return nil, mapper.FormatError("datasets", "list", err)
	}
	return mapper.ToDatasetListDTO(datasets), nil
}

// Get returns an owned dataset with every record
func (s *DatasetService) Get(ctx context.Context, id uint) (*domain.DatasetDetailDTO, error) {
	dataset, err := s.loadWithRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToDatasetDetailDTO(dataset)
	return &dto, nil
}

// Summary returns the aggregates of an owned dataset
func (s *DatasetService) Summary(ctx context.Context, id uint) (*domain.DatasetSummaryDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	dataset, err := s.datasetRepo.GetByIDForUser(ctx, id, userCtx.UserID)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	dto := mapper.ToDatasetSummaryDTO(dataset)
	return &dto, nil
}

// Delete removes an owned dataset and its records
func (s *DatasetService) Delete(ctx context.Context, id uint) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}

	unlock := s.locks.Lock(userCtx.UserID)
	dataset, err := s.datasetRepo.DeleteForUser(ctx, id, userCtx.UserID)
	unlock()
	if err != nil {
		return s.lookupError(id, err)
	}

	s.removeArchive(ctx, dataset.SourcePath)
	logger.WithDataset(s.logger, userCtx.UserID, id).Info("dataset deleted", zap.String("name", dataset.Name))
	return nil
}

// Report renders the PDF report of an owned dataset
func (s *DatasetService) Report(ctx context.Context, id uint) (*ReportFile, error) {
	dataset, err := s.loadWithRecords(ctx, id)
	if err != nil {
		return nil, err
	}

	layout := report.Build(report.Input{
		Dataset:     dataset,
		Records:     dataset.Records,
		GeneratedAt: s.now(),
		MaxRows:     s.cfg.ReportMaxRows,
	})
	content, err := report.Render(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	return &ReportFile{
		Filename: report.Filename(dataset.ID, dataset.Name),
		Content:  content,
	}, nil
}

// SweepRetention re-applies the retention cap to every user above it and
// returns how many datasets were evicted
func (s *DatasetService) SweepRetention(ctx context.Context) (int, error) {
	userIDs, err := s.datasetRepo.UsersOverCap(ctx, s.cfg.RetentionCap)
	if err != nil {
		return 0, fmt.Errorf("failed to find users over retention cap: %w", err)
	}

	total := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		unlock := s.locks.Lock(userID)
		evicted, err := s.datasetRepo.EnforceRetention(ctx, userID, s.cfg.RetentionCap)
		unlock()
		if err != nil {
			return total, fmt.Errorf("failed to enforce retention for user %d: %w", userID, err)
		}
		for i := range evicted {
			s.removeArchive(ctx, evicted[i].SourcePath)
		}
		total += len(evicted)
		s.logger.Info("retention sweep evicted datasets",
			zap.Uint("user_id", userID),
			zap.Int("evicted", len(evicted)),
		)
	}
	return total, nil
}

func (s *DatasetService) loadWithRecords(ctx context.Context, id uint) (*domain.Dataset, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	dataset, err := s.datasetRepo.GetWithRecordsForUser(ctx, id, userCtx.UserID)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return dataset, nil
}

func (s *DatasetService) lookupError(id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: dataset %d", ErrNotFound, id)
	}
	return fmt.Errorf("failed to load dataset %d: %w", id, err)
}

func (s *DatasetService) archiving() bool {
	return s.cfg.ArchiveUploads && s.storage != nil
}

// removeArchive deletes an archived upload; failures are only logged
func (s *DatasetService) removeArchive(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("failed to remove archived upload", zap.String("key", key), zap.Error(err))
	}
}
