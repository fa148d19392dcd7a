package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/ingest"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/storage"
	"github.com/chemviz/equipment-api/internal/testutil"
	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const csvHeader = "Equipment Name,Type,Flowrate,Pressure,Temperature\n"

func testDatasetsConfig() *config.DatasetsConfig {
	return &config.DatasetsConfig{
		RetentionCap:      5,
		MaxRows:           10000,
		MaxUploadSizeMB:   10,
		AllowedExtensions: []string{".csv"},
		ReportMaxRows:     50,
	}
}

type datasetFixture struct {
	db   *gorm.DB
	svc  *DatasetService
	user *domain.User
	ctx  context.Context
}

func newDatasetFixture(t *testing.T, cfg *config.DatasetsConfig, store storage.Storage) *datasetFixture {
	db := testutil.SetupTestDB(t)
	svc := NewDatasetService(repository.NewDatasetRepository(db), store, cfg, zap.NewNop())

	// Each call advances the clock so upload order is unambiguous
	var mu sync.Mutex
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}

	user := testutil.CreateTestUser(t, db, "alice")
	return &datasetFixture{db: db, svc: svc, user: user, ctx: userContext(user)}
}

func userContext(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:   user.ID,
		Username: user.Username,
	})
}

func csvUpload(name, body string) ingest.Upload {
	return ingest.Upload{
		Filename:    name,
		ContentType: "text/csv",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func validCSV(rows int) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	types := []string{"Pump", "Compressor", "Valve"}
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "EQ-%03d,%s,%d,%d,%d\n", i+1, types[i%3], 100+i, 5, 80)
	}
	return b.String()
}

func (f *datasetFixture) upload(t *testing.T, name string, rows int) *domain.UploadResponse {
	t.Helper()
	resp, err := f.svc.Upload(f.ctx, csvUpload(name, validCSV(rows)))
	require.NoError(t, err)
	return resp
}

func TestDatasetService_Upload(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	body := csvHeader +
		"Pump-1,Pump,120.5,5.2,110\n" +
		"Valve-1,Valve,60,4.1,95\n" +
		"Pump-2,Pump,130,,110\n" +
		"Comp-1,Compressor,abc,8,150\n" +
		"Pump-3,Pump,100.5,5,100\n"

	resp, err := f.svc.Upload(f.ctx, csvUpload("plant.csv", body))

	require.NoError(t, err)
	assert.Equal(t, "CSV file uploaded successfully", resp.Message)
	assert.Equal(t, "plant.csv", resp.Dataset.Name)
	assert.Equal(t, 3, resp.Dataset.TotalRecords)
	assert.InDelta(t, (120.5+60+100.5)/3, resp.Dataset.AvgFlowrate, 1e-9)
	assert.InDelta(t, (5.2+4.1+5)/3, resp.Dataset.AvgPressure, 1e-9)
	assert.InDelta(t, (110.0+95+100)/3, resp.Dataset.AvgTemperature, 1e-9)
	assert.Equal(t, domain.TypeDistribution{"Pump": 2, "Valve": 1}, resp.Dataset.TypeDistribution)
	assert.Equal(t, []string{
		"1 rows were dropped due to missing values",
		"1 rows were dropped due to invalid numeric values",
	}, resp.Warnings)

	detail, err := f.svc.Get(f.ctx, resp.Dataset.ID)
	require.NoError(t, err)
	require.Len(t, detail.EquipmentRecords, 3)
	assert.Equal(t, "Pump-1", detail.EquipmentRecords[0].EquipmentName)
	assert.Equal(t, "Valve-1", detail.EquipmentRecords[2].EquipmentName)
}

func TestDatasetService_Upload_RejectedStoresNothing(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)

	_, err := f.svc.Upload(f.ctx, csvUpload("bad.csv", csvHeader+"P-1,Pump,-5,5,100\n"))

	var ve *ingest.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Invalid data ranges", ve.Reason)
	assert.Contains(t, ve.Details, "Flowrate values must be between 0 and 10,000")

	var count int64
	require.NoError(t, f.db.Model(&domain.Dataset{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDatasetService_Upload_RequiresUser(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)

	_, err := f.svc.Upload(context.Background(), csvUpload("a.csv", validCSV(1)))

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDatasetService_SixthUploadEvictsOldest(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)

	var ids []uint
	for i := 1; i <= 6; i++ {
		ids = append(ids, f.upload(t, fmt.Sprintf("set-%d.csv", i), 2).Dataset.ID)
	}

	list, err := f.svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, ids[5], list[0].ID)
	assert.Equal(t, ids[1], list[4].ID)

	_, err = f.svc.Get(f.ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)

	var orphans int64
	require.NoError(t, f.db.Model(&domain.EquipmentRecord{}).Where("dataset_id = ?", ids[0]).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestDatasetService_ConcurrentUploadsKeepCap(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Upload(f.ctx, csvUpload(fmt.Sprintf("c-%d.csv", i), validCSV(3)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, f.db.Model(&domain.Dataset{}).Where("user_id = ?", f.user.ID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
	assert.Zero(t, f.svc.locks.size())
}

func TestDatasetService_ForeignDatasetIsNotFound(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	owned := f.upload(t, "mine.csv", 2)

	other := testutil.CreateTestUser(t, f.db, "bob")
	otherCtx := userContext(other)

	_, err := f.svc.Get(otherCtx, owned.Dataset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Summary(otherCtx, owned.Dataset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Report(otherCtx, owned.Dataset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(otherCtx, owned.Dataset.ID), ErrNotFound)

	// Still there for the owner
	_, err = f.svc.Summary(f.ctx, owned.Dataset.ID)
	assert.NoError(t, err)
}

func TestDatasetService_Summary(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	uploaded := f.upload(t, "s.csv", 6)

	summary, err := f.svc.Summary(f.ctx, uploaded.Dataset.ID)

	require.NoError(t, err)
	assert.Equal(t, uploaded.Dataset.ID, summary.ID)
	assert.Equal(t, 6, summary.TotalRecords)
	assert.Equal(t, 6, summary.TypeDistribution.Total())
	assert.InDelta(t, 102.5, summary.AvgFlowrate, 1e-9)
}

func TestDatasetService_Delete(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	uploaded := f.upload(t, "d.csv", 4)

	require.NoError(t, f.svc.Delete(f.ctx, uploaded.Dataset.ID))

	_, err := f.svc.Get(f.ctx, uploaded.Dataset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(f.ctx, uploaded.Dataset.ID), ErrNotFound)

	var records int64
	require.NoError(t, f.db.Model(&domain.EquipmentRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestDatasetService_Report(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	uploaded := f.upload(t, "big plant.csv", 120)

	file, err := f.svc.Report(f.ctx, uploaded.Dataset.ID)

	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("equipment_report_%d_big_plant.csv.pdf", uploaded.Dataset.ID), file.Filename)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))

	r, err := pdf.NewReader(bytes.NewReader(file.Content), int64(len(file.Content)))
	require.NoError(t, err)
	text, err := r.GetPlainText()
	require.NoError(t, err)
	content, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Contains(t, string(content), "70 more records omitted")
}

func TestDatasetService_SweepRetention(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		testutil.CreateTestDataset(t, f.db, f.user.ID, fmt.Sprintf("seed-%d.csv", i), base.Add(time.Duration(i)*time.Hour), testutil.SampleRecords(1))
	}

	evicted, err := f.svc.SweepRetention(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, evicted)
	list, err := f.svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "seed-7.csv", list[0].Name)
	assert.Equal(t, "seed-3.csv", list[4].Name)

	evicted, err = f.svc.SweepRetention(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestDatasetService_ArchivesUploads(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	cfg := testDatasetsConfig()
	cfg.ArchiveUploads = true
	cfg.RetentionCap = 1
	f := newDatasetFixture(t, cfg, store)

	first := f.upload(t, "first.csv", 2)
	var stored domain.Dataset
	require.NoError(t, f.db.First(&stored, first.Dataset.ID).Error)
	require.NotEmpty(t, stored.SourcePath)
	assert.True(t, strings.HasPrefix(stored.SourcePath, fmt.Sprintf("uploads/%d/", f.user.ID)))

	rc, err := store.Open(context.Background(), stored.SourcePath)
	require.NoError(t, err)
	archived, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, validCSV(2), string(archived))

	// Eviction removes the archived file of the evicted dataset
	f.upload(t, "second.csv", 2)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(stored.SourcePath)))
	assert.True(t, os.IsNotExist(err))
}

func TestUserLocks_SerializesPerUser(t *testing.T) {
	locks := newUserLocks()
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Zero(t, locks.size())
}

func TestDatasetService_StorageFailuresAreWrapped(t *testing.T) {
	f := newDatasetFixture(t, testDatasetsConfig(), nil)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.List(f.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list datasets: ")
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Upload(f.ctx, csvUpload("plant.csv", csvHeader+"P-1,Pump,5,1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save dataset: ")
	assert.False(t, ingest.IsValidationError(err))
}
