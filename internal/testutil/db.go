package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter int64

// SetupTestDB creates an isolated in-memory SQLite database with the schema migrated.
// Each call gets its own named database so parallel tests never share state.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", sanitize(t.Name()), atomic.AddInt64(&dbCounter, 1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.AuthSession{},
		&domain.Dataset{},
		&domain.EquipmentRecord{},
	))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SetupPostgresTestDB connects to the PostgreSQL instance from docker-compose.
// The test is skipped unless TEST_POSTGRES=true.
func SetupPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") != "true" {
		t.Skip("set TEST_POSTGRES=true to run against PostgreSQL")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		getEnvOrDefault("DATABASE_HOST", "localhost"),
		getEnvOrDefault("DATABASE_PORT", "5432"),
		getEnvOrDefault("DATABASE_USER", "equipment_user"),
		getEnvOrDefault("DATABASE_PASSWORD", "equipment_password"),
		getEnvOrDefault("DATABASE_NAME", "equipment"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to test database. Ensure PostgreSQL is running.")
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.AuthSession{},
		&domain.Dataset{},
		&domain.EquipmentRecord{},
	))

	t.Cleanup(func() { CleanupTestData(t, db) })
	return db
}

// CleanupTestData removes all rows, children first
func CleanupTestData(t *testing.T, db *gorm.DB) {
	tables := []string{
		"equipment_records",
		"datasets",
		"auth_sessions",
		"users",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Note: Could not clean table %s: %v", table, err)
		}
	}
}

// CreateTestUser inserts an active user with a placeholder password hash
func CreateTestUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestDataset inserts a dataset with the given records and upload time.
// Aggregates are computed from the records.
func CreateTestDataset(t *testing.T, db *gorm.DB, userID uint, name string, uploadedAt time.Time, records []domain.EquipmentRecord) *domain.Dataset {
	t.Helper()

	dist := domain.TypeDistribution{}
	var flow, pres, temp float64
	for _, r := range records {
		dist[r.EquipmentType]++
		flow += r.Flowrate
		pres += r.Pressure
		temp += r.Temperature
	}
	n := float64(len(records))
	if n == 0 {
		n = 1
	}

	dataset := &domain.Dataset{
		UserID:           userID,
		Name:             name,
		UploadedAt:       uploadedAt,
		TotalRecords:     len(records),
		AvgFlowrate:      flow / n,
		AvgPressure:      pres / n,
		AvgTemperature:   temp / n,
		TypeDistribution: datatypes.NewJSONType(dist),
	}
	require.NoError(t, db.Omit("Records", "User").Create(dataset).Error)

	if len(records) > 0 {
		for i := range records {
			records[i].ID = 0
			records[i].DatasetID = dataset.ID
		}
		require.NoError(t, db.Create(&records).Error)
	}
	return dataset
}

// SampleRecords returns n valid records cycling through three equipment types
func SampleRecords(n int) []domain.EquipmentRecord {
	types := []string{"Pump", "Compressor", "Valve"}
	records := make([]domain.EquipmentRecord, n)
	for i := range records {
		records[i] = domain.EquipmentRecord{
			EquipmentName: fmt.Sprintf("EQ-%03d", i+1),
			EquipmentType: types[i%len(types)],
			Flowrate:      float64(100 + i),
			Pressure:      float64(5 + i%10),
			Temperature:   float64(80 + i%20),
		}
	}
	return records
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
