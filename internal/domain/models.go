package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Parameter bounds shared by ingestion, persistence and reporting
const (
	MinFlowrate    = 0.0
	MaxFlowrate    = 10000.0
	MinPressure    = 0.0
	MaxPressure    = 1000.0
	MinTemperature = -273.15
	MaxTemperature = 5000.0

	MaxEquipmentNameLength = 100
	MaxEquipmentTypeLength = 50
	MaxDistributionKeyLen  = 100
	MaxDatasetNameLength   = 255

	// DefaultRetentionCap is the number of datasets kept per user
	DefaultRetentionCap = 5
)

// User is an account that owns datasets
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(254);not null"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string {
	return "users"
}

// AuthSession backs an issued bearer token. The token is valid only while
// its session row exists and has not expired.
type AuthSession struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (AuthSession) TableName() string {
	return "auth_sessions"
}

// IsExpired reports whether the session is past its expiry at the given time
func (s *AuthSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TypeDistribution maps an equipment type label to its record count
type TypeDistribution map[string]int

// Total returns the sum of all counts
func (d TypeDistribution) Total() int {
	total := 0
	for _, count := range d {
		total += count
	}
	return total
}

// Dataset is one uploaded CSV with its precomputed aggregates
type Dataset struct {
	ID               uint                                `gorm:"primaryKey"`
	UserID           uint                                `gorm:"not null;index:idx_datasets_user_uploaded,priority:1"`
	Name             string                              `gorm:"type:varchar(255);not null"`
	UploadedAt       time.Time                           `gorm:"not null;index:idx_datasets_user_uploaded,priority:2"`
	TotalRecords     int                                 `gorm:"not null"`
	AvgFlowrate      float64                             `gorm:"not null"`
	AvgPressure      float64                             `gorm:"not null"`
	AvgTemperature   float64                             `gorm:"not null"`
	TypeDistribution datatypes.JSONType[TypeDistribution] `gorm:"not null"`
	SourcePath       string                              `gorm:"type:varchar(500)"`

	User    *User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Records []EquipmentRecord `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

func (Dataset) TableName() string {
	return "datasets"
}

// Distribution returns the stored type distribution
func (d *Dataset) Distribution() TypeDistribution {
	dist := d.TypeDistribution.Data()
	if dist == nil {
		return TypeDistribution{}
	}
	return dist
}

// EquipmentRecord is one validated CSV row. Records are written once with
// their dataset and removed only when the dataset is removed.
type EquipmentRecord struct {
	ID            uint    `gorm:"primaryKey"`
	DatasetID     uint    `gorm:"not null;index:idx_equipment_dataset_type,priority:1"`
	EquipmentName string  `gorm:"type:varchar(100);not null;index"`
	EquipmentType string  `gorm:"type:varchar(50);not null;index:idx_equipment_dataset_type,priority:2"`
	Flowrate      float64 `gorm:"not null"`
	Pressure      float64 `gorm:"not null"`
	Temperature   float64 `gorm:"not null"`
}

func (EquipmentRecord) TableName() string {
	return "equipment_records"
}
