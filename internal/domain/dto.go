package domain

import "time"

// DTOs for API requests and responses. Field names follow the snake_case
// wire format consumed by the desktop client.

type UserDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=149"`
	Email    string `json:"email" validate:"required,max=254,contains=@,contains=."`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Message string  `json:"message"`
	Token   string  `json:"token"`
	User    UserDTO `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// DatasetListItemDTO is the lightweight list representation
type DatasetListItemDTO struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	UploadedAt   time.Time `json:"uploaded_at"`
	TotalRecords int       `json:"total_records"`
}

// DatasetSummaryDTO carries aggregates without per-row records
type DatasetSummaryDTO struct {
	ID               uint             `json:"id"`
	Name             string           `json:"name"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	TotalRecords     int              `json:"total_records"`
	AvgFlowrate      float64          `json:"avg_flowrate"`
	AvgPressure      float64          `json:"avg_pressure"`
	AvgTemperature   float64          `json:"avg_temperature"`
	TypeDistribution TypeDistribution `json:"type_distribution"`
}

type EquipmentRecordDTO struct {
	ID            uint    `json:"id"`
	EquipmentName string  `json:"equipment_name"`
	EquipmentType string  `json:"equipment_type"`
	Flowrate      float64 `json:"flowrate"`
	Pressure      float64 `json:"pressure"`
	Temperature   float64 `json:"temperature"`
}

// DatasetDetailDTO is the summary plus every owned record
type DatasetDetailDTO struct {
	DatasetSummaryDTO
	EquipmentRecords []EquipmentRecordDTO `json:"equipment_records"`
}

// UploadResponse is returned after a successful CSV upload
type UploadResponse struct {
	Message  string            `json:"message"`
	Dataset  DatasetSummaryDTO `json:"dataset"`
	Warnings []string          `json:"warnings"`
}
