package client

import (
	"fmt"
	"time"
)

// User is an account as returned by the API
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is the authenticated state returned by Login and Register.
// Pass it to every call that needs authentication.
type Session struct {
	Token string
	User  User
}

// DatasetListItem is one entry of the dataset list
type DatasetListItem struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	UploadedAt   time.Time `json:"uploaded_at"`
	TotalRecords int       `json:"total_records"`
}

// DatasetSummary carries a dataset's aggregates
type DatasetSummary struct {
	ID               uint           `json:"id"`
	Name             string         `json:"name"`
	UploadedAt       time.Time      `json:"uploaded_at"`
	TotalRecords     int            `json:"total_records"`
	AvgFlowrate      float64        `json:"avg_flowrate"`
	AvgPressure      float64        `json:"avg_pressure"`
	AvgTemperature   float64        `json:"avg_temperature"`
	TypeDistribution map[string]int `json:"type_distribution"`
}

// EquipmentRecord is one stored CSV row
type EquipmentRecord struct {
	ID            uint    `json:"id"`
	EquipmentName string  `json:"equipment_name"`
	EquipmentType string  `json:"equipment_type"`
	Flowrate      float64 `json:"flowrate"`
	Pressure      float64 `json:"pressure"`
	Temperature   float64 `json:"temperature"`
}

// Dataset is a summary plus every record
type Dataset struct {
	DatasetSummary
	EquipmentRecords []EquipmentRecord `json:"equipment_records"`
}

// UploadResult is returned after a successful upload
type UploadResult struct {
	Message  string         `json:"message"`
	Dataset  DatasetSummary `json:"dataset"`
	Warnings []string       `json:"warnings"`
}

// Report is a downloaded PDF report
type Report struct {
	Filename string
	Content  []byte
}

// APIError is a non-2xx response from the API
type APIError struct {
	Status  int
	Message string
	Details interface{}
}

func (e *APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type errorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details"`
}
