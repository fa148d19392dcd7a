package mapper

import (
	"fmt"

	"github.com/chemviz/equipment-api/internal/domain"
)

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
}

// ToDatasetListItemDTO converts Dataset to its list representation
func ToDatasetListItemDTO(dataset *domain.Dataset) domain.DatasetListItemDTO {
	return domain.DatasetListItemDTO{
		ID:           dataset.ID,
		Name:         dataset.Name,
		UploadedAt:   dataset.UploadedAt.UTC(),
		TotalRecords: dataset.TotalRecords,
	}
}

// ToDatasetListDTO converts a slice of datasets, never returning nil
func ToDatasetListDTO(datasets []domain.Dataset) []domain.DatasetListItemDTO {
	dtos := make([]domain.DatasetListItemDTO, len(datasets))
	for i := range datasets {
		dtos[i] = ToDatasetListItemDTO(&datasets[i])
	}
	return dtos
}

// ToDatasetSummaryDTO converts Dataset to DatasetSummaryDTO
func ToDatasetSummaryDTO(dataset *domain.Dataset) domain.DatasetSummaryDTO {
	return domain.DatasetSummaryDTO{
		ID:               dataset.ID,
		Name:             dataset.Name,
		UploadedAt:       dataset.UploadedAt.UTC(),
		TotalRecords:     dataset.TotalRecords,
		AvgFlowrate:      dataset.AvgFlowrate,
		AvgPressure:      dataset.AvgPressure,
		AvgTemperature:   dataset.AvgTemperature,
		TypeDistribution: dataset.Distribution(),
	}
}

// ToEquipmentRecordDTO converts EquipmentRecord to EquipmentRecordDTO
func ToEquipmentRecordDTO(record *domain.EquipmentRecord) domain.EquipmentRecordDTO {
	return domain.EquipmentRecordDTO{
		ID:            record.ID,
		EquipmentName: record.EquipmentName,
		EquipmentType: record.EquipmentType,
		Flowrate:      record.Flowrate,
		Pressure:      record.Pressure,
		Temperature:   record.Temperature,
	}
}

// ToDatasetDetailDTO converts Dataset with its preloaded records
func ToDatasetDetailDTO(dataset *domain.Dataset) domain.DatasetDetailDTO {
	records := make([]domain.EquipmentRecordDTO, len(dataset.Records))
	for i := range dataset.Records {
		records[i] = ToEquipmentRecordDTO(&dataset.Records[i])
	}
	return domain.DatasetDetailDTO{
		DatasetSummaryDTO: ToDatasetSummaryDTO(dataset),
		EquipmentRecords:  records,
	}
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}
