package ingest

import "github.com/chemviz/equipment-api/internal/domain"

// Summary holds the per-dataset aggregates stored alongside the records
type Summary struct {
	TotalRecords     int
	AvgFlowrate      float64
	AvgPressure      float64
	AvgTemperature   float64
	TypeDistribution domain.TypeDistribution
}

// Summarize computes totals, means and the type distribution over validated rows.
// An empty input yields a zero summary with an empty distribution.
func Summarize(rows []Row) Summary {
	s := Summary{
		TotalRecords:     len(rows),
		TypeDistribution: domain.TypeDistribution{},
	}
	if len(rows) == 0 {
		return s
	}

	var flow, pres, temp float64
	for _, r := range rows {
		flow += r.Flowrate
		pres += r.Pressure
		temp += r.Temperature
		s.TypeDistribution[r.EquipmentType]++
	}

	n := float64(len(rows))
	s.AvgFlowrate = flow / n
	s.AvgPressure = pres / n
	s.AvgTemperature = temp / n
	return s
}

// Records converts validated rows into records owned by datasetID
func Records(datasetID uint, rows []Row) []domain.EquipmentRecord {
	records := make([]domain.EquipmentRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.EquipmentRecord{
			DatasetID:     datasetID,
			EquipmentName: r.EquipmentName,
			EquipmentType: r.EquipmentType,
			Flowrate:      r.Flowrate,
			Pressure:      r.Pressure,
			Temperature:   r.Temperature,
		}
	}
	return records
}
