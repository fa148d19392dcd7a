package ingest_test

import (
	"strings"
	"testing"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_MeansAndDistribution(t *testing.T) {
	rows := []ingest.Row{
		{EquipmentName: "P-1", EquipmentType: "Pump", Flowrate: 100, Pressure: 5, Temperature: 80},
		{EquipmentName: "P-2", EquipmentType: "Pump", Flowrate: 200, Pressure: 7, Temperature: 90},
		{EquipmentName: "V-1", EquipmentType: "Valve", Flowrate: 0, Pressure: 3, Temperature: -10},
	}

	s := ingest.Summarize(rows)

	assert.Equal(t, 3, s.TotalRecords)
	assert.InDelta(t, 100.0, s.AvgFlowrate, 1e-9)
	assert.InDelta(t, 5.0, s.AvgPressure, 1e-9)
	assert.InDelta(t, 160.0/3.0, s.AvgTemperature, 1e-9)
	assert.Equal(t, domain.TypeDistribution{"Pump": 2, "Valve": 1}, s.TypeDistribution)
	assert.Equal(t, s.TotalRecords, s.TypeDistribution.Total())
}

func TestSummarize_Empty(t *testing.T) {
	s := ingest.Summarize(nil)

	assert.Equal(t, 0, s.TotalRecords)
	assert.NotNil(t, s.TypeDistribution)
	assert.Zero(t, s.AvgFlowrate)
}

func TestSummarize_AfterValidation(t *testing.T) {
	body := validHeader +
		"P-1,Pump,120,5.2,110\n" +
		"P-2,Pump,,5.2,110\n" +
		"C-1,Compressor,95,8.4,95\n" +
		"V-1,Valve,60,4.1,105\n"

	table, err := newValidator().Validate(upload("sample.csv", body))
	require.NoError(t, err)

	s := ingest.Summarize(table.Rows)

	// Persisted count equals input rows minus dropped rows
	assert.Equal(t, 4-table.DroppedMissing-table.DroppedInvalid, s.TotalRecords)
	assert.Equal(t, 3, s.TotalRecords)
	assert.InDelta(t, (120.0+95+60)/3, s.AvgFlowrate, 1e-9)
	assert.Equal(t, s.TotalRecords, s.TypeDistribution.Total())
}

func TestRecords_AssignsDataset(t *testing.T) {
	rows := []ingest.Row{
		{EquipmentName: "P-1", EquipmentType: "Pump", Flowrate: 1, Pressure: 2, Temperature: 3},
	}

	records := ingest.Records(42, rows)

	require.Len(t, records, 1)
	assert.Equal(t, uint(42), records[0].DatasetID)
	assert.Equal(t, "P-1", records[0].EquipmentName)
	assert.Equal(t, 3.0, records[0].Temperature)
	assert.True(t, strings.HasPrefix(records[0].EquipmentType, "Pump"))
}
