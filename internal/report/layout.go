// Package report builds and renders the dataset PDF report.
//
// Build produces a Layout, a plain description of every line and table cell in
// the report, so content rules are testable without parsing PDF output. Render
// turns a Layout into PDF bytes.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chemviz/equipment-api/internal/domain"
)

const (
	Title              = "Chemical Equipment Parameter Report"
	EmptyDataMessage   = "No equipment data available"
	FooterText         = "End of Report"
	DefaultMaxDataRows = 50

	maxNameCell = 20
	maxTypeCell = 15
)

// Input is everything a report needs
type Input struct {
	Dataset     *domain.Dataset
	Records     []domain.EquipmentRecord
	GeneratedAt time.Time
	MaxRows     int
}

type InfoLine struct {
	Label string
	Value string
}

type StatRow struct {
	Metric string
	Value  string
	Unit   string
}

type DistributionRow struct {
	Type       string
	Count      int
	Percentage string
}

type DataRow struct {
	Name        string
	Type        string
	Flowrate    string
	Pressure    string
	Temperature string
}

// Layout is the full report content in print order
type Layout struct {
	Title        string
	GeneratedOn  string
	Info         []InfoLine
	Statistics   []StatRow
	Distribution []DistributionRow
	DataRows     []DataRow
	// Omitted is the truncation note, empty when every record is shown
	Omitted      string
	EmptyMessage string
	Footer       string
}

// Build lays out the report for a dataset and its records
func Build(in Input) Layout {
	maxRows := in.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxDataRows
	}
	ds := in.Dataset

	l := Layout{
		Title:       Title,
		GeneratedOn: "Generated on: " + in.GeneratedAt.Format("January 02, 2006 at 15:04:05"),
		Info: []InfoLine{
			{Label: "Dataset Name", Value: ds.Name},
			{Label: "Upload Date", Value: ds.UploadedAt.UTC().Format("2006-01-02 15:04:05")},
			{Label: "Total Records", Value: fmt.Sprint(ds.TotalRecords)},
			{Label: "Dataset ID", Value: fmt.Sprint(ds.ID)},
		},
		Statistics: []StatRow{
			{Metric: "Average Flowrate", Value: fmt.Sprintf("%.2f", ds.AvgFlowrate), Unit: "m³/h"},
			{Metric: "Average Pressure", Value: fmt.Sprintf("%.2f", ds.AvgPressure), Unit: "bar"},
			{Metric: "Average Temperature", Value: fmt.Sprintf("%.2f", ds.AvgTemperature), Unit: "°C"},
		},
		Distribution: distributionRows(ds.Distribution(), ds.TotalRecords),
		Footer:       FooterText,
	}

	if len(in.Records) == 0 {
		l.EmptyMessage = EmptyDataMessage
		return l
	}

	shown := in.Records
	if len(shown) > maxRows {
		shown = shown[:maxRows]
		l.Omitted = fmt.Sprintf("... %d more records omitted", len(in.Records)-maxRows)
	}
	l.DataRows = make([]DataRow, len(shown))
	for i, r := range shown {
		l.DataRows[i] = DataRow{
			Name:        truncate(r.EquipmentName, maxNameCell),
			Type:        truncate(r.EquipmentType, maxTypeCell),
			Flowrate:    fmt.Sprintf("%.1f", r.Flowrate),
			Pressure:    fmt.Sprintf("%.1f", r.Pressure),
			Temperature: fmt.Sprintf("%.1f", r.Temperature),
		}
	}
	return l
}

// distributionRows sorts by count descending, then type name
func distributionRows(dist domain.TypeDistribution, total int) []DistributionRow {
	rows := make([]DistributionRow, 0, len(dist))
	for t, count := range dist {
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		rows = append(rows, DistributionRow{Type: t, Count: count, Percentage: fmt.Sprintf("%.1f%%", pct)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Type < rows[j].Type
	})
	return rows
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Filename is the attachment name for a dataset report
func Filename(datasetID uint, datasetName string) string {
	safe := strings.NewReplacer(" ", "_", "/", "_", `\`, "_", `"`, "_").Replace(datasetName)
	safe = truncate(safe, 50)
	return fmt.Sprintf("equipment_report_%d_%s.pdf", datasetID, safe)
}
