package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/charmap"
)

// Required CSV columns, matched case-sensitively after trimming header cells
const (
	ColumnName        = "Equipment Name"
	ColumnType        = "Type"
	ColumnFlowrate    = "Flowrate"
	ColumnPressure    = "Pressure"
	ColumnTemperature = "Temperature"
)

// RequiredColumns lists the columns every upload must carry
var RequiredColumns = []string{ColumnName, ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}

// AllowedContentTypes are the declared upload content types accepted
var AllowedContentTypes = []string{
	"text/csv",
	"text/plain",
	"application/csv",
	"application/vnd.ms-excel",
	"application/octet-stream",
}

// naTokens are the cell values treated as missing, matching the pandas read_csv defaults
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

var (
	equipmentNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	equipmentTypePattern = regexp.MustCompile(`^[A-Za-z\s-]+$`)
	unsafeFilenameChars  = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.]`)
)

// maxReportedRowErrors bounds the itemized details of a pattern rejection
const maxReportedRowErrors = 20

// ValidationError is a client-facing rejection of an upload
type ValidationError struct {
	Reason  string
	Details interface{}
}

func (e *ValidationError) Error() string {
	if s, ok := e.Details.(string); ok && s != "" {
		return e.Reason + ": " + s
	}
	return e.Reason
}

func newValidationError(reason string, details interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Details: details}
}

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Upload is a received file as seen by the validator
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Limits bounds what the validator accepts
type Limits struct {
	MaxRows           int
	MaxBytes          int64
	AllowedExtensions []string
}

// Row is one validated equipment row
type Row struct {
	Line          int     `validate:"-"`
	EquipmentName string  `validate:"required,max=100,equipname"`
	EquipmentType string  `validate:"required,max=50,equiptype"`
	Flowrate      float64 `validate:"gte=0,lte=10000"`
	Pressure      float64 `validate:"gte=0,lte=1000"`
	Temperature   float64 `validate:"gte=-273.15,lte=5000"`
}

// Table is the validator's output
type Table struct {
	Rows           []Row
	DroppedMissing int
	DroppedInvalid int
}

// Warnings describes rows that were silently dropped
func (t *Table) Warnings() []string {
	warnings := []string{}
	if t.DroppedMissing > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows were dropped due to missing values", t.DroppedMissing))
	}
	if t.DroppedInvalid > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows were dropped due to invalid numeric values", t.DroppedInvalid))
	}
	return warnings
}

// Validator turns an uploaded CSV into a clean Table or a ValidationError
type Validator struct {
	limits   Limits
	validate *validator.Validate
}

// NewValidator creates a validator with the given limits
func NewValidator(limits Limits) *Validator {
	if limits.MaxRows <= 0 {
		limits.MaxRows = 10000
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = 10 * 1024 * 1024
	}
	if len(limits.AllowedExtensions) == 0 {
		limits.AllowedExtensions = []string{".csv"}
	}

	v := validator.New()
	_ = v.RegisterValidation("equipname", func(fl validator.FieldLevel) bool {
		return equipmentNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("equiptype", func(fl validator.FieldLevel) bool {
		return equipmentTypePattern.MatchString(fl.Field().String())
	})

	return &Validator{limits: limits, validate: v}
}

// Limits returns the limits in effect
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate checks the file gate, parses and cleans the CSV.
// Any returned error is a *ValidationError unless reading the body failed.
func (v *Validator) Validate(u Upload) (*Table, error) {
	if err := v.checkFile(u); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(u.Body, v.limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(raw)) > v.limits.MaxBytes {
		return nil, fileError(fmt.Sprintf("File size exceeds maximum allowed size of %s.", formatMB(v.limits.MaxBytes)))
	}
	if len(raw) == 0 {
		return nil, fileError("Uploaded file is empty.")
	}

	header, records, err := parseCSV(decode(raw))
	if err != nil {
		return nil, err
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	if len(records) > v.limits.MaxRows {
		return nil, newValidationError("File too large",
			fmt.Sprintf("CSV contains %d rows, maximum allowed is %d", len(records), v.limits.MaxRows))
	}
	if len(records) == 0 {
		return nil, newValidationError("Empty dataset", "CSV file contains no data rows")
	}

	table := &Table{}
	complete := make([]rawRow, 0, len(records))
	for i, rec := range records {
		row, ok := pick(rec, index)
		if !ok {
			table.DroppedMissing++
			continue
		}
		row.line = i + 1
		complete = append(complete, row)
	}
	if len(complete) == 0 {
		return nil, newValidationError("No valid data", "All rows contain missing values")
	}

	rows := make([]Row, 0, len(complete))
	for _, r := range complete {
		flow, ok1 := parseNumber(r.flowrate)
		pres, ok2 := parseNumber(r.pressure)
		temp, ok3 := parseNumber(r.temperature)
		if !ok1 || !ok2 || !ok3 {
			table.DroppedInvalid++
			continue
		}
		rows = append(rows, Row{
			Line:          r.line,
			EquipmentName: strings.TrimSpace(r.name),
			EquipmentType: strings.TrimSpace(r.equipmentType),
			Flowrate:      flow,
			Pressure:      pres,
			Temperature:   temp,
		})
	}
	if len(rows) == 0 {
		return nil, newValidationError("Invalid data", "All numeric values are invalid")
	}

	if violations := checkRanges(rows); len(violations) > 0 {
		return nil, newValidationError("Invalid data ranges", violations)
	}

	if err := checkLengths(rows); err != nil {
		return nil, err
	}

	if err := v.checkPatterns(rows); err != nil {
		return nil, err
	}

	table.Rows = rows
	return table, nil
}

func (v *Validator) checkFile(u Upload) error {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	allowed := false
	for _, a := range v.limits.AllowedExtensions {
		if strings.ToLower(a) == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return fileError(fmt.Sprintf("Invalid file type. Only %s files are allowed.", strings.Join(v.limits.AllowedExtensions, ", ")))
	}

	if u.Size > v.limits.MaxBytes {
		return fileError(fmt.Sprintf("File size exceeds maximum allowed size of %s.", formatMB(v.limits.MaxBytes)))
	}
	if u.Size == 0 {
		return fileError("Uploaded file is empty.")
	}

	if ct := normalizeContentType(u.ContentType); ct != "" {
		ok := false
		for _, a := range AllowedContentTypes {
			if ct == a {
				ok = true
				break
			}
		}
		if !ok {
			return fileError(fmt.Sprintf("Invalid content type: %s. Expected CSV file.", ct))
		}
	}
	return nil
}

func fileError(msg string) *ValidationError {
	return newValidationError("Invalid file upload", map[string][]string{"file": {msg}})
}

func formatMB(b int64) string {
	return strconv.FormatFloat(float64(b)/(1024*1024), 'f', -1, 64) + "MB"
}

// normalizeContentType lowercases the media type and drops parameters such as charset
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// decode strips a UTF-8 BOM and falls back to Latin-1 for non-UTF-8 input
func decode(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func parseCSV(text string) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, newValidationError("Empty file", "The uploaded CSV file is empty")
	}
	if err != nil {
		return nil, nil, newValidationError("CSV parsing error", "Unable to parse CSV file: "+err.Error())
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, newValidationError("CSV parsing error", "Unable to parse CSV file: "+err.Error())
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, nil, newValidationError("CSV parsing error",
				fmt.Sprintf("Unable to parse CSV file: Expected %d fields in line %d, saw %d", len(header), line, len(rec)))
		}
		records = append(records, rec)
	}
	return header, records, nil
}

type columns struct {
	name, equipmentType, flowrate, pressure, temperature int
}

func columnIndex(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := pos[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return columns{}, newValidationError("Invalid CSV format", map[string]interface{}{
			"message":          "Missing required columns: " + strings.Join(missing, ", "),
			"missing_columns":  missing,
			"required_columns": RequiredColumns,
			"found_columns":    header,
		})
	}

	return columns{
		name:          pos[ColumnName],
		equipmentType: pos[ColumnType],
		flowrate:      pos[ColumnFlowrate],
		pressure:      pos[ColumnPressure],
		temperature:   pos[ColumnTemperature],
	}, nil
}

type rawRow struct {
	line                                                   int
	name, equipmentType, flowrate, pressure, temperature string
}

// pick extracts the required cells, reporting false when any is missing
func pick(rec []string, c columns) (rawRow, bool) {
	cell := func(i int) (string, bool) {
		if i >= len(rec) {
			return "", false
		}
		return rec[i], !isMissing(rec[i])
	}

	var row rawRow
	var ok bool
	if row.name, ok = cell(c.name); !ok {
		return row, false
	}
	if row.equipmentType, ok = cell(c.equipmentType); !ok {
		return row, false
	}
	if row.flowrate, ok = cell(c.flowrate); !ok {
		return row, false
	}
	if row.pressure, ok = cell(c.pressure); !ok {
		return row, false
	}
	if row.temperature, ok = cell(c.temperature); !ok {
		return row, false
	}
	return row, true
}

func isMissing(s string) bool {
	_, na := naTokens[strings.TrimSpace(s)]
	return na
}

// parseNumber accepts decimal notation only. NaN counts as invalid; infinities
// parse and are left to the range check.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func checkRanges(rows []Row) []string {
	var flowBad, presBad, tempBad bool
	for _, r := range rows {
		if r.Flowrate < domain.MinFlowrate || r.Flowrate > domain.MaxFlowrate {
			flowBad = true
		}
		if r.Pressure < domain.MinPressure || r.Pressure > domain.MaxPressure {
			presBad = true
		}
		if r.Temperature < domain.MinTemperature || r.Temperature > domain.MaxTemperature {
			tempBad = true
		}
	}

	var violations []string
	if flowBad {
		violations = append(violations, "Flowrate values must be between 0 and 10,000")
	}
	if presBad {
		violations = append(violations, "Pressure values must be between 0 and 1,000")
	}
	if tempBad {
		violations = append(violations, "Temperature values must be between -273.15 and 5,000")
	}
	return violations
}

func checkLengths(rows []Row) error {
	for _, r := range rows {
		if utf8.RuneCountInString(r.EquipmentName) > domain.MaxEquipmentNameLength {
			return newValidationError("Invalid data", "Equipment Name exceeds 100 characters")
		}
	}
	for _, r := range rows {
		if utf8.RuneCountInString(r.EquipmentType) > domain.MaxEquipmentTypeLength {
			return newValidationError("Invalid data", "Equipment Type exceeds 50 characters")
		}
	}
	return nil
}

func (v *Validator) checkPatterns(rows []Row) error {
	var problems []string
	total := 0
	for i := range rows {
		err := v.validate.Struct(&rows[i])
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("row validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			total++
			if len(problems) < maxReportedRowErrors {
				problems = append(problems, rowProblem(rows[i].Line, fe))
			}
		}
	}
	if total == 0 {
		return nil
	}
	if total > len(problems) {
		problems = append(problems, fmt.Sprintf("... and %d more", total-len(problems)))
	}
	return newValidationError("Invalid data", problems)
}

func rowProblem(line int, fe validator.FieldError) string {
	switch fe.Tag() {
	case "equipname":
		return fmt.Sprintf("Row %d: Equipment name can only contain letters, numbers, hyphens, and underscores.", line)
	case "equiptype":
		return fmt.Sprintf("Row %d: Equipment type can only contain letters, spaces, and hyphens.", line)
	default:
		return fmt.Sprintf("Row %d: %s: %s", line, fe.Field(), domain.GetValidationMessage(fe.Tag()))
	}
}

// SanitizeFilename reduces an uploaded filename to a safe dataset name:
// directory components and unsafe characters are removed, and the result is
// capped at the dataset name length.
func SanitizeFilename(filename string) (string, error) {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimFunc(name, unicode.IsSpace)
	if name == "" || name == "." || name == ".." {
		return "", newValidationError("Dataset validation failed", map[string][]string{"name": {"Invalid filename."}})
	}
	if utf8.RuneCountInString(name) > domain.MaxDatasetNameLength {
		runes := []rune(name)
		name = string(runes[:domain.MaxDatasetNameLength])
	}
	return name, nil
}
