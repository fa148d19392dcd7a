package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/chemviz/equipment-api/internal/http/handler"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/service"
	"github.com/chemviz/equipment-api/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const csvHeader = "Equipment Name,Type,Flowrate,Pressure,Temperature\n"

type testEnv struct {
	db       *gorm.DB
	auth     *handler.AuthHandler
	datasets *handler.DatasetHandler
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	tokens, err := auth.NewTokenManager("handler-test-secret", time.Hour)
	require.NoError(t, err)
	sessions := auth.NewDBSessionStore(repository.NewSessionRepository(db))
	authService := service.NewAuthService(repository.NewUserRepository(db), sessions, tokens, logger)

	datasetService := service.NewDatasetService(repository.NewDatasetRepository(db), nil, &config.DatasetsConfig{
		RetentionCap:      5,
		MaxRows:           10000,
		MaxUploadSizeMB:   1,
		AllowedExtensions: []string{".csv"},
		ReportMaxRows:     50,
	}, logger)

	return &testEnv{
		db:       db,
		auth:     handler.NewAuthHandler(authService, logger, false),
		datasets: handler.NewDatasetHandler(datasetService, logger, false),
		tokens:   tokens,
	}
}

// routes mounts the dataset handlers so chi resolves the {id} parameter
func (e *testEnv) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/upload", e.datasets.Upload)
	r.Get("/api/datasets", e.datasets.List)
	r.Get("/api/datasets/{id}", e.datasets.Get)
	r.Get("/api/datasets/{id}/summary", e.datasets.Summary)
	r.Delete("/api/datasets/{id}", e.datasets.Delete)
	r.Get("/api/datasets/{id}/report/pdf", e.datasets.ReportPDF)
	return r
}

func asUser(r *http.Request, user *domain.User) *http.Request {
	return r.WithContext(auth.WithUserContext(r.Context(), &auth.UserContext{
		UserID:   user.ID,
		Username: user.Username,
	}))
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.ErrorResponse {
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// ============================================================================
// Auth
// ============================================================================

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.auth.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp domain.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestUser(t, env.db, "taken")

	tests := []struct {
		name        string
		req         domain.RegisterRequest
		detailField string
	}{
		{"duplicate username", domain.RegisterRequest{Username: "taken", Email: "t@example.com", Password: "secret1"}, "username"},
		{"short username", domain.RegisterRequest{Username: "ab", Email: "t@example.com", Password: "secret1"}, "username"},
		{"short password", domain.RegisterRequest{Username: "bob", Email: "t@example.com", Password: "12345"}, "password"},
		{"email without dot", domain.RegisterRequest{Username: "bob", Email: "bob@localhost", Password: "secret1"}, "email"},
		{"long username", domain.RegisterRequest{Username: strings.Repeat("u", 150), Email: "t@example.com", Password: "secret1"}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.auth.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", tt.req))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, "Registration failed", body.Error)
			details, ok := body.Details.(map[string]interface{})
			require.True(t, ok, "details should be a field map")
			assert.Contains(t, details, tt.detailField)
		})
	}
}

func TestAuthHandler_Register_DuplicateMessage(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestUser(t, env.db, "taken")

	w := httptest.NewRecorder()
	env.auth.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{
		Username: "taken", Email: "t@example.com", Password: "secret1",
	}))

	assert.Contains(t, w.Body.String(), "Username already exists")
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.auth.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.auth.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", domain.LoginRequest{Username: "alice", Password: "secret1"}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"token"`)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.auth.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", domain.LoginRequest{Username: "alice", Password: "wrong"}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, w).Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.auth.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
		env.auth.Login(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled account", func(t *testing.T) {
		require.NoError(t, env.db.Model(&domain.User{}).Where("username = ?", "alice").Update("is_active", false).Error)
		w := httptest.NewRecorder()
		env.auth.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", domain.LoginRequest{Username: "alice", Password: "secret1"}))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Account is disabled", decodeError(t, w).Error)
	})
}

func TestAuthHandler_UserAndLogout(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.auth.Register(rec, jsonRequest(t, http.MethodPost, "/api/auth/register", domain.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	}))
	var registered domain.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))

	claims, err := env.tokens.Parse(registered.Token)
	require.NoError(t, err)
	ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:    registered.User.ID,
		Username:  "alice",
		SessionID: claims.ID,
	})

	w := httptest.NewRecorder()
	env.auth.User(w, httptest.NewRequest(http.MethodGet, "/api/auth/user", nil).WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)
	var user domain.UserDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, registered.User, user)

	w = httptest.NewRecorder()
	env.auth.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil).WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logged out successfully")

	w = httptest.NewRecorder()
	env.auth.User(w, httptest.NewRequest(http.MethodGet, "/api/auth/user", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// Datasets
// ============================================================================

func TestDatasetHandler_Upload(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateTestUser(t, env.db, "alice")
	content := csvHeader +
		"Pump-1,Pump,120.5,5.2,110\n" +
		"Valve-1,Valve,60,4.1,\n" +
		"Comp-1,Compressor,95,8.4,95\n"

	w := httptest.NewRecorder()
	env.routes().ServeHTTP(w, asUser(uploadRequest(t, "file", "plant data.csv", content), user))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp domain.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CSV file uploaded successfully", resp.Message)
	assert.Equal(t, 2, resp.Dataset.TotalRecords)
	assert.Equal(t, "plant data.csv", resp.Dataset.Name)
	assert.Equal(t, []string{"1 rows were dropped due to missing values"}, resp.Warnings)
}

func TestDatasetHandler_Upload_Rejections(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateTestUser(t, env.db, "alice")

	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		error    string
		contains string
	}{
		{
			name: "missing file field", field: "attachment", filename: "data.csv",
			content: csvHeader + "P-1,Pump,1,1,1\n", error: "No file provided",
		},
		{
			name: "negative flowrate", field: "file", filename: "data.csv",
			content: csvHeader + "P-1,Pump,10,1,1\nP-2,Pump,-5,1,1\nP-3,Pump,10,1,1\n",
			error:   "Invalid data ranges", contains: "Flowrate",
		},
		{
			name: "missing pressure column", field: "file", filename: "data.csv",
			content: "Equipment Name,Type,Flowrate,Temperature\nP-1,Pump,10,1\n",
			error:   "Invalid CSV format", contains: "Pressure",
		},
		{
			name: "wrong extension", field: "file", filename: "data.xlsx",
			content: csvHeader + "P-1,Pump,1,1,1\n", error: "Invalid file upload",
		},
		{
			name: "header only", field: "file", filename: "data.csv",
			content: csvHeader, error: "Empty dataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.routes().ServeHTTP(w, asUser(uploadRequest(t, tt.field, tt.filename, tt.content), user))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.error, body.Error)
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&domain.Dataset{}).Count(&count).Error)
	assert.Zero(t, count, "rejected uploads must not persist anything")
}

func TestDatasetHandler_Upload_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateTestUser(t, env.db, "alice")
	content := csvHeader + strings.Repeat("Pump-1,Pump,120.5,5.2,110\n", 3<<20/26)

	w := httptest.NewRecorder()
	env.routes().ServeHTTP(w, asUser(uploadRequest(t, "file", "big.csv", content), user))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid file upload", decodeError(t, w).Error)
}

func TestDatasetHandler_ReadEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateTestUser(t, env.db, "alice")
	bob := testutil.CreateTestUser(t, env.db, "bob")
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	older := testutil.CreateTestDataset(t, env.db, alice.ID, "older.csv", base, testutil.SampleRecords(3))
	newer := testutil.CreateTestDataset(t, env.db, alice.ID, "newer.csv", base.Add(time.Hour), testutil.SampleRecords(4))
	foreign := testutil.CreateTestDataset(t, env.db, bob.ID, "bob.csv", base, testutil.SampleRecords(2))
	routes := env.routes()

	serve := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		routes.ServeHTTP(w, asUser(httptest.NewRequest(method, path, nil), alice))
		return w
	}

	t.Run("list newest first", func(t *testing.T) {
		w := serve(http.MethodGet, "/api/datasets")
		require.Equal(t, http.StatusOK, w.Code)
		var items []domain.DatasetListItemDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, newer.ID, items[0].ID)
		assert.Equal(t, older.ID, items[1].ID)
	})

	t.Run("detail", func(t *testing.T) {
		w := serve(http.MethodGet, fmt.Sprintf("/api/datasets/%d", newer.ID))
		require.Equal(t, http.StatusOK, w.Code)
		var detail domain.DatasetDetailDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Len(t, detail.EquipmentRecords, 4)
		assert.Equal(t, 4, detail.TotalRecords)
	})

	t.Run("summary omits records", func(t *testing.T) {
		w := serve(http.MethodGet, fmt.Sprintf("/api/datasets/%d/summary", older.ID))
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "equipment_records")
		assert.Contains(t, w.Body.String(), `"type_distribution"`)
	})

	t.Run("foreign dataset is not found", func(t *testing.T) {
		for _, path := range []string{
			fmt.Sprintf("/api/datasets/%d", foreign.ID),
			fmt.Sprintf("/api/datasets/%d/summary", foreign.ID),
			fmt.Sprintf("/api/datasets/%d/report/pdf", foreign.ID),
		} {
			w := serve(http.MethodGet, path)
			assert.Equal(t, http.StatusNotFound, w.Code, path)
			body := decodeError(t, w)
			assert.Equal(t, "Dataset not found", body.Error)
			assert.Equal(t, fmt.Sprintf("No dataset found with id %d for your account", foreign.ID), body.Details)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-1"} {
			w := serve(http.MethodGet, "/api/datasets/"+id)
			assert.Equal(t, http.StatusBadRequest, w.Code, id)
		}
	})
}

func TestDatasetHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateTestUser(t, env.db, "alice")
	dataset := testutil.CreateTestDataset(t, env.db, alice.ID, "plant.csv", time.Now().UTC(), testutil.SampleRecords(3))
	routes := env.routes()
	path := fmt.Sprintf("/api/datasets/%d", dataset.ID)

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, asUser(httptest.NewRequest(http.MethodDelete, path, nil), alice))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, asUser(httptest.NewRequest(http.MethodDelete, path, nil), alice))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var records int64
	require.NoError(t, env.db.Model(&domain.EquipmentRecord{}).Where("dataset_id = ?", dataset.ID).Count(&records).Error)
	assert.Zero(t, records)
}

func TestDatasetHandler_ReportPDF(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateTestUser(t, env.db, "alice")
	dataset := testutil.CreateTestDataset(t, env.db, alice.ID, "plant data.csv", time.Now().UTC(), testutil.SampleRecords(120))

	w := httptest.NewRecorder()
	env.routes().ServeHTTP(w, asUser(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d/report/pdf", dataset.ID), nil), alice))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t,
		fmt.Sprintf(`attachment; filename="equipment_report_%d_plant_data.csv.pdf"`, dataset.ID),
		w.Header().Get("Content-Disposition"))
	assert.Equal(t, fmt.Sprint(w.Body.Len()), w.Header().Get("Content-Length"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestDatasetHandler_ReportPDF_NonASCIIName(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateTestUser(t, env.db, "alice")
	dataset := testutil.CreateTestDataset(t, env.db, alice.ID, "Überdruck data.csv", time.Now().UTC(), testutil.SampleRecords(3))

	w := httptest.NewRecorder()
	env.routes().ServeHTTP(w, asUser(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/datasets/%d/report/pdf", dataset.ID), nil), alice))

	require.Equal(t, http.StatusOK, w.Code)
	disposition := w.Header().Get("Content-Disposition")
	assert.Equal(t,
		fmt.Sprintf(`attachment; filename="equipment_report_%d_Uberdruck_data.csv.pdf"; filename*=UTF-8''equipment_report_%d_%%C3%%9Cberdruck_data.csv.pdf`, dataset.ID, dataset.ID),
		disposition)
	for _, r := range disposition {
		assert.Less(t, r, rune(0x80), "header must stay ASCII")
	}

	_, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("equipment_report_%d_Überdruck_data.csv.pdf", dataset.ID), params["filename"])
}

func TestIndexHandler(t *testing.T) {
	w := httptest.NewRecorder()
	handler.NewIndexHandler("Equipment API", "1.0").Index(w, httptest.NewRequest(http.MethodGet, "/api", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handler.IndexResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "POST /api/upload", resp.Endpoints["upload"])
}
