package handler

import "net/http"

// IndexResponse describes the API for clients that land on the root
type IndexResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type IndexHandler struct {
	name    string
	version string
}

func NewIndexHandler(name, version string) *IndexHandler {
	return &IndexHandler{name: name, version: version}
}

// Index godoc
// @Summary API index
// @Description Lists the available endpoints
// @Tags Index
// @Produce json
// @Success 200 {object} handler.IndexResponse
// @Router / [get]
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, IndexResponse{
		Name:    h.name,
		Version: h.version,
		Endpoints: map[string]string{
			"register":        "POST /api/auth/register",
			"login":           "POST /api/auth/login",
			"logout":          "POST /api/auth/logout",
			"current_user":    "GET /api/auth/user",
			"upload":          "POST /api/upload",
			"datasets":        "GET /api/datasets",
			"dataset_detail":  "GET /api/datasets/{id}",
			"dataset_summary": "GET /api/datasets/{id}/summary",
			"dataset_delete":  "DELETE /api/datasets/{id}",
			"dataset_report":  "GET /api/datasets/{id}/report/pdf",
		},
	})
}
