// Route registration for the admin API.

package admin

import (
	"net/http"

	"github.com/shubapp/devproxy/pkg/events"
)

func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /status", a.handleStatus)

	mux.HandleFunc("GET /mocks", a.handleListMocks)
	mux.HandleFunc("POST /mocks", a.handleCreateMock)
	mux.HandleFunc("GET /mocks/{id}", a.handleGetMock)
	mux.HandleFunc("PUT /mocks/{id}", a.handleUpdateMock)
	mux.HandleFunc("DELETE /mocks/{id}", a.handleDeleteMock)

	mux.HandleFunc("GET /scenarios", a.handleListScenarios)
	mux.HandleFunc("POST /scenarios", a.handleCreateScenario)
	mux.HandleFunc("GET /scenarios/active", a.handleActiveScenario)
	mux.HandleFunc("POST /scenarios/deactivate", a.handleDeactivateScenario)
	mux.HandleFunc("GET /scenarios/{id}", a.handleGetScenario)
	mux.HandleFunc("POST /scenarios/{id}/activate", a.handleActivateScenario)
	mux.HandleFunc("POST /scenarios/{id}/clone", a.handleCloneScenario)

	mux.HandleFunc("GET /record", a.handleGetRecordMode)
	mux.HandleFunc("PUT /record", a.handleSetRecordMode)

	mux.HandleFunc("GET /requests", a.handleListRequests)
	mux.HandleFunc("DELETE /requests", a.handleClearRequests)
	mux.HandleFunc("GET /requests/{id}", a.handleGetRequest)

	mux.HandleFunc("GET /routes", a.handleListRoutes)

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	if a.events != nil {
		mux.Handle("GET /events", events.NewWSHandler(a.events, a.log))
	}
}
