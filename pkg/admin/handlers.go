package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shubapp/devproxy/internal/id"
	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/httputil"
	"github.com/shubapp/devproxy/pkg/requestlog"
	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/scenario"
	"github.com/shubapp/devproxy/pkg/store"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]any{
		"status": "ok",
		"uptime": a.Uptime(),
	})
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	version := a.version
	if version == "" {
		version = "dev"
	}

	status := map[string]any{
		"status":    "ok",
		"version":   version,
		"adminPort": a.port,
		"uptime":    a.Uptime(),
	}
	if mocks, err := a.store.ListMocks(); err == nil {
		active := 0
		for _, m := range mocks {
			if m.Active {
				active++
			}
		}
		status["mockCount"] = len(mocks)
		status["activeMocks"] = active
	}
	if a.switcher != nil {
		status["activeScenario"] = a.switcher.ActiveScenarioID()
		status["ruleSetVersion"] = a.switcher.Current().Version
	}
	if a.dispatcher != nil {
		status["recordMode"] = a.dispatcher.RecordMode()
	}
	if a.metrics != nil {
		status["metrics"] = a.metrics.Snapshot()
	}
	httputil.WriteOK(w, status)
}

// --- mocks ---

func (a *API) handleListMocks(w http.ResponseWriter, _ *http.Request) {
	mocks, err := a.store.ListMocks()
	if err != nil {
		a.storeError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"mocks": mocks, "count": len(mocks)})
}

func (a *API) handleGetMock(w http.ResponseWriter, r *http.Request) {
	mock, err := a.store.GetMock(r.PathValue("id"))
	if err != nil {
		a.storeError(w, err)
		return
	}
	httputil.WriteOK(w, mock)
}

func (a *API) handleCreateMock(w http.ResponseWriter, r *http.Request) {
	var mock rule.MockRule
	if err := json.NewDecoder(r.Body).Decode(&mock); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeValidationFailed, "invalid JSON body: "+err.Error())
		return
	}
	if mock.ID == "" {
		mock.ID = id.Mock()
	}
	if err := mock.Validate(); err != nil {
		a.validationError(w, err)
		return
	}
	created, err := a.store.CreateMock(&mock)
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.publishMockSetChanged("created", created.ID)
	httputil.WriteCreated(w, created)
}

func (a *API) handleUpdateMock(w http.ResponseWriter, r *http.Request) {
	var mock rule.MockRule
	if err := json.NewDecoder(r.Body).Decode(&mock); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeValidationFailed, "invalid JSON body: "+err.Error())
		return
	}
	mock.ID = r.PathValue("id")
	if err := mock.Validate(); err != nil {
		a.validationError(w, err)
		return
	}
	if err := a.store.UpdateMock(&mock); err != nil {
		a.storeError(w, err)
		return
	}
	a.publishMockSetChanged("updated", mock.ID)
	httputil.WriteOK(w, mock)
}

func (a *API) handleDeleteMock(w http.ResponseWriter, r *http.Request) {
	mockID := r.PathValue("id")
	if err := a.store.DeleteMock(mockID); err != nil {
		a.storeError(w, err)
		return
	}
	a.publishMockSetChanged("deleted", mockID)
	httputil.WriteNoContent(w)
}

// --- scenarios ---

func (a *API) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	scenarios, err := a.store.ListScenarios()
	if err != nil {
		a.storeError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

func (a *API) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	scn, err := a.store.GetScenario(r.PathValue("id"))
	if err != nil {
		a.storeError(w, err)
		return
	}
	httputil.WriteOK(w, scn)
}

func (a *API) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var scn rule.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scn); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeValidationFailed, "invalid JSON body: "+err.Error())
		return
	}
	if scn.ID == "" {
		scn.ID = id.Scenario()
	}
	if err := scn.Validate(); err != nil {
		a.validationError(w, err)
		return
	}
	created, err := a.store.CreateScenario(&scn)
	if err != nil {
		a.storeError(w, err)
		return
	}
	httputil.WriteCreated(w, created)
}

func (a *API) handleActiveScenario(w http.ResponseWriter, _ *http.Request) {
	current := a.switcher.Current()
	httputil.WriteOK(w, map[string]any{
		"scenarioId": current.ScenarioID,
		"version":    current.Version,
		"ruleCount":  current.Len(),
	})
}

func (a *API) handleActivateScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.PathValue("id")
	if err := a.switcher.Activate(scenarioID); err != nil {
		a.scenarioError(w, err)
		return
	}
	current := a.switcher.Current()
	httputil.WriteOK(w, map[string]any{
		"scenarioId": current.ScenarioID,
		"version":    current.Version,
		"ruleCount":  current.Len(),
	})
}

func (a *API) handleDeactivateScenario(w http.ResponseWriter, _ *http.Request) {
	if err := a.switcher.Deactivate(); err != nil {
		a.scenarioError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"scenarioId": ""})
}

func (a *API) handleCloneScenario(w http.ResponseWriter, r *http.Request) {
	clone, err := a.switcher.Clone(r.PathValue("id"))
	if err != nil {
		a.scenarioError(w, err)
		return
	}
	httputil.WriteCreated(w, clone)
}

// --- record mode ---

func (a *API) handleGetRecordMode(w http.ResponseWriter, _ *http.Request) {
	if a.dispatcher == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, "proxy is not running")
		return
	}
	httputil.WriteOK(w, map[string]bool{"enabled": a.dispatcher.RecordMode()})
}

func (a *API) handleSetRecordMode(w http.ResponseWriter, r *http.Request) {
	if a.dispatcher == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, "proxy is not running")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeValidationFailed, "invalid JSON body: "+err.Error())
		return
	}
	a.dispatcher.SetRecordMode(body.Enabled)
	a.log.Info("record mode changed", "enabled", body.Enabled)
	httputil.WriteOK(w, map[string]bool{"enabled": body.Enabled})
}

// --- request log ---

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if a.reqlog == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, "request log is not enabled")
		return
	}
	filter, err := parseRequestFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, httputil.CodeValidationFailed, err.Error())
		return
	}
	entries := a.reqlog.List(filter)
	httputil.WriteOK(w, map[string]any{
		"requests": entries,
		"count":    len(entries),
		"total":    a.reqlog.Count(),
	})
}

func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	if a.reqlog == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, "request log is not enabled")
		return
	}
	entry := a.reqlog.Get(r.PathValue("id"))
	if entry == nil {
		httputil.WriteNotFound(w, httputil.CodeNotFound, "request log entry not found")
		return
	}
	httputil.WriteOK(w, entry)
}

func (a *API) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	if a.reqlog == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, "request log is not enabled")
		return
	}
	a.reqlog.Clear()
	httputil.WriteNoContent(w)
}

// --- routing table ---

func (a *API) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	if a.router == nil {
		httputil.WriteOK(w, map[string]any{"routes": []any{}, "count": 0})
		return
	}
	routes := a.router.Routes()
	httputil.WriteOK(w, map[string]any{"routes": routes, "count": len(routes)})
}

// --- shared helpers ---

func parseRequestFilter(r *http.Request) (*requestlog.Filter, error) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Project:   q.Get("project"),
		Method:    q.Get("method"),
		Path:      q.Get("path"),
		Outcome:   q.Get("outcome"),
		MatchedID: q.Get("mockId"),
	}
	for name, dst := range map[string]*int{
		"status": &filter.StatusCode,
		"limit":  &filter.Limit,
		"offset": &filter.Offset,
	} {
		if raw := q.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.New("invalid " + name + " parameter: " + raw)
			}
			*dst = n
		}
	}
	if raw := q.Get("hasError"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("invalid hasError parameter: " + raw)
		}
		filter.HasError = &b
	}
	return filter, nil
}

func (a *API) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFound(w, httputil.CodeNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		httputil.WriteError(w, http.StatusConflict, httputil.CodeDuplicateID, err.Error())
	case errors.Is(err, store.ErrReadOnly):
		httputil.WriteError(w, http.StatusForbidden, "read_only", err.Error())
	default:
		a.log.Error("store operation failed", "error", err)
		httputil.WriteInternalError(w, err.Error())
	}
}

func (a *API) scenarioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scenario.ErrUnknownScenario):
		httputil.WriteNotFound(w, httputil.CodeUnknownScenario, err.Error())
	case errors.Is(err, scenario.ErrCyclicInheritance):
		httputil.WriteError(w, http.StatusConflict, httputil.CodeCyclicInheritance, err.Error())
	case errors.Is(err, scenario.ErrNotInitialized):
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNotReady, err.Error())
	default:
		a.storeError(w, err)
	}
}

func (a *API) validationError(w http.ResponseWriter, err error) {
	var verr *rule.ValidationError
	if errors.As(err, &verr) {
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, httputil.CodeValidationFailed,
			"validation failed", map[string]string{
				"field":   verr.Field,
				"message": verr.Message,
			})
		return
	}
	httputil.WriteBadRequest(w, httputil.CodeValidationFailed, err.Error())
}

func (a *API) publishMockSetChanged(action, mockID string) {
	if a.events == nil {
		return
	}
	a.events.Publish(events.TopicMockSetChanged, map[string]string{
		"action": action,
		"mockId": mockID,
	})
}
