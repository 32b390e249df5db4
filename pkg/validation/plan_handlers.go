package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modelrisk/validation-workflow/pkg/registry"
)

// planComponentResponse is the API-facing shape of a plan component.
type planComponentResponse struct {
	Component   string      `json:"component"`
	Expectation Expectation `json:"expectation"`
	Treatment   Treatment   `json:"treatment"`
	IsDeviation bool        `json:"isDeviation"`
	Rationale   string      `json:"rationale,omitempty"`
}

// planResponse is the API-facing shape of a plan with its components.
type planResponse struct {
	ID                string                  `json:"id"`
	RequestID         string                  `json:"requestId"`
	ConfigID          string                  `json:"configId"`
	Locked            bool                    `json:"locked"`
	LockedAt          *time.Time              `json:"lockedAt,omitempty"`
	MaterialDeviation bool                    `json:"materialDeviation"`
	OverallRationale  string                  `json:"overallRationale,omitempty"`
	Components        []planComponentResponse `json:"components"`
}

func planToResponse(plan *PlanRecord, components []PlanComponentRecord) planResponse {
	resp := planResponse{
		ID:                plan.ID,
		RequestID:         plan.RequestID,
		ConfigID:          plan.ConfigID,
		Locked:            plan.Locked(),
		LockedAt:          plan.LockedAt,
		MaterialDeviation: plan.MaterialDeviation,
		OverallRationale:  plan.OverallRationale,
		Components:        make([]planComponentResponse, len(components)),
	}
	for i := range components {
		c := &components[i]
		resp.Components[i] = planComponentResponse{
			Component:   c.Component,
			Expectation: c.Expectation,
			Treatment:   c.Treatment,
			IsDeviation: c.Deviation(),
			Rationale:   c.Rationale,
		}
	}
	return resp
}

// GetPlanHandler handles GET /requests/{requestId}/plan.
func GetPlanHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		plan, components, err := plans.GetPlanByRequest(requestID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get plan: %v", err))
			return
		}
		if plan == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("request %q has no validation plan", requestID))
			return
		}
		writeJSON(w, http.StatusOK, planToResponse(plan, components))
	}
}

// UpdatePlanHandler handles PATCH /requests/{requestId}/plan.
func UpdatePlanHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		var input PlanUpdate
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		plan, err := plans.UpdatePlan(requestID, input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		components, err := planComponents(plans.db, plan.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list components: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, planToResponse(plan, components))
	}
}

// UpdateComponentHandler handles
// PATCH /requests/{requestId}/plan/components/{component}.
func UpdateComponentHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestId")
		component := chi.URLParam(r, "component")
		var input ComponentUpdate
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		rec, err := plans.UpdateComponent(requestID, component, input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, planComponentResponse{
			Component:   rec.Component,
			Expectation: rec.Expectation,
			Treatment:   rec.Treatment,
			IsDeviation: rec.Deviation(),
			Rationale:   rec.Rationale,
		})
	}
}

// ForceResetPlanHandler handles POST /requests/{requestId}/plan/force-reset.
// Admin only, explicitly confirmed.
func ForceResetPlanHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerIdentity(r)
		if !caller.IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can force-reset a plan")
			return
		}
		requestID := chi.URLParam(r, "requestId")
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		plan, err := plans.ForceReset(requestID, caller.User, body.Confirm)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		components, err := planComponents(plans.db, plan.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list components: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, planToResponse(plan, components))
	}
}

// ForceResetModelHandler handles POST /models/{modelId}/force-reset.
// Admin only, explicitly confirmed. Resets the plan of every open request
// linked to the model.
func ForceResetModelHandler(plans *PlanEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerIdentity(r)
		if !caller.IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can force-reset plans")
			return
		}
		modelID := chi.URLParam(r, "modelId")
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resetIDs, err := plans.ForceResetModel(modelID, caller.User, body.Confirm)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resetRequestIds": resetIDs})
	}
}

// configRequest is the publish payload for a plan configuration.
type configRequest struct {
	Description string `json:"description,omitempty"`
	Items       []struct {
		Component   string      `json:"component"`
		RiskTier    string      `json:"riskTier"`
		Expectation Expectation `json:"expectation"`
	} `json:"items"`
}

// PublishConfigHandler handles POST /plan-configurations. Admin only.
func PublishConfigHandler(configs *ConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerIdentity(r)
		if !caller.IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can publish a configuration")
			return
		}
		var input configRequest
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		items := make([]ConfigItemInput, len(input.Items))
		for i, item := range input.Items {
			items[i] = ConfigItemInput{
				Component:   item.Component,
				RiskTier:    registry.RiskTier(item.RiskTier),
				Expectation: item.Expectation,
			}
		}
		config, err := configs.Publish(input.Description, caller.User, items)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, config)
	}
}

// ListConfigsHandler handles GET /plan-configurations.
func ListConfigsHandler(configs *ConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := configs.ListConfigs()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list configurations: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"configurations": records})
	}
}

// GetActiveConfigHandler handles GET /plan-configurations/active.
func GetActiveConfigHandler(configs *ConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		config, err := configs.ActiveConfig()
		if err != nil {
			writeEngineError(w, err)
			return
		}
		items, err := configs.ItemsFor(config.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list items: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"configuration": config, "items": items})
	}
}

// GetConfigHandler handles GET /plan-configurations/{configId}.
func GetConfigHandler(configs *ConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configID := chi.URLParam(r, "configId")
		config, err := configs.GetConfig(configID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get configuration: %v", err))
			return
		}
		if config == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("configuration %q not found", configID))
			return
		}
		items, err := configs.ItemsFor(config.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list items: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"configuration": config, "items": items})
	}
}

// ActivateConfigHandler handles POST /plan-configurations/{configId}/activate.
// Admin only.
func ActivateConfigHandler(configs *ConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !callerIdentity(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "only an admin can activate a configuration")
			return
		}
		configID := chi.URLParam(r, "configId")
		if err := configs.Activate(configID); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "activated", "configId": configID})
	}
}
