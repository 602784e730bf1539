package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/scheduler"
	"github.com/jordigilh/regtrack/internal/store"
)

type settingOut struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
}

type settingsResponse struct {
	Settings  []settingOut     `json:"settings"`
	Scheduler scheduler.Status `json:"scheduler"`
}

// listSettings returns every AppSetting row plus the live Scheduler
// state (spec §4.2 "GET /settings"), the same pairing the original
// polling-status endpoint returned.
func (a *API) listSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := a.store.ListSettings(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	out := make([]settingOut, len(rows))
	for i, row := range rows {
		out[i] = settingOut{Key: row.Key, Value: row.Value, Description: row.Description}
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Settings:  out,
		Scheduler: a.scheduler.Status(),
	})
}

type putSettingRequest struct {
	Value       string  `json:"value" validate:"required"`
	Description *string `json:"description"`
}

// putSetting upserts a single AppSetting by key (spec §4.2 "PUT
// /settings/{key}"). Writing either of the two scheduler-facing keys
// also applies the change live via Scheduler.UpdatePollingSchedule,
// mirroring the original polling-toggle handler's
// update-setting-then-update-scheduler pairing (spec §4.6 "dynamic
// reconfiguration").
func (a *API) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, a.log, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "decode request body"))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, a.log, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid request body"))
		return
	}

	if err := a.store.SetSetting(r.Context(), a.store.DB(), key, req.Value, req.Description); err != nil {
		writeError(w, a.log, err)
		return
	}

	if key == store.SettingPollingEnabled || key == store.PollingIntervalHoursKey {
		a.applyPollingSchedule(r.Context())
	}

	writeJSON(w, http.StatusOK, settingOut{Key: key, Value: req.Value, Description: req.Description})
}

// applyPollingSchedule re-reads AUTO_UPDATE_ENABLED/POLLING_INTERVAL_HOURS
// and pushes them into the live Scheduler.
func (a *API) applyPollingSchedule(ctx context.Context) {
	enabled := true
	if s, err := a.store.GetSetting(ctx, a.store.DB(), store.SettingPollingEnabled); err == nil && s != nil {
		if v, perr := strconv.ParseBool(s.Value); perr == nil {
			enabled = v
		}
	}

	intervalHours := 4
	if s, err := a.store.GetSetting(ctx, a.store.DB(), store.PollingIntervalHoursKey); err == nil && s != nil {
		if v, perr := strconv.ParseFloat(s.Value, 64); perr == nil {
			intervalHours = int(v)
		}
	}

	a.scheduler.UpdatePollingSchedule(enabled, intervalHours)
}
