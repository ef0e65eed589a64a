package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/upscale"
)

const (
	settingTargetLanguage   = "default_target_language"
	settingMode             = "default_mode"
	settingMaxSentences     = "default_max_sentences"
	settingScaleFactor      = "default_scale_factor"
	settingTargetResolution = "default_target_resolution"
)

// settingsKeys defines which keys are allowed and their display metadata
var settingsKeys = []SettingDef{
	{Key: settingTargetLanguage, Label: "Translation Language", Group: "summary", Placeholder: service.DefaultTargetLanguage, validate: validateLanguage},
	{Key: settingMode, Label: "Summary Mode", Group: "summary", Placeholder: service.ModeClassic, validate: validateMode},
	{Key: settingMaxSentences, Label: "Summary Sentences", Group: "summary", Placeholder: "3", validate: validateMaxSentences},
	{Key: settingScaleFactor, Label: "Upscale Factor", Group: "thumbnail", Placeholder: "2", validate: validateScale},
	{Key: settingTargetResolution, Label: "Target Resolution", Group: "thumbnail", Placeholder: "4K", validate: validateResolution},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`

	validate func(string) error
}

func validateLanguage(v string) error {
	if len(v) < 2 || len(v) > 8 {
		return fmt.Errorf("language code must be 2-8 characters")
	}
	return nil
}

func validateMode(v string) error {
	if v != service.ModeClassic && v != service.ModeDistributed {
		return fmt.Errorf("mode must be %q or %q", service.ModeClassic, service.ModeDistributed)
	}
	return nil
}

func validateMaxSentences(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > service.MaxSentencesLimit {
		return fmt.Errorf("must be an integer between 1 and %d", service.MaxSentencesLimit)
	}
	return nil
}

func validateScale(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !upscale.ValidScale(f) {
		return fmt.Errorf("must be a number between 1 and %v", upscale.MaxScale)
	}
	return nil
}

func validateResolution(v string) error {
	_, err := upscale.ParseResolution(v)
	return err
}

// defaults are the stored fallbacks for request fields left empty.
type defaults struct {
	TargetLanguage   string
	Mode             string
	MaxSentences     int
	ScaleFactor      float64
	TargetResolution string
}

func loadDefaults(database *db.Database) defaults {
	var d defaults
	if database == nil {
		return d
	}
	d.TargetLanguage = database.GetSetting(settingTargetLanguage, "")
	d.Mode = database.GetSetting(settingMode, "")
	d.MaxSentences, _ = strconv.Atoi(database.GetSetting(settingMaxSentences, ""))
	d.ScaleFactor, _ = strconv.ParseFloat(database.GetSetting(settingScaleFactor, ""), 64)
	d.TargetResolution = database.GetSetting(settingTargetResolution, "")
	return d
}

type SettingsHandler struct {
	database *db.Database
}

func NewSettingsHandler(database *db.Database) *SettingsHandler {
	return &SettingsHandler{database: database}
}

// GetSettings returns every known setting with its stored value
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		jsonError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	result := make([]SettingResponse, 0, len(settingsKeys))
	for _, def := range settingsKeys {
		val := all[def.Key]
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   val != "",
		})
	}

	jsonResponse(w, result, http.StatusOK)
}

// UpdateSettings validates and saves settings from the request body. An
// empty value clears the setting; unknown keys are rejected.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if !decodeJSON(w, r, &updates) {
		return
	}

	defs := make(map[string]SettingDef, len(settingsKeys))
	for _, def := range settingsKeys {
		defs[def.Key] = def
	}

	for key, value := range updates {
		def, ok := defs[key]
		if !ok {
			jsonError(w, "unknown setting: "+key, http.StatusBadRequest)
			return
		}
		if value == "" {
			continue
		}
		if err := def.validate(value); err != nil {
			jsonError(w, key+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	for key, value := range updates {
		if err := h.database.SetSetting(key, value); err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
