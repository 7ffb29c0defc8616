/**
 * @description
 * HTTP handlers for the admin settings endpoints. These are guarded by the
 * internal API key middleware rather than user JWTs; they are intended for
 * the operations panel, not the mobile client.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// ListSettingsHandler returns the raw admin_settings rows. Secret values are
// masked; the panel shows whether a key is set, never the key itself.
func (h *WalletHandlers) ListSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.ListRawSettings(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_settings err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	masked := make(map[string]string, len(settings))
	for key, value := range settings {
		if strings.Contains(key, "secret") && value != "" {
			masked[key] = "••••"
			continue
		}
		masked[key] = value
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"settings": masked})
}

// UpdateSettingsHandler upserts admin settings values.
func (h *WalletHandlers) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(values) == 0 {
		h.writeError(w, http.StatusBadRequest, "No settings provided")
		return
	}

	if err := h.service.UpdateSettings(r.Context(), values); err != nil {
		log.Printf("level=error component=api endpoint=update_settings err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"updated": len(values)})
}
