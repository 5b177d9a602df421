package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/linnemanlabs/sentinel/internal/notify"
)

func (a *API) handleGetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.rules.Rules(r.Context())
	if err != nil {
		a.internalError(w, r, err, "failed to list notification rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// handlePutRules replaces the whole rule set. The body is a plain JSON
// array; partial updates are not supported and the submitted order becomes
// the evaluation order.
func (a *API) handlePutRules(w http.ResponseWriter, r *http.Request) {
	var rules []notify.Rule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("rule %d: %v", i, err))
			return
		}
	}

	if err := a.rules.ReplaceRules(r.Context(), rules); err != nil {
		a.internalError(w, r, err, "failed to replace notification rules")
		return
	}

	rules, err := a.rules.Rules(r.Context())
	if err != nil {
		a.internalError(w, r, err, "failed to reload notification rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}
