package assignment

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
)

// LookupHandler serves assignment lookups by pod address:
// GET /v1/assignment?ip=<pod-ip>.
type LookupHandler struct {
	Tracker *Tracker
	Log     logr.Logger
}

type lookupResponse struct {
	Pod       string           `json:"pod,omitempty"`
	Namespace string           `json:"namespace,omitempty"`
	Node      string           `json:"node,omitempty"`
	State     string           `json:"state,omitempty"`
	Binding   string           `json:"binding,omitempty"`
	Bindings  []string         `json:"bindings,omitempty"`
	Identity  *identityPayload `json:"identity,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type identityPayload struct {
	Name       string                        `json:"name"`
	Type       identityv1alpha1.IdentityType `json:"type"`
	ResourceID string                        `json:"resourceID"`
	ClientID   string                        `json:"clientID"`
	TenantID   string                        `json:"tenantID,omitempty"`
}

func (h *LookupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, lookupResponse{Error: "method not allowed"})
		return
	}

	ip := r.URL.Query().Get("ip")
	if ip == "" {
		h.writeJSON(w, http.StatusBadRequest, lookupResponse{Error: "missing ip parameter"})
		return
	}
	if net.ParseIP(ip) == nil {
		h.writeJSON(w, http.StatusBadRequest, lookupResponse{Error: "invalid ip parameter"})
		return
	}

	entry, ok := h.Tracker.Lookup(ip)
	if !ok {
		if !h.Tracker.Ready() {
			// Fail closed while the snapshot is incomplete.
			h.writeJSON(w, http.StatusServiceUnavailable, lookupResponse{Error: "assignment snapshot not ready"})
			return
		}
		h.writeJSON(w, http.StatusNotFound, lookupResponse{Error: "no pod tracked for address"})
		return
	}

	h.Log.V(1).Info("assignment lookup",
		"ip", ip,
		"pod", entry.Pod,
		"state", entry.State,
		"binding", entry.Binding,
	)

	namespace, name, _ := strings.Cut(entry.Pod, "/")
	response := lookupResponse{
		Pod:       name,
		Namespace: namespace,
		Node:      entry.NodeName,
		State:     string(entry.State),
		Binding:   entry.Binding,
		Bindings:  entry.Bindings,
	}
	if entry.State == StateBound && entry.Identity != nil {
		response.Identity = &identityPayload{
			Name:       entry.Identity.Name,
			Type:       entry.Identity.Type,
			ResourceID: entry.Identity.ResourceID,
			ClientID:   entry.Identity.ClientID,
			TenantID:   entry.Identity.TenantID,
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *LookupHandler) writeJSON(w http.ResponseWriter, status int, response lookupResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.Log.Error(err, "unable to encode lookup response")
	}
}
