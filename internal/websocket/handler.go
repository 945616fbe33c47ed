package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/model"
)

type memberLookup interface {
	GetMember(ctx context.Context, groupID, userID string) (*model.Membership, error)
}

// Handler upgrades authenticated requests to a change feed. Without a
// groupId query the client follows its own personal ledger; with one, the
// caller must be a member of that group.
type Handler struct {
	hub            *Hub
	groups         memberLookup
	originPatterns []string
	logger         *slog.Logger
}

// NewHandler builds the feed endpoint. An empty originPatterns accepts any
// origin.
func NewHandler(hub *Hub, groups memberLookup, originPatterns []string, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, groups: groups, originPatterns: originPatterns, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	topic := UserTopic(userID)
	if groupID := r.URL.Query().Get("groupId"); groupID != "" {
		m, err := h.groups.GetMember(r.Context(), groupID, userID)
		if err != nil {
			h.logger.Error("membership lookup", "group_id", groupID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if m == nil {
			writeError(w, http.StatusForbidden, "not a member of this group")
			return
		}
		topic = GroupTopic(groupID)
	}

	opts := &ws.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := ws.Accept(w, r, opts)
	if err != nil {
		h.logger.Warn("accept", "error", err)
		return
	}
	defer conn.CloseNow()

	h.logger.Debug("client connected", "topic", topic)
	NewClient(h.hub, conn, topic).Run(r.Context())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
