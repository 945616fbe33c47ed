package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
)

type GroupHandler struct {
	groups    *store.GroupStore
	users     *store.UserStore
	publisher events.Publisher
	logger    *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, us *store.UserStore, pub events.Publisher, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, users: us, publisher: pub, logger: logger}
}

// Create makes the caller the admin of a new group.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	userID := auth.UserID(r.Context())
	g, err := h.groups.Create(r.Context(), name, userID)
	if err != nil {
		h.logger.Error("create group", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	publish(r.Context(), h.publisher, h.logger, events.New(events.EntityGroup, events.ActionCreated, g.ID, g.ID, userID))
	writeJSON(w, http.StatusCreated, g)
}

// ListForUser returns the groups of {userId}, which must be the caller.
func (h *GroupHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "cannot list another user's groups")
		return
	}

	groups, err := h.groups.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list groups", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Invite adds an existing user to the group. Runs behind RequireMember, and
// behind RequireAdmin when invites are restricted to admins.
func (h *GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}

	invitee, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("get invitee", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to invite user")
		return
	}
	if invitee == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	groupID := r.PathValue("groupId")
	m, err := h.groups.AddMember(r.Context(), groupID, req.UserID, req.Role)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "user is already a member of this group")
		return
	}
	if err != nil {
		h.logger.Error("add member", "group_id", groupID, "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to invite user")
		return
	}

	publish(r.Context(), h.publisher, h.logger, events.New(events.EntityMember, events.ActionCreated, req.UserID, groupID, auth.UserID(r.Context())))
	writeJSON(w, http.StatusCreated, m)
}

// Members lists the group's members. Runs behind RequireMember.
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupId")
	members, err := h.groups.ListMembers(r.Context(), groupID)
	if err != nil {
		h.logger.Error("list members", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}
