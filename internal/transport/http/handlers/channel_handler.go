package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/service"
	"github.com/avukic/skolar/internal/transport/http/middleware"
	"github.com/avukic/skolar/pkg/validator"
)

type ChannelHandler struct {
	channelService   *service.ChannelService
	directoryService *service.DirectoryService
}

func NewChannelHandler(channelService *service.ChannelService, directoryService *service.DirectoryService) *ChannelHandler {
	return &ChannelHandler{
		channelService:   channelService,
		directoryService: directoryService,
	}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var input service.CreateChannelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateChannel(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ch, err := h.channelService.Create(r.Context(), principal, input)
	if err != nil {
		writeServiceError(w, "create channel", err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// List is the channel directory: every channel the principal can access.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	channels, err := h.directoryService.List(r.Context(), principal)
	if err != nil {
		writeServiceError(w, "list channels", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	ch, err := h.channelService.Get(r.Context(), principal, channelID)
	if err != nil {
		writeServiceError(w, "get channel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

type inviteInput struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
}

func (h *ChannelHandler) Invite(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	channelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid channel ID")
		return
	}

	var input inviteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if len(input.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_MEMBERS", "member_ids is required")
		return
	}

	ch, err := h.channelService.Invite(r.Context(), principal, channelID, input.MemberIDs)
	if err != nil {
		writeServiceError(w, "invite to channel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
