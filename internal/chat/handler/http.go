package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"roomchat/internal/chat"
	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/roster"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type HTTPHandler struct {
	svc    ChatService
	roster RosterNotifier
	clock  clock.Clock
	log    *zap.SugaredLogger
}

func NewHTTPHandler(svc ChatService, notifier RosterNotifier, clk clock.Clock, log *zap.SugaredLogger) *HTTPHandler {
	return &HTTPHandler{svc: svc, roster: notifier, clock: clk, log: log}
}

// Router mounts every chat route under /api/v1 behind bearer auth. The
// health route stays public.
func (h *HTTPHandler) Router(tm *common.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(common.RequestLogger(h.log))
	router.Use(tm.HTTPAuth)
	h.Register(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func (h *HTTPHandler) Register(api *mux.Router) {
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	sessions := api.PathPrefix("/chat").Subrouter()
	sessions.HandleFunc("/init", h.InitChat).Methods(http.MethodPost)
	sessions.HandleFunc("/reinit", h.ReinitChat).Methods(http.MethodPost)
	sessions.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	rooms := api.PathPrefix("/rooms/{roomID}").Subrouter()
	rooms.HandleFunc("/chat", h.ProvisionRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/chat", h.GetGroupInfo).Methods(http.MethodGet)
	rooms.HandleFunc("/chat", h.RetireGroup).Methods(http.MethodDelete)
	rooms.HandleFunc("/chat/join", h.JoinChat).Methods(http.MethodPost)
	rooms.HandleFunc("/chat/members", h.InviteMember).Methods(http.MethodPost)
	rooms.HandleFunc("/participants", h.Participant).Methods(http.MethodPost)

	groups := api.PathPrefix("/groups/{groupID}").Subrouter()
	groups.HandleFunc("/messages", h.ListMessages).Methods(http.MethodGet)
	groups.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "roomchat"})
}

// principal writes a 401 when the request carries no caller.
func principal(w http.ResponseWriter, r *http.Request) (common.Principal, bool) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, common.ErrUnauthenticated)
	}
	return p, ok
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	badRequest(w, "malformed request body")
	return false
}

func (h *HTTPHandler) InitChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.InitChat(r.Context(), p)
	if err != nil {
		h.log.Warnw("init chat failed", "actor", p.ActorID(), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) ReinitChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ReinitChat(r.Context(), p)
	if err != nil {
		h.log.Warnw("reinit chat failed", "actor", p.ActorID(), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.svc.Logout(p)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type provisionRequest struct {
	HostAddress string `json:"hostAddress"`
}

// ProvisionRoom is called when the room goes live. The host defaults to
// the caller.
func (h *HTTPHandler) ProvisionRoom(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req provisionRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.HostAddress) == "" {
		req.HostAddress = p.Address
	}
	roomID := mux.Vars(r)["roomID"]
	groupID, err := h.svc.ProvisionRoom(r.Context(), roomID, req.HostAddress)
	if err != nil {
		h.log.Errorw("provision room failed", "room", roomID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID, "groupId": groupID})
}

func (h *HTTPHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetGroupInfo(r.Context(), mux.Vars(r)["roomID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandler) RetireGroup(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	res, err := h.svc.RetireGroup(r.Context(), roomID)
	if err != nil {
		h.log.Errorw("retire group failed", "room", roomID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type pendingJoin struct {
	chat.JoinResult
	Pending bool   `json:"pending"`
	Message string `json:"message"`
}

// JoinChat answers 202 with pending set while the room has no group yet. A
// room that has ended is a plain 409.
func (h *HTTPHandler) JoinChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomID"]
	res, err := h.svc.JoinChat(r.Context(), p, roomID)
	switch {
	case errors.Is(err, common.ErrGroupNotProvisioned) && !errors.Is(err, common.ErrRoomRetired):
		writeJSON(w, http.StatusAccepted, pendingJoin{
			JoinResult: res,
			Pending:    true,
			Message:    common.UserMessage(common.KindGroupNotProvisioned),
		})
	case err != nil:
		h.log.Warnw("join chat failed", "actor", p.ActorID(), "room", roomID, "attempts", res.Attempts, "error", err)
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type inviteRequest struct {
	Address string `json:"address"`
}

func (h *HTTPHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		badRequest(w, "address is required")
		return
	}
	res, err := h.svc.InviteMember(r.Context(), mux.Vars(r)["roomID"], req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type participantRequest struct {
	Type        roster.EventType `json:"type"`
	FID         uint64           `json:"fid"`
	Address     string           `json:"address"`
	Username    string           `json:"username"`
	DisplayName string           `json:"displayName"`
	PfpURL      string           `json:"pfpUrl"`
}

// Participant queues a roster change for the room. Delivery to the
// observers is asynchronous.
func (h *HTTPHandler) Participant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.Type {
	case "":
		req.Type = roster.ParticipantJoined
	case roster.ParticipantJoined, roster.ParticipantLeft:
	default:
		badRequest(w, "unknown participant event type")
		return
	}
	if req.FID == 0 && req.Address == "" {
		badRequest(w, "fid or address is required")
		return
	}
	ev := roster.ParticipantEvent{
		Type:        req.Type,
		RoomID:      mux.Vars(r)["roomID"],
		FID:         req.FID,
		Address:     req.Address,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		PfpURL:      req.PfpURL,
		At:          h.clock.Now(),
	}
	if !h.roster.NotifyAsync(ev) {
		h.log.Warnw("roster queue rejected event", "room", ev.RoomID, "fid", ev.FID)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"queued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *HTTPHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, okLimit := queryInt(r, "limit")
	offset, okOffset := queryInt(r, "offset")
	if !okLimit || !okOffset {
		badRequest(w, "limit and offset must be non-negative integers")
		return
	}
	msgs, err := h.svc.ListMessages(r.Context(), p, mux.Vars(r)["groupID"], limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}

// SendMessage sends a reply when replyTo is set and plain text otherwise.
func (h *HTTPHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var out chat.Outgoing
	if !decode(w, r, &out) {
		return
	}
	groupID := mux.Vars(r)["groupID"]
	var (
		id  string
		err error
	)
	if out.ReplyTo != "" {
		id, err = h.svc.SendReply(r.Context(), p, groupID, out)
	} else {
		id, err = h.svc.SendText(r.Context(), p, groupID, out)
	}
	if err != nil {
		h.log.Warnw("send failed", "actor", p.ActorID(), "group", groupID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"messageId": id})
}
