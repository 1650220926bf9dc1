package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marketplace/messagecenter/api/validator"
	"github.com/marketplace/messagecenter/inbox"
)

// An Inbox provides the conversation engine.
type Inbox interface {
	ListThreads(ctx context.Context, viewerID int64) ([]inbox.Thread, error)
	UnreadCount(ctx context.Context, viewerID int64) (int, error)
	MarkRead(ctx context.Context, target inbox.ReadTarget, viewerID int64) (int, error)
	MarkPostRead(ctx context.Context, postID, viewerID int64) (int, error)
	DeleteThread(ctx context.Context, dc inbox.DeleteContext, viewerID int64) (int, error)
	SendChatMessage(ctx context.Context, cm inbox.ChatMessage) (inbox.Message, error)
	Conversation(ctx context.Context, productID, viewerID, otherID int64) ([]inbox.Message, error)
}

// Authentication happens upstream. The gateway forwards the session's user
// in these headers.
const (
	userIDHeader   = "X-User-ID"
	userNameHeader = "X-User-Name"
)

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	Inbox  Inbox
	Val    *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /messages", a.listThreads)
	mux.HandleFunc("GET /messages/unread-count", a.unreadCount)
	mux.HandleFunc("POST /messages/read", a.markRead)
	mux.HandleFunc("POST /messages/read-all", a.markAllRead)
	mux.HandleFunc("POST /messages/threads/{key}/read", a.markThreadRead)
	mux.HandleFunc("POST /messages/posts/{postID}/read", a.markPostRead)
	mux.HandleFunc("POST /messages/delete", a.deleteThread)
	mux.HandleFunc("POST /messages/chat", a.sendChat)
	mux.HandleFunc("GET /messages/conversation", a.conversation)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// respondInboxError maps engine errors to a status. Anything unknown is a
// storage failure.
func (a *API) respondInboxError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, inbox.ErrNotAuthenticated):
		a.respondError(w, http.StatusUnauthorized, err, "Not authenticated")
	case errors.Is(err, inbox.ErrSelfConversation):
		a.respondError(w, http.StatusBadRequest, err, "Cannot start a conversation with yourself")
	case errors.Is(err, inbox.ErrEmptyContent):
		a.respondError(w, http.StatusBadRequest, err, "Message content is empty")
	case errors.Is(err, inbox.ErrProductNotFound):
		a.respondError(w, http.StatusNotFound, err, "Product not found")
	case errors.Is(err, inbox.ErrInvalidThreadKey):
		a.respondError(w, http.StatusBadRequest, err, "Invalid thread key")
	default:
		a.respondError(w, http.StatusInternalServerError, err, msg)
	}
}

func (a *API) respondSuccess(w http.ResponseWriter, changed int) {
	type response struct {
		Success bool `json:"success"`
		Changed int  `json:"changed"`
	}
	a.respond(w, http.StatusOK, response{Success: true, Changed: changed})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// decodeBody decodes and validates a JSON request body. It responds and
// returns false on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, body any) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return a.validateBody(w, body)
}

// viewer returns the authenticated user id, or 0 when there is none.
func viewer(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (a *API) listThreads(w http.ResponseWriter, r *http.Request) {
	type response struct {
		UnreadCount   int      `json:"unread_count"`
		Threads       []Thread `json:"threads"`
		CurrentUserID int64    `json:"current_user_id"`
	}

	userID := viewer(r)
	threads, err := a.Inbox.ListThreads(r.Context(), userID)
	if err != nil {
		a.respondInboxError(w, err, "Could not list threads")
		return
	}
	count, err := a.Inbox.UnreadCount(r.Context(), userID)
	if err != nil {
		a.respondInboxError(w, err, "Could not count unread messages")
		return
	}
	a.Logger.Info("Listed threads", "user_id", userID, "count", len(threads))

	res := response{
		UnreadCount:   count,
		Threads:       make([]Thread, len(threads)),
		CurrentUserID: userID,
	}
	for i, t := range threads {
		res.Threads[i] = apiThread(t)
	}
	a.respond(w, http.StatusOK, res)
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	type response struct {
		UnreadCount int `json:"unread_count"`
	}

	// The badge is rendered on every page, signed in or not.
	userID := viewer(r)
	if userID == 0 {
		a.respond(w, http.StatusOK, response{})
		return
	}
	count, err := a.Inbox.UnreadCount(r.Context(), userID)
	if err != nil {
		a.respondInboxError(w, err, "Could not count unread messages")
		return
	}
	a.respond(w, http.StatusOK, response{UnreadCount: count})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	type request struct {
		ID int64 `json:"id" validate:"required,gt=0"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	n, err := a.Inbox.MarkRead(r.Context(), inbox.ReadTarget{MessageID: body.ID}, viewer(r))
	if err != nil {
		a.respondInboxError(w, err, "Could not mark message read")
		return
	}
	a.respondSuccess(w, n)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.Inbox.MarkRead(r.Context(), inbox.ReadTarget{All: true}, viewer(r))
	if err != nil {
		a.respondInboxError(w, err, "Could not mark messages read")
		return
	}
	a.respondSuccess(w, n)
}

func (a *API) markThreadRead(w http.ResponseWriter, r *http.Request) {
	key, err := inbox.ParseThreadKey(r.PathValue("key"))
	if err != nil {
		a.respondInboxError(w, err, "Invalid thread key")
		return
	}
	n, err := a.Inbox.MarkRead(r.Context(), inbox.ReadTarget{Thread: &key}, viewer(r))
	if err != nil {
		a.respondInboxError(w, err, "Could not mark thread read")
		return
	}
	a.respondSuccess(w, n)
}

func (a *API) markPostRead(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postID")
	id, err := strconv.ParseInt(postID, 10, 64)
	if errs := a.Val.Validate(id, "gt=0"); err != nil || len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, map[string]string{"error": "Invalid post id " + postID})
		return
	}
	n, err := a.Inbox.MarkPostRead(r.Context(), id, viewer(r))
	if err != nil {
		a.respondInboxError(w, err, "Could not mark post messages read")
		return
	}
	a.respondSuccess(w, n)
}

func (a *API) deleteThread(w http.ResponseWriter, r *http.Request) {
	type request struct {
		ProductID   *int64 `json:"product_id" validate:"omitempty,gte=0"`
		PostID      *int64 `json:"post_id" validate:"omitempty,gt=0"`
		OtherUserID *int64 `json:"other_user_id" validate:"omitempty,gt=0"`
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	n, err := a.Inbox.DeleteThread(r.Context(), inbox.DeleteContext{
		ProductID:   body.ProductID,
		PostID:      body.PostID,
		OtherUserID: body.OtherUserID,
	}, viewer(r))
	if err != nil {
		a.respondInboxError(w, err, "Could not delete thread")
		return
	}
	a.respondSuccess(w, n)
}

func (a *API) sendChat(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			RecipientID int64  `json:"recipient_id" validate:"required,gt=0"`
			ProductID   int64  `json:"product_id" validate:"gte=0"`
			Content     string `json:"content" validate:"required,max=2000"`
		}
		response struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
	)

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	msg, err := a.Inbox.SendChatMessage(r.Context(), inbox.ChatMessage{
		SenderID:    viewer(r),
		SenderName:  r.Header.Get(userNameHeader),
		RecipientID: body.RecipientID,
		ProductID:   body.ProductID,
		Content:     body.Content,
	})
	if err != nil {
		a.respondInboxError(w, err, "Could not send message")
		return
	}

	a.respond(w, http.StatusCreated, response{
		ID:        msg.ID,
		Title:     msg.Title,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.Format(time.RFC1123),
	})
}

func (a *API) conversation(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages      []Message `json:"messages"`
		CurrentUserID int64     `json:"current_user_id"`
	}

	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID < 0 {
		a.respond(w, http.StatusBadRequest, map[string]string{"error": "Invalid product_id"})
		return
	}
	otherID, err := strconv.ParseInt(q.Get("with"), 10, 64)
	if err != nil || otherID <= 0 {
		a.respond(w, http.StatusBadRequest, map[string]string{"error": "Invalid with"})
		return
	}

	userID := viewer(r)
	msgs, err := a.Inbox.Conversation(r.Context(), productID, userID, otherID)
	if err != nil {
		a.respondInboxError(w, err, "Could not load conversation")
		return
	}
	res := response{
		Messages:      make([]Message, len(msgs)),
		CurrentUserID: userID,
	}
	for i, m := range msgs {
		res.Messages[i] = apiMessage(m)
	}
	a.respond(w, http.StatusOK, res)
}
