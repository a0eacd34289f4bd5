package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/confession-platform/internal/platform/auth"
	"github.com/example/confession-platform/internal/platform/db"
	"github.com/example/confession-platform/services/comments/internal/channelsync"
	"github.com/example/confession-platform/services/comments/internal/store"
	"github.com/example/confession-platform/services/comments/internal/thread"
)

// setupReq builds a request with chi URL params and an optional user id in
// context.
func setupReq(method, url, body string, params map[string]string, userID int64) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != 0 {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

type fixture struct {
	store  *store.SQLCommentStore
	thread *thread.Service
	postID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	gw, err := db.Open(ctx, db.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	if err := store.Migrate(ctx, gw); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	postID, err := gw.InsertID(ctx,
		"INSERT INTO posts (content, category, approved, post_number) VALUES (?, ?, ?, ?)",
		"post_id", "a confession", "life", true, 1)
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	if err := gw.Exec(ctx, "INSERT INTO users (user_id, comments_posted) VALUES (?, 0)", int64(7)); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	cs := store.NewSQLCommentStore(gw)
	return &fixture{
		store:  cs,
		thread: thread.New(gw, 2),
		postID: postID,
	}
}

func (f *fixture) postParam() map[string]string {
	return map[string]string{"post_id": strconv.FormatInt(f.postID, 10)}
}

func commentParam(id int64) map[string]string {
	return map[string]string{"comment_id": strconv.FormatInt(id, 10)}
}

func (f *fixture) seedComment(t *testing.T, content string, parentID *int64) int64 {
	t.Helper()
	id, err := f.store.Create(context.Background(), f.postID, 7, content, parentID)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return id
}

func TestCreateComment(t *testing.T) {
	f := newFixture(t)
	handler := CreateComment(f.store, nil, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/comments", `{"content":"hello world"}`,
		f.postParam(), 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp createCommentResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := f.store.Get(context.Background(), resp.CommentID)
	if err != nil {
		t.Fatalf("get created: %v", err)
	}
	if c.Content != "hello world" || c.UserID != 7 {
		t.Fatalf("unexpected comment: %+v", c)
	}
}

func TestCreateComment_Unauthorized(t *testing.T) {
	f := newFixture(t)
	handler := CreateComment(f.store, nil, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/comments", `{"content":"hi"}`, f.postParam(), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateComment_EmptyContent(t *testing.T) {
	f := newFixture(t)
	handler := CreateComment(f.store, nil, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/comments", `{"content":"  "}`, f.postParam(), 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateComment_PostNotFound(t *testing.T) {
	f := newFixture(t)
	handler := CreateComment(f.store, nil, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/999/comments", `{"content":"hi"}`,
		map[string]string{"post_id": "999"}, 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateComment_ParentNotFound(t *testing.T) {
	f := newFixture(t)
	handler := CreateComment(f.store, nil, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/comments",
		`{"content":"re","parent_comment_id":4242}`, f.postParam(), 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListComments(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.seedComment(t, fmt.Sprintf("comment %d", i), nil)
	}
	handler := ListComments(f.thread, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/posts/1/comments?page=2", "", f.postParam(), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var page thread.Page
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Page != 2 || page.TotalCount != 3 || page.TotalPages != 2 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item on the last page, got %d", len(page.Items))
	}
}

func TestListComments_InvalidPage(t *testing.T) {
	f := newFixture(t)
	handler := ListComments(f.thread, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/posts/1/comments?page=zero", "", f.postParam(), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetComment(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "look at me", nil)
	handler := GetComment(f.store, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/comments/1", "", commentParam(id), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var c store.Comment
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.ID != id || c.Content != "look at me" {
		t.Fatalf("unexpected comment: %+v", c)
	}
}

func TestGetComment_NotFound(t *testing.T) {
	f := newFixture(t)
	handler := GetComment(f.store, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/comments/999", "", commentParam(999), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCommentNumber(t *testing.T) {
	f := newFixture(t)
	f.seedComment(t, "first", nil)
	second := f.seedComment(t, "second", nil)
	handler := CommentNumber(f.thread, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/comments/2/number", "", commentParam(second), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		SequentialNumber int `json:"sequential_number"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SequentialNumber != 2 {
		t.Fatalf("expected number 2, got %d", resp.SequentialNumber)
	}
}

func TestCommentParent(t *testing.T) {
	f := newFixture(t)
	rootID := f.seedComment(t, "root", nil)
	replyID := f.seedComment(t, "reply", &rootID)
	handler := CommentParent(f.thread, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/comments/2/parent", "", commentParam(replyID), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Parent *thread.ParentInfo `json:"parent"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Parent == nil || resp.Parent.CommentID != rootID {
		t.Fatalf("unexpected parent: %+v", resp.Parent)
	}

	// Top-level comment: 200 with a null parent.
	req = setupReq(http.MethodGet, "/v1/comments/1/parent", "", commentParam(rootID), 0)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for top-level, got %d", rr.Code)
	}
	resp.Parent = nil
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode top-level: %v", err)
	}
	if resp.Parent != nil {
		t.Fatalf("expected null parent, got %+v", resp.Parent)
	}
}

func TestLocateComment(t *testing.T) {
	f := newFixture(t)
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, f.seedComment(t, "c", nil))
	}
	handler := LocateComment(f.thread, zap.NewNop())

	// Page size 2: the third top-level comment sits on page 2.
	req := setupReq(http.MethodGet, "/v1/comments/3/location", "", commentParam(ids[2]), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var loc thread.Location
	if err := json.NewDecoder(rr.Body).Decode(&loc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loc.Page != 2 || loc.PostID != f.postID {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestReactComment(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "react to me", nil)
	handler := ReactComment(f.store, nil, zap.NewNop())

	react := func(body string) *httptest.ResponseRecorder {
		req := setupReq(http.MethodPost, "/v1/comments/1/reactions", body, commentParam(id), 7)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := react(`{"reaction":"like"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res store.ReactionResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Action != store.ActionAdded || res.Likes != 1 || res.Dislikes != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rr = react(`{"reaction":"dislike"}`)
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Action != store.ActionChanged || res.Likes != 0 || res.Dislikes != 1 {
		t.Fatalf("unexpected switch result: %+v", res)
	}

	rr = react(`{"reaction":"dislike"}`)
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Action != store.ActionRemoved || res.Likes != 0 || res.Dislikes != 0 {
		t.Fatalf("unexpected toggle result: %+v", res)
	}
}

func TestReactComment_InvalidReaction(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "c", nil)
	handler := ReactComment(f.store, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/comments/1/reactions", `{"reaction":"love"}`,
		commentParam(id), 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReactComment_Unauthorized(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "c", nil)
	handler := ReactComment(f.store, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/comments/1/reactions", `{"reaction":"like"}`,
		commentParam(id), 0)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestGetUserReaction(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "c", nil)
	if _, err := f.store.React(context.Background(), 7, id, store.ReactionLike); err != nil {
		t.Fatalf("react: %v", err)
	}
	handler := GetUserReaction(f.store, zap.NewNop())

	req := setupReq(http.MethodGet, "/v1/comments/1/reactions/me", "", commentParam(id), 7)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp userReactionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasAny || resp.Reaction != "like" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFlagComment(t *testing.T) {
	f := newFixture(t)
	id := f.seedComment(t, "rude", nil)
	handler := FlagComment(f.store, nil, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/comments/1/flag", "", commentParam(id), 99)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	c, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !c.Flagged {
		t.Fatal("expected flagged comment")
	}
}

func TestSyncChannelCount_NoChannelMessage(t *testing.T) {
	f := newFixture(t)
	sync := channelsync.New(f.store, nil, -100, "bot", zap.NewNop())
	handler := SyncChannelCount(sync, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/sync-count", "", f.postParam(), 99)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Seeded post has no channel message yet.
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSyncChannelCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Gateway().Exec(ctx,
		"UPDATE posts SET channel_message_id = ? WHERE post_id = ?", int64(555), f.postID); err != nil {
		t.Fatalf("set channel message: %v", err)
	}
	f.seedComment(t, "one", nil)
	f.seedComment(t, "two", nil)

	sync := channelsync.New(f.store, nil, -100, "bot", zap.NewNop())
	handler := SyncChannelCount(sync, zap.NewNop())

	req := setupReq(http.MethodPost, "/v1/posts/1/sync-count", "", f.postParam(), 99)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp syncCountResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CommentCount != 2 || resp.PostID != f.postID {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
