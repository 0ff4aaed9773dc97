package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"socialp/internal/cache"
	domainEvent "socialp/internal/domain/event"
	"socialp/internal/domain/media"
	"socialp/internal/domain/post"
	"socialp/internal/domain/search"
	"socialp/internal/infrastructure/cloudinary"
)

type memPostStore struct {
	mu    sync.Mutex
	posts map[string]post.Post
	gets  int
	lists int
}

func newMemPostStore() *memPostStore {
	return &memPostStore{posts: map[string]post.Post{}}
}

func (s *memPostStore) Create(_ context.Context, p *post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = *p
	return nil
}

func (s *memPostStore) GetByID(_ context.Context, id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	p, ok := s.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	return &p, nil
}

func (s *memPostStore) List(_ context.Context, offset, limit int) ([]post.Post, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++

	all := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []post.Post{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *memPostStore) DeleteOwned(_ context.Context, id, userID string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	if p.UserID != userID {
		return nil, post.ErrForbidden
	}
	delete(s.posts, id)
	return &p, nil
}

type published struct {
	routingKey string
	payload    any
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload any) {
	p.events = append(p.events, published{routingKey: routingKey, payload: payload})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.New(client, discardLogger(), 100), mr
}

func TestCreatePostPublishesAndInvalidates(t *testing.T) {
	c, mr := newCache(t)
	for _, key := range []string{"posts:1:10", "posts:2:10", "search:hello"} {
		if err := mr.Set(key, "{}"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	store := newMemPostStore()
	pub := &recordingPublisher{}
	uc := NewCreatePost(store, c, pub, discardLogger())

	p, err := uc.Execute(context.Background(), CreatePostParams{UserID: "u1", Content: "  hello world  ", MediaIDs: []string{"m1"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Content != "hello world" || p.UserID != "u1" || p.ID == "" {
		t.Fatalf("unexpected post: %+v", p)
	}
	if _, ok := store.posts[p.ID]; !ok {
		t.Fatal("post not stored")
	}

	if mr.Exists("posts:1:10") || mr.Exists("posts:2:10") {
		t.Fatal("listing pages must be invalidated")
	}
	if !mr.Exists("search:hello") {
		t.Fatal("search cache belongs to the search service")
	}

	if len(pub.events) != 1 || pub.events[0].routingKey != domainEvent.PostCreated {
		t.Fatalf("expected one post.created, got %+v", pub.events)
	}
	payload := pub.events[0].payload.(domainEvent.PostCreatedPayload)
	if payload.PostID != p.ID || payload.Content != "hello world" || !payload.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCreatePostValidatesContent(t *testing.T) {
	pub := &recordingPublisher{}
	uc := NewCreatePost(newMemPostStore(), nil, pub, discardLogger())

	for _, content := range []string{"", "   ", strings.Repeat("a", post.MaxContentLength+1)} {
		if _, err := uc.Execute(context.Background(), CreatePostParams{UserID: "u1", Content: content}); !errors.Is(err, ErrInvalidPost) {
			t.Fatalf("expected ErrInvalidPost for %d chars, got %v", len(content), err)
		}
	}
	if len(pub.events) != 0 {
		t.Fatal("invalid posts must not publish")
	}
}

func TestGetPostReadsThroughCache(t *testing.T) {
	c, mr := newCache(t)
	store := newMemPostStore()
	store.posts["p1"] = post.Post{ID: "p1", UserID: "u1", Content: "hi", CreatedAt: time.Now().UTC()}

	uc := NewGetPost(store, c, time.Hour)
	for i := 0; i < 3; i++ {
		p, err := uc.Execute(context.Background(), "p1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Content != "hi" {
			t.Fatalf("unexpected post: %+v", p)
		}
	}
	if store.gets != 1 {
		t.Fatalf("expected 1 store read, got %d", store.gets)
	}
	if ttl := mr.TTL("post:p1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected TTL %v", ttl)
	}

	if _, err := uc.Execute(context.Background(), "missing"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPostsPaginatesAndCaches(t *testing.T) {
	c, mr := newCache(t)
	store := newMemPostStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		store.posts[id] = post.Post{ID: id, UserID: "u1", Content: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}

	uc := NewListPosts(store, c, 5*time.Minute)
	page, err := uc.Execute(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalPosts != 3 || page.TotalPages != 2 || page.CurrentPage != 1 || len(page.Posts) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Posts[0].ID != "c" {
		t.Fatalf("expected newest first, got %s", page.Posts[0].ID)
	}

	if _, err := uc.Execute(context.Background(), 1, 2); err != nil {
		t.Fatalf("list again: %v", err)
	}
	if store.lists != 1 {
		t.Fatalf("expected 1 store read, got %d", store.lists)
	}
	if !mr.Exists("posts:1:2") {
		t.Fatal("page must be cached under posts:1:2")
	}

	page, err = uc.Execute(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list defaults: %v", err)
	}
	if page.CurrentPage != 1 || !mr.Exists("posts:1:10") {
		t.Fatalf("expected clamped page 1 of size 10, got %+v", page)
	}
}

func TestDeletePostPublishesMediaIDs(t *testing.T) {
	c, mr := newCache(t)
	for _, key := range []string{"post:p1", "posts:1:10"} {
		if err := mr.Set(key, "{}"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	store := newMemPostStore()
	store.posts["p1"] = post.Post{ID: "p1", UserID: "u1", Content: "hi", MediaIDs: []string{"m1", "m2"}}
	pub := &recordingPublisher{}
	uc := NewDeletePost(store, c, pub, discardLogger())

	if err := uc.Execute(context.Background(), "p1", "u2"); !errors.Is(err, post.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatal("rejected delete must not publish")
	}

	if err := uc.Execute(context.Background(), "p1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("post:p1") || mr.Exists("posts:1:10") {
		t.Fatal("post cache must be invalidated")
	}
	if len(pub.events) != 1 || pub.events[0].routingKey != domainEvent.PostDeleted {
		t.Fatalf("expected one post.deleted, got %+v", pub.events)
	}
	payload := pub.events[0].payload.(domainEvent.PostDeletedPayload)
	if payload.PostID != "p1" || payload.UserID != "u1" || len(payload.MediaIDs) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if err := uc.Execute(context.Background(), "p1", "u1"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPostWritesSurviveCacheOutage(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()

	pub := &recordingPublisher{}
	uc := NewCreatePost(newMemPostStore(), c, pub, discardLogger())

	if _, err := uc.Execute(context.Background(), CreatePostParams{UserID: "u1", Content: "hi"}); err != nil {
		t.Fatalf("cache outage must not fail the write: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatal("event must still be published")
	}
}

type memSearchStore struct {
	queries []string
	docs    []search.Document
}

func (s *memSearchStore) Search(_ context.Context, query string, limit int) ([]search.Document, error) {
	s.queries = append(s.queries, query)
	if len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

func TestSearchPostsCachesByNormalizedQuery(t *testing.T) {
	c, mr := newCache(t)
	store := &memSearchStore{docs: []search.Document{{PostID: "p1", Content: "Hello World"}}}
	uc := NewSearchPosts(store, c, 5*time.Minute)

	for _, q := range []string{"Hello World", "hello   world"} {
		docs, err := uc.Execute(context.Background(), q)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(docs) != 1 || docs[0].PostID != "p1" {
			t.Fatalf("unexpected results: %+v", docs)
		}
	}

	if len(store.queries) != 1 {
		t.Fatalf("expected 1 store query, got %d", len(store.queries))
	}
	if !mr.Exists("search:hello_world") {
		t.Fatal("results must be cached under search:hello_world")
	}

	docs, err := uc.Execute(context.Background(), "   ")
	if err != nil || len(docs) != 0 {
		t.Fatalf("blank query: %v %v", docs, err)
	}
}

type memMediaStore struct {
	items     map[string]media.Media
	createErr error
	lastLimit int
}

func (s *memMediaStore) Create(_ context.Context, m *media.Media) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.items[m.ID] = *m
	return nil
}

func (s *memMediaStore) GetByID(_ context.Context, id string) (*media.Media, error) {
	m, ok := s.items[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	return &m, nil
}

func (s *memMediaStore) List(_ context.Context, limit int) ([]media.Media, error) {
	s.lastLimit = limit
	all := make([]media.Media, 0, len(s.items))
	for _, m := range s.items {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type memUploader struct {
	uploaded  []string
	destroyed []string
}

func (u *memUploader) Upload(_ context.Context, file io.Reader, name string) (*cloudinary.Asset, error) {
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	u.uploaded = append(u.uploaded, name)
	return &cloudinary.Asset{PublicID: "socialp/" + name, URL: "https://res.cloudinary.com/demo/" + name}, nil
}

func (u *memUploader) Destroy(_ context.Context, publicID string) error {
	u.destroyed = append(u.destroyed, publicID)
	return nil
}

func TestUploadMediaStoresMetadata(t *testing.T) {
	store := &memMediaStore{items: map[string]media.Media{}}
	assets := &memUploader{}
	uc := NewUploadMedia(store, assets, discardLogger())

	m, err := uc.Execute(context.Background(), UploadMediaParams{
		UserID: "u1", OriginalName: "cat.png", MimeType: "image/png", File: strings.NewReader("png"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if m.PublicID != "socialp/cat.png" || m.UserID != "u1" {
		t.Fatalf("unexpected media: %+v", m)
	}
	if _, ok := store.items[m.ID]; !ok {
		t.Fatal("metadata not stored")
	}
}

func TestUploadMediaRemovesAssetWhenInsertFails(t *testing.T) {
	store := &memMediaStore{items: map[string]media.Media{}, createErr: errors.New("insert failed")}
	assets := &memUploader{}
	uc := NewUploadMedia(store, assets, discardLogger())

	_, err := uc.Execute(context.Background(), UploadMediaParams{
		UserID: "u1", OriginalName: "cat.png", File: strings.NewReader("png"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(assets.destroyed) != 1 || assets.destroyed[0] != "socialp/cat.png" {
		t.Fatalf("expected orphan asset to be destroyed, got %v", assets.destroyed)
	}
}

func TestGetMediaReadsThroughCache(t *testing.T) {
	c, mr := newCache(t)
	store := &memMediaStore{items: map[string]media.Media{"m1": {ID: "m1", URL: "https://example/m1"}}}
	uc := NewGetMedia(store, c, time.Hour)

	m, err := uc.Execute(context.Background(), "m1")
	if err != nil || m.URL != "https://example/m1" {
		t.Fatalf("get media: %+v %v", m, err)
	}
	if !mr.Exists("media:m1") {
		t.Fatal("media must be cached")
	}

	if _, err := uc.Execute(context.Background(), "missing"); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMediaNewestFirstWithBoundedLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memMediaStore{items: map[string]media.Media{
		"old": {ID: "old", CreatedAt: now.Add(-time.Hour)},
		"new": {ID: "new", CreatedAt: now},
	}}
	uc := NewListMedia(store)

	items, err := uc.Execute(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "new" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if store.lastLimit != DefaultMediaListLimit {
		t.Fatalf("expected default limit, got %d", store.lastLimit)
	}

	if _, err := uc.Execute(context.Background(), 10_000); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastLimit != MaxMediaListLimit {
		t.Fatalf("expected capped limit, got %d", store.lastLimit)
	}
}
