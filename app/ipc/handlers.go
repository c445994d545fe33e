package ipc

import (
	"context"
	"encoding/json"
	"time"

	"newsd/app/database"
	"newsd/app/scheduler"
)

const defaultListLimit = 100

// Subscriber adds a feed and fetches its initial backlog.
type Subscriber interface {
	Subscribe(ctx context.Context, url, name string) (*database.Feed, int, error)
}

// SchedulerControl is the slice of the scheduler the IPC surface needs.
type SchedulerControl interface {
	RefreshNow(ctx context.Context) (int, error)
	Status() (scheduler.State, time.Duration)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

// Handlers dispatches IPC methods onto the storage and scheduler layers.
type Handlers struct {
	feeds      database.FeedRepository
	articles   database.ArticleRepository
	behavior   database.BehaviorRepository
	subscriber Subscriber
	control    SchedulerControl
	version    string

	dispatch map[string]handlerFunc
}

func NewHandlers(feeds database.FeedRepository, articles database.ArticleRepository,
	behavior database.BehaviorRepository, subscriber Subscriber,
	control SchedulerControl, version string) *Handlers {
	h := &Handlers{
		feeds:      feeds,
		articles:   articles,
		behavior:   behavior,
		subscriber: subscriber,
		control:    control,
		version:    version,
	}
	h.dispatch = map[string]handlerFunc{
		"ping":                 h.ping,
		"status":               h.status,
		"article.list":         h.articleList,
		"article.get":          h.articleGet,
		"article.mark_read":    h.articleMarkRead,
		"article.mark_unread":  h.articleMarkUnread,
		"article.toggle_saved": h.articleToggleSaved,
		"article.search":       h.articleSearch,
		"feed.list":            h.feedList,
		"feed.add":             h.feedAdd,
		"feed.delete":          h.feedDelete,
		"feed.refresh":         h.feedRefresh,
	}
	return h
}

// Handle resolves one request to a response. Transport errors do not
// exist at this layer; every failure maps to a protocol error.
func (h *Handlers) Handle(ctx context.Context, req *Request) *Response {
	if req.Method == "" {
		return &Response{ID: req.ID, Error: newError(CodeInvalidRequest, "missing method")}
	}
	fn, ok := h.dispatch[req.Method]
	if !ok {
		return &Response{ID: req.ID, Error: newError(CodeMethodNotFound, "unknown method %q", req.Method)}
	}

	result, herr := fn(ctx, req.Params)
	if herr != nil {
		return &Response{ID: req.ID, Error: herr}
	}
	return &Response{ID: req.ID, Result: result}
}

// --- wire DTOs ---

type articleDTO struct {
	ID             string     `json:"id"`
	FeedID         string     `json:"feed_id"`
	Title          string     `json:"title"`
	Author         string     `json:"author,omitempty"`
	URL            string     `json:"url,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	Content        string     `json:"content,omitempty"`
	Summary        *string    `json:"summary,omitempty"`
	RelevanceScore *float64   `json:"relevance_score,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Read           bool       `json:"read"`
	Saved          bool       `json:"saved"`
	FetchedAt      time.Time  `json:"fetched_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
}

func toArticleDTO(a *database.Article, withContent bool) articleDTO {
	dto := articleDTO{
		ID:             a.ID,
		FeedID:         a.FeedID,
		Title:          a.Title,
		Author:         a.Author,
		URL:            a.URL,
		ImageURL:       a.ImageURL,
		Summary:        a.Summary,
		RelevanceScore: a.RelevanceScore,
		Tags:           a.Tags,
		Read:           a.Read,
		Saved:          a.Saved,
		FetchedAt:      a.FetchedAt,
		PublishedAt:    a.PublishedAt,
	}
	if withContent {
		dto.Content = a.Content
	}
	return dto
}

type feedDTO struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Name          string     `json:"name"`
	Title         string     `json:"title,omitempty"`
	SiteURL       string     `json:"site_url,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	FetchError    string     `json:"fetch_error,omitempty"`
}

func toFeedDTO(f *database.Feed) feedDTO {
	return feedDTO{
		ID:            f.ID,
		URL:           f.URL,
		Name:          f.Name,
		Title:         f.Title,
		SiteURL:       f.SiteURL,
		UnreadCount:   f.UnreadCount,
		LastFetchedAt: f.LastFetchedAt,
		FetchError:    f.FetchError,
	}
}

// --- methods ---

func (h *Handlers) ping(ctx context.Context, params json.RawMessage) (any, *Error) {
	return "pong", nil
}

func (h *Handlers) status(ctx context.Context, params json.RawMessage) (any, *Error) {
	state, uptime := h.control.Status()
	feeds, err := h.feeds.ListFeeds(ctx)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to list feeds: %v", err)
	}
	unread := 0
	for _, f := range feeds {
		unread += f.UnreadCount
	}
	return map[string]any{
		"version":        h.version,
		"scheduler":      string(state),
		"uptime_seconds": int64(uptime.Seconds()),
		"feeds":          len(feeds),
		"unread":         unread,
	}, nil
}

type articleListParams struct {
	FeedID     string `json:"feed_id"`
	UnreadOnly bool   `json:"unread_only"`
	Limit      int    `json:"limit"`
}

func (h *Handlers) articleList(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p articleListParams
	if herr := decodeParams(params, &p); herr != nil {
		return nil, herr
	}
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}

	articles, err := h.articles.ListArticles(ctx, database.ArticleListOptions{
		FeedID:     p.FeedID,
		UnreadOnly: p.UnreadOnly,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, newError(CodeInternalError, "failed to list articles: %v", err)
	}

	dtos := make([]articleDTO, len(articles))
	for i := range articles {
		dtos[i] = toArticleDTO(&articles[i], false)
	}
	return dtos, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (h *Handlers) articleGet(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, herr := requireID(params)
	if herr != nil {
		return nil, herr
	}

	article, err := h.articles.GetArticle(ctx, p.ID)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to load article: %v", err)
	}
	if article == nil {
		return nil, newError(CodeInvalidParams, "article %q not found", p.ID)
	}
	return toArticleDTO(article, true), nil
}

func (h *Handlers) articleMarkRead(ctx context.Context, params json.RawMessage) (any, *Error) {
	return h.setRead(ctx, params, true)
}

func (h *Handlers) articleMarkUnread(ctx context.Context, params json.RawMessage) (any, *Error) {
	return h.setRead(ctx, params, false)
}

func (h *Handlers) setRead(ctx context.Context, params json.RawMessage, read bool) (any, *Error) {
	p, herr := requireID(params)
	if herr != nil {
		return nil, herr
	}

	if err := h.articles.SetRead(ctx, p.ID, read); err != nil {
		return nil, newError(CodeInternalError, "failed to update article: %v", err)
	}

	if read {
		h.recordEvent(ctx, p.ID, database.EventReadComplete)
	}
	return map[string]any{"id": p.ID, "read": read}, nil
}

func (h *Handlers) articleToggleSaved(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, herr := requireID(params)
	if herr != nil {
		return nil, herr
	}

	saved, err := h.articles.ToggleSaved(ctx, p.ID)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to toggle saved: %v", err)
	}

	if saved {
		h.recordEvent(ctx, p.ID, database.EventSave)
	}
	return map[string]any{"id": p.ID, "saved": saved}, nil
}

type searchParams struct {
	Query  string `json:"query"`
	FeedID string `json:"feed_id"`
	Limit  int    `json:"limit"`
}

func (h *Handlers) articleSearch(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p searchParams
	if herr := decodeParams(params, &p); herr != nil {
		return nil, herr
	}
	if p.Query == "" {
		return nil, newError(CodeInvalidParams, "missing query")
	}
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}

	articles, err := h.articles.SearchArticles(ctx, p.Query, p.FeedID, p.Limit)
	if err != nil {
		return nil, newError(CodeInternalError, "search failed: %v", err)
	}

	dtos := make([]articleDTO, len(articles))
	for i := range articles {
		dtos[i] = toArticleDTO(&articles[i], false)
	}
	return dtos, nil
}

func (h *Handlers) feedList(ctx context.Context, params json.RawMessage) (any, *Error) {
	feeds, err := h.feeds.ListFeeds(ctx)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to list feeds: %v", err)
	}

	dtos := make([]feedDTO, len(feeds))
	for i := range feeds {
		dtos[i] = toFeedDTO(&feeds[i])
	}
	return dtos, nil
}

type feedAddParams struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (h *Handlers) feedAdd(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p feedAddParams
	if herr := decodeParams(params, &p); herr != nil {
		return nil, herr
	}
	if p.URL == "" {
		return nil, newError(CodeInvalidParams, "missing url")
	}

	feed, added, err := h.subscriber.Subscribe(ctx, p.URL, p.Name)
	if err != nil {
		return nil, newError(CodeInvalidParams, "subscription failed: %v", err)
	}
	return map[string]any{"feed": toFeedDTO(feed), "articles": added}, nil
}

func (h *Handlers) feedDelete(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, herr := requireID(params)
	if herr != nil {
		return nil, herr
	}

	removed, err := h.feeds.DeleteFeed(ctx, p.ID)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to delete feed: %v", err)
	}
	if !removed {
		return nil, newError(CodeInvalidParams, "feed %q not found", p.ID)
	}
	return map[string]any{"id": p.ID, "deleted": true}, nil
}

type feedRefreshParams struct {
	FeedID string `json:"feed_id"`
}

func (h *Handlers) feedRefresh(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p feedRefreshParams
	if herr := decodeParams(params, &p); herr != nil {
		return nil, herr
	}
	if p.FeedID != "" {
		// TODO: single-feed refresh needs a per-feed entry point on the
		// refresher; only the full pass exists today.
		return nil, newError(CodeInternalError, "per-feed refresh is not implemented")
	}

	count, err := h.control.RefreshNow(ctx)
	if err != nil {
		return nil, newError(CodeInternalError, "refresh failed: %v", err)
	}
	return map[string]any{"new_articles": count}, nil
}

// recordEvent appends a behavior event as a side effect of an IPC
// mutation. Failures are swallowed; the mutation already happened.
func (h *Handlers) recordEvent(ctx context.Context, articleID string, kind database.EventKind) {
	article, err := h.articles.GetArticle(ctx, articleID)
	if err != nil || article == nil {
		return
	}
	e := &database.BehaviorEvent{
		ArticleID: &article.ID,
		FeedID:    &article.FeedID,
		Kind:      kind,
	}
	_ = h.behavior.InsertEvent(ctx, e)
}

func decodeParams(params json.RawMessage, into any) *Error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, into); err != nil {
		return newError(CodeInvalidParams, "invalid params: %v", err)
	}
	return nil
}

func requireID(params json.RawMessage) (*idParams, *Error) {
	var p idParams
	if herr := decodeParams(params, &p); herr != nil {
		return nil, herr
	}
	if p.ID == "" {
		return nil, newError(CodeInvalidParams, "missing id")
	}
	return &p, nil
}
