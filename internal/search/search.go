// Package search provides full-text search over message bodies. Meilisearch
// is the primary backend; a Postgres query is the fallback when it is
// unreachable. Search is always scoped: the caller resolves access for the
// scope before querying.
package search

import (
	"context"
	"log"
	"time"

	"github.com/avukic/skolar/internal/domain"
)

// MessageRecord is the indexed shape of a message.
type MessageRecord struct {
	ID         string `json:"id"`
	Scope      string `json:"scope"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"`
}

// Result is a single search hit.
type Result struct {
	ID        string       `json:"id"`
	Scope     domain.Scope `json:"scope"`
	AuthorID  string       `json:"author_id"`
	Snippet   string       `json:"snippet"`
	CreatedAt time.Time    `json:"created_at"`
}

// Query describes a scoped search request.
type Query struct {
	Text   string
	Scope  domain.Scope
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a scoped full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Service tries Meilisearch first and falls back to Postgres.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates the search facade. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Index pushes a created or edited message into the index
// (fire-and-forget).
func (s *Service) Index(msg *domain.Message) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := recordFromMessage(msg)
	go func() {
		if err := s.meili.Index(rec); err != nil {
			log.Printf("search: index message %s: %v", rec.ID, err)
		}
	}()
}

// Delete removes a deleted message from the index (fire-and-forget).
func (s *Service) Delete(messageID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.Delete(messageID); err != nil {
			log.Printf("search: delete message %s: %v", messageID, err)
		}
	}()
}

func recordFromMessage(msg *domain.Message) MessageRecord {
	return MessageRecord{
		ID:         msg.ID.String(),
		Scope:      string(msg.Scope),
		AuthorID:   msg.AuthorID.String(),
		AuthorName: msg.AuthorName,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt.Unix(),
	}
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
