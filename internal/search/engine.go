package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
)

// IndexCollection holds one Entry per indexed document.
const IndexCollection = "_search_index"

// DefaultMaxResults caps Search when Options.Limit is zero.
const DefaultMaxResults = 50

const (
	coverageWeight  = 0.7
	precisionWeight = 0.3
)

// Entry is the indexed form of one document.
type Entry struct {
	ID         string    `json:"id"`
	DocID      string    `json:"docId"`
	Collection string    `json:"collectionName"`
	Fields     []string  `json:"fields"`
	Tokens     []string  `json:"tokens"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func entryID(collection, docID string) string {
	return collection + ":" + docID
}

type Options struct {
	// Collections restricts the search; empty searches everything.
	Collections []string
	// Limit caps the results; zero means the engine default.
	Limit int
	// MinScore excludes results scoring at or below it (0..100).
	MinScore float64
	// IncludeDocument loads the source document into each result.
	IncludeDocument bool
}

type Result struct {
	ID         string
	DocID      string
	Collection string
	Score      float64
	Highlights []string
	Document   localdb.Document
}

type Stats struct {
	Entries      int
	UniqueTokens int
	Collections  map[string]int
}

type Engine struct {
	db         localdb.Database
	entries    *localdb.Collection[Entry]
	maxResults int
	log        logging.Logger
	now        func() time.Time
}

func New(db localdb.Database, maxResults int, log logging.Logger) *Engine {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Engine{
		db:         db,
		entries:    localdb.NewCollection[Entry](db, IndexCollection),
		maxResults: maxResults,
		log:        log.With("component", "search"),
		now:        time.Now,
	}
}

// DefaultFields lists the top-level string and number fields of doc,
// except the id and timestamp fields, in name order.
func DefaultFields(doc localdb.Document) []string {
	var fields []string
	for k, v := range doc {
		switch k {
		case localdb.FieldID, localdb.FieldCreatedAt, localdb.FieldUpdatedAt:
			continue
		}
		if _, ok := fieldText(v); ok {
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)
	return fields
}

func fieldText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	}
	return "", false
}

// IndexDocument replaces the entry of the document. With no fields every
// DefaultFields field is indexed.
func (e *Engine) IndexDocument(ctx context.Context, collection, docID string, doc localdb.Document, fields []string) (Entry, error) {
	if collection == "" || docID == "" {
		return Entry{}, fmt.Errorf("%w: collection and document id are required", common.ErrorValidation)
	}
	if doc == nil {
		return Entry{}, fmt.Errorf("%w: document is nil", common.ErrorValidation)
	}
	if len(fields) == 0 {
		fields = DefaultFields(doc)
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s, ok := fieldText(doc[f]); ok && s != "" {
			parts = append(parts, s)
		}
	}
	content := strings.Join(parts, " ")

	now := e.now().UTC()
	entry := Entry{
		ID:         entryID(collection, docID),
		DocID:      docID,
		Collection: collection,
		Fields:     slices.Clone(fields),
		Tokens:     Tokenize(content),
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if prev, err := e.entries.Get(ctx, entry.ID); err == nil {
		entry.CreatedAt = prev.CreatedAt
	}

	if err := e.entries.Put(ctx, entry.ID, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to index %s: %w", entry.ID, err)
	}
	return entry, nil
}

func (e *Engine) RemoveDocument(ctx context.Context, collection, docID string) error {
	if err := e.entries.Delete(ctx, entryID(collection, docID)); err != nil {
		return fmt.Errorf("failed to unindex %s/%s: %w", collection, docID, err)
	}
	return nil
}

// ReindexCollection drops the entries of the collection and indexes every
// document it currently holds.
func (e *Engine) ReindexCollection(ctx context.Context, collection string, fields []string) (int, error) {
	all, err := e.entries.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load index: %w", err)
	}
	for _, entry := range all {
		if entry.Collection != collection {
			continue
		}
		if err := e.entries.Delete(ctx, entry.ID); err != nil {
			return 0, fmt.Errorf("failed to unindex %s: %w", entry.ID, err)
		}
	}

	docs, err := e.db.GetAll(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	n := 0
	for _, doc := range docs {
		if _, err := e.IndexDocument(ctx, collection, doc.ID(), doc, fields); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Score is the relevance of an entry for the query tokens.
func Score(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		set[t] = struct{}{}
	}

	matched := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			matched++
		}
	}

	coverage := float64(matched) / float64(len(queryTokens))
	precision := float64(matched) / float64(len(set))
	return (coverage*coverageWeight + precision*precisionWeight) * 100
}

// Search ranks indexed entries against the query. A query without usable
// tokens yields no results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative result limit", common.ErrorValidation)
	}
	if opts.MinScore < 0 || opts.MinScore > 100 {
		return nil, fmt.Errorf("%w: min score %v outside 0..100", common.ErrorValidation, opts.MinScore)
	}

	limit := opts.Limit
	if limit == 0 {
		limit = e.maxResults
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return []Result{}, nil
	}

	all, err := e.entries.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	results := make([]Result, 0)
	for _, entry := range all {
		if len(opts.Collections) > 0 && !slices.Contains(opts.Collections, entry.Collection) {
			continue
		}

		score := Score(queryTokens, entry.Tokens)
		if score <= opts.MinScore {
			continue
		}

		results = append(results, Result{
			ID:         entry.ID,
			DocID:      entry.DocID,
			Collection: entry.Collection,
			Score:      score,
			Highlights: Highlights(entry.Content, queryTokens),
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if opts.IncludeDocument {
		for i := range results {
			doc, err := e.db.Get(ctx, results[i].Collection, results[i].DocID)
			if err != nil {
				e.log.Warn(ctx, "search result without source document",
					"collection", results[i].Collection, "id", results[i].DocID, "error", err)
				continue
			}
			results[i].Document = doc
		}
	}

	return results, nil
}

// Clear drops the whole index.
func (e *Engine) Clear(ctx context.Context) error {
	return e.entries.Clear(ctx)
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	all, err := e.entries.All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load index: %w", err)
	}

	st := Stats{Entries: len(all), Collections: make(map[string]int)}
	tokens := make(map[string]struct{})
	for _, entry := range all {
		st.Collections[entry.Collection]++
		for _, t := range entry.Tokens {
			tokens[t] = struct{}{}
		}
	}
	st.UniqueTokens = len(tokens)
	return st, nil
}
