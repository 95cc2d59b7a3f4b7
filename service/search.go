package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"docvault/model"
	"docvault/store"
	"docvault/types"

	"github.com/google/uuid"
)

// AnswerGenerator produces a grounded answer from retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, contextBlock, question string) (string, error)
}

type SearchService struct {
	docs     store.DocumentStorer
	chunks   store.ChunkStorer
	embedder model.Embedder
	agent    AnswerGenerator
	logger   *slog.Logger
}

func NewSearchService(docs store.DocumentStorer, chunks store.ChunkStorer, embedder model.Embedder, agent AnswerGenerator) *SearchService {
	return &SearchService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		agent:    agent,
		logger:   slog.Default(),
	}
}

// Search embeds the query, retrieves the nearest chunks for the user,
// and collapses them to one result per document, keeping each
// document's best chunk. Similarity scores are rounded to 4 decimals.
func (s *SearchService) Search(ctx context.Context, userID uuid.UUID, params types.SearchParams) (*types.SearchResponse, error) {
	params.Normalize()

	queryVec, err := s.embedder.EmbedOne(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.chunks.SearchSimilar(ctx, queryVec, userID, params.Limit, *params.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]types.SearchResult, 0, len(matches))
	seen := make(map[uuid.UUID]bool)
	for _, m := range matches {
		if seen[m.DocumentID] {
			continue
		}
		seen[m.DocumentID] = true

		doc, err := s.docs.GetDocumentByID(ctx, m.DocumentID)
		if errors.Is(err, store.ErrNotFound) {
			// chunk outlived its document, skip it
			s.logger.Warn("orphaned chunk in search results", "chunk", m.ID, "document", m.DocumentID)
			continue
		}
		if err != nil {
			return nil, err
		}

		results = append(results, types.SearchResult{
			DocumentID:       doc.ID.String(),
			DocumentTitle:    doc.DisplayTitle(),
			DocumentFilename: doc.OriginalFilename,
			DocumentType:     string(doc.FileType),
			ChunkID:          m.ID.String(),
			ChunkText:        m.ChunkText,
			ChunkIndex:       m.ChunkIndex,
			SimilarityScore:  round4(m.Similarity),
			StartChar:        m.StartChar,
			EndChar:          m.EndChar,
		})
	}

	s.logger.Info("search completed", "user", userID, "results", len(results))

	return &types.SearchResponse{
		Query:        params.Query,
		Results:      results,
		TotalResults: len(results),
	}, nil
}

// Ask runs Search and feeds the retrieved chunks to the answer
// generator as context.
func (s *SearchService) Ask(ctx context.Context, userID uuid.UUID, params types.AskParams) (*types.AnswerResponse, error) {
	resp, err := s.Search(ctx, userID, types.SearchParams{
		Query:               params.Query,
		Limit:               params.Limit,
		SimilarityThreshold: params.SimilarityThreshold,
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "Document %s:\n%s\n\n", r.DocumentTitle, r.ChunkText)
	}

	answer, err := s.agent.GenerateAnswer(ctx, sb.String(), params.Query)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &types.AnswerResponse{
		Answer:  answer,
		Sources: resp.Results,
	}, nil
}

// Health probes the embedding model and reports its dimension.
func (s *SearchService) Health(ctx context.Context) (int, error) {
	dim, err := s.embedder.Dimension(ctx)
	if err != nil {
		return 0, err
	}
	return dim, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
