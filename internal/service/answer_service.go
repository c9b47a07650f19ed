package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/pkg/logutil"
)

// AnswerMode selects the prompt policy.
type AnswerMode string

const (
	// ModeSynthesis compares sources and flags divergences; sources with
	// no matches are silently dropped from the context.
	ModeSynthesis AnswerMode = "synthesis"
	// ModePerSource answers separately per source; sources with no
	// matches get an explicit placeholder section.
	ModePerSource AnswerMode = "sources"
)

// RefusalAnswer is returned verbatim when no context is available. It is
// also the sentence the model is instructed to use when the sources do not
// contain the answer.
const RefusalAnswer = "Je ne trouve pas d'éléments de réponse dans les documents fournis."

const (
	snippetMaxChars   = 420
	sectionSeparator  = "\n\n---\n\n"
	emptySourceNotice = "Aucune information pertinente."
	chatTemperature   = 0.2
)

const promptRules = "Règles strictes : réponds uniquement à partir des sources fournies. " +
	"Si la réponse ne figure pas dans les sources, réponds exactement : « " + RefusalAnswer + " ». " +
	"Cite toujours les sources par leur nom exact. Ne spécule jamais."

const synthesisPrompt = "Tu es un assistant juridique. Compare les sources entre elles, " +
	"synthétise la réponse et signale toute divergence entre les sources. " + promptRules

const perSourcePrompt = "Tu es un assistant juridique. Réponds séparément pour chaque source, " +
	"dans l'ordre où elles sont présentées. Si une source ne contient pas d'élément de réponse, " +
	"indique-le explicitement pour cette source. " + promptRules

type AnswerService struct {
	sources  SourceStore
	queries  QueryStore
	resolver AIProviderSource
}

func NewAnswerService(sources SourceStore, queries QueryStore, resolver AIProviderSource) *AnswerService {
	return &AnswerService{sources: sources, queries: queries, resolver: resolver}
}

type SynthesizeInput struct {
	Question string
	Mode     AnswerMode
	// SourceIDs is the caller's source filter, in request order. Used by
	// per-source mode to emit placeholder sections for empty sources.
	SourceIDs []string
	Matches   []model.Match
	External  []model.ExternalResult
	AI        ResolvedAI
}

type Answer struct {
	QueryID   string           `json:"query_id,omitempty"`
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
}

// Synthesize assembles the grounded context, invokes the chat provider and
// persists the query with its citations. With no context at all it returns
// the refusal answer without calling the model or writing anything.
func (s *AnswerService) Synthesize(ctx context.Context, tenantID, userID string, in SynthesizeInput) (*Answer, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID))

	// Refuse before assembling anything: per-source placeholders are for
	// empty sources alongside populated ones, they are not context on
	// their own.
	if len(in.Matches) == 0 && len(in.External) == 0 {
		logger.Info("no context available, refusing")
		return &Answer{Answer: RefusalAnswer, Citations: []model.Citation{}}, nil
	}

	titles, err := s.sourceTitles(ctx, in)
	if err != nil {
		return nil, storeError(err)
	}
	contextText := s.buildContext(in, titles)

	answer, err := s.chat(ctx, in, contextText)
	if err != nil {
		return nil, err
	}

	queryID, citations, err := s.persist(ctx, tenantID, userID, in, titles, answer)
	if err != nil {
		logger.Error("citation persistence failed", zap.Error(err))
		return nil, storeError(err)
	}
	logger.Info("question answered",
		zap.String("query_id", queryID),
		zap.Int("citations", len(citations)))
	return &Answer{QueryID: queryID, Answer: answer, Citations: citations}, nil
}

func (s *AnswerService) sourceTitles(ctx context.Context, in SynthesizeInput) (map[string]string, error) {
	ids := make([]string, 0, len(in.SourceIDs)+len(in.Matches))
	seen := make(map[string]bool)
	for _, id := range in.SourceIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, m := range in.Matches {
		if !seen[m.SourceID] {
			seen[m.SourceID] = true
			ids = append(ids, m.SourceID)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	return s.sources.GetTitles(ctx, ids)
}

// buildContext groups internal matches by source and external results by
// fond, joined by a fixed separator. Per-source mode keeps an explicit
// empty section for requested sources without matches; synthesis mode
// drops them.
func (s *AnswerService) buildContext(in SynthesizeInput, titles map[string]string) string {
	bySource := make(map[string][]model.Match)
	var sourceOrder []string
	for _, m := range in.Matches {
		if _, ok := bySource[m.SourceID]; !ok {
			sourceOrder = append(sourceOrder, m.SourceID)
		}
		bySource[m.SourceID] = append(bySource[m.SourceID], m)
	}
	if len(in.SourceIDs) > 0 {
		sourceOrder = in.SourceIDs
	}

	var sections []string
	for _, sourceID := range sourceOrder {
		matches := bySource[sourceID]
		if len(matches) == 0 {
			if in.Mode == ModePerSource {
				sections = append(sections, fmt.Sprintf("Source : %s\n\n%s", sourceTitle(titles, sourceID), emptySourceNotice))
			}
			continue
		}
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, m.Content)
		}
		sections = append(sections, fmt.Sprintf("Source : %s\n\n%s", sourceTitle(titles, sourceID), strings.Join(parts, "\n\n")))
	}

	byFond := make(map[string][]model.ExternalResult)
	var fondOrder []string
	for _, r := range in.External {
		if _, ok := byFond[r.Fond]; !ok {
			fondOrder = append(fondOrder, r.Fond)
		}
		byFond[r.Fond] = append(byFond[r.Fond], r)
	}
	for _, fond := range fondOrder {
		var lines []string
		for _, r := range byFond[fond] {
			lines = append(lines, fmt.Sprintf("- %s : %s", r.Title, r.Snippet))
		}
		sections = append(sections, fmt.Sprintf("Source : Légifrance (%s)\n\n%s", fond, strings.Join(lines, "\n")))
	}

	return strings.Join(sections, sectionSeparator)
}

func (s *AnswerService) chat(ctx context.Context, in SynthesizeInput, contextText string) (string, error) {
	provider, err := s.resolver.ChatProvider(in.AI)
	if err != nil {
		return "", err
	}
	system := synthesisPrompt
	if in.Mode == ModePerSource {
		system = perSourcePrompt
	}
	answer, err := provider.Chat(ctx, ai.ChatRequest{
		Model: in.AI.ChatModel,
		Messages: []ai.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Sources :\n\n%s\n\nQuestion : %s", contextText, in.Question)},
		},
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (s *AnswerService) persist(ctx context.Context, tenantID, userID string, in SynthesizeInput, titles map[string]string, answer string) (string, []model.Citation, error) {
	now := time.Now().Unix()
	query := &model.Query{
		ID:       newID(),
		TenantID: tenantID,
		UserID:   userID,
		Question: in.Question,
		Answer:   answer,
		Ctime:    now,
	}
	if err := s.queries.InsertQuery(ctx, query); err != nil {
		return "", nil, err
	}

	citations := make([]*model.Citation, 0, len(in.Matches)+len(in.External))
	for _, m := range in.Matches {
		citations = append(citations, &model.Citation{
			ID:          newID(),
			QueryID:     query.ID,
			TenantID:    tenantID,
			ChunkID:     m.ChunkID,
			SourceID:    m.SourceID,
			SourceTitle: sourceTitle(titles, m.SourceID),
			Snippet:     truncateSnippet(m.Content),
			Score:       m.Score,
			Ctime:       now,
		})
	}
	for _, r := range in.External {
		citations = append(citations, &model.Citation{
			ID:          newID(),
			QueryID:     query.ID,
			TenantID:    tenantID,
			SourceTitle: fmt.Sprintf("Légifrance (%s) : %s", r.Fond, r.Title),
			Snippet:     truncateSnippet(r.Snippet),
			External:    true,
			URL:         r.URL,
			Ctime:       now,
		})
	}
	if err := s.queries.InsertCitations(ctx, citations); err != nil {
		return "", nil, err
	}
	out := make([]model.Citation, 0, len(citations))
	for _, c := range citations {
		out = append(out, *c)
	}
	return query.ID, out, nil
}

// History returns the tenant's most recent answered questions.
func (s *AnswerService) History(ctx context.Context, tenantID string, limit int) ([]model.Query, error) {
	queries, err := s.queries.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return queries, nil
}

// Citations returns the citations persisted for one answered question.
func (s *AnswerService) Citations(ctx context.Context, tenantID, queryID string) ([]model.Citation, error) {
	citations, err := s.queries.ListCitations(ctx, tenantID, queryID)
	if err != nil {
		return nil, storeError(err)
	}
	return citations, nil
}

func sourceTitle(titles map[string]string, sourceID string) string {
	if t := titles[sourceID]; t != "" {
		return t
	}
	return sourceID
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetMaxChars {
		return s
	}
	return string(runes[:snippetMaxChars])
}
