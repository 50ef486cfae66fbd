package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/search"
	"github.com/lectern-ai/lectern/internal/models"
)

// NoContextAnswer is returned verbatim when retrieval finds nothing; the
// generation step is skipped entirely in that case.
const NoContextAnswer = "Could not find relevant information in the specified document."

const condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// Retriever is the slice of the hybrid retriever the orchestrator needs.
type Retriever interface {
	Search(ctx context.Context, query string, queryVec []float32, opts search.Options) ([]models.RetrievedChunk, error)
}

// Answer is the result of one conversational query.
type Answer struct {
	Answer  string
	Sources []models.RetrievedChunk
}

// Orchestrator runs the conversational query flow: rewrite follow-ups into
// standalone questions, retrieve context, generate with the active persona,
// and keep per-conversation memory.
type Orchestrator struct {
	store       ConversationStore
	retriever   Retriever
	embedder    core.EmbeddingProvider
	llm         core.LLMProvider
	searchOpts  search.Options
	defaultMode Mode
}

func NewOrchestrator(store ConversationStore, retriever Retriever, embedder core.EmbeddingProvider, llm core.LLMProvider, searchOpts search.Options, defaultMode Mode) *Orchestrator {
	return &Orchestrator{
		store:       store,
		retriever:   retriever,
		embedder:    embedder,
		llm:         llm,
		searchOpts:  searchOpts,
		defaultMode: defaultMode,
	}
}

// Ask answers one question within a conversation. modeOverride, when
// non-empty, selects the persona for this call only; the conversation's own
// mode is never touched, so the override cannot leak into later queries no
// matter how this call exits.
//
// The conversation mutex is held for the full flow, so queries within one
// conversation are answered strictly one at a time.
func (o *Orchestrator) Ask(ctx context.Context, conversationID, question, titleFilter, modeOverride string) (*Answer, error) {
	var override *Mode
	if modeOverride != "" {
		m, err := ParseMode(modeOverride)
		if err != nil {
			return nil, err
		}
		override = &m
	}

	conv, err := o.store.GetOrCreate(ctx, conversationID, o.defaultMode)
	if err != nil {
		return nil, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	persona := conv.mode
	if override != nil {
		persona = *override
	}

	history := append([]models.ChatTurn(nil), conv.turns...)
	start := time.Now()

	// Follow-ups lean on prior turns ("what about the second one?"), so they
	// are rewritten into standalone questions before retrieval.
	standalone := question
	if len(history) > 0 {
		rewritten, err := o.llm.Generate(ctx, "", fmt.Sprintf(condensePrompt, transcript(history), question))
		if err != nil {
			return nil, fmt.Errorf("rewrite question: %w", err)
		}
		if s := strings.TrimSpace(rewritten); s != "" {
			standalone = s
		}
		log.Debug().
			Str("conversation_id", conversationID).
			Str("standalone_question", standalone).
			Msg("follow-up rewritten")
	}

	vecs, err := o.embedder.EmbedTexts(ctx, []string{standalone})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed question: got %d embeddings for one input", len(vecs))
	}

	opts := o.searchOpts
	opts.TitleFilter = titleFilter
	sources, err := o.retriever.Search(ctx, standalone, vecs[0], opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if len(sources) == 0 {
		conv.turns = append(conv.turns, userTurn(question), assistantTurn(NoContextAnswer))
		log.Info().
			Str("conversation_id", conversationID).
			Dur("elapsed", time.Since(start)).
			Msg("no relevant chunks, generation skipped")
		return &Answer{Answer: NoContextAnswer, Sources: []models.RetrievedChunk{}}, nil
	}

	answer, err := o.llm.Chat(ctx, personaPrompts[persona], history, composeUserPrompt(standalone, sources))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// Memory keeps the question as the user phrased it, not the rewrite.
	conv.turns = append(conv.turns, userTurn(question), assistantTurn(answer))

	log.Info().
		Str("conversation_id", conversationID).
		Str("mode", string(persona)).
		Int("sources", len(sources)).
		Dur("elapsed", time.Since(start)).
		Msg("query answered")
	return &Answer{Answer: answer, Sources: sources}, nil
}

// History returns the conversation's turns in order.
func (o *Orchestrator) History(ctx context.Context, conversationID string) ([]models.ChatTurn, error) {
	conv, err := o.store.GetOrCreate(ctx, conversationID, o.defaultMode)
	if err != nil {
		return nil, err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]models.ChatTurn(nil), conv.turns...), nil
}

// ClearHistory empties the conversation's memory.
func (o *Orchestrator) ClearHistory(ctx context.Context, conversationID string) error {
	conv, err := o.store.GetOrCreate(ctx, conversationID, o.defaultMode)
	if err != nil {
		return err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.turns = nil
	return nil
}

// SetMode switches the conversation's persona permanently and clears its
// memory; history written for one persona reads wrong for the other.
func (o *Orchestrator) SetMode(ctx context.Context, conversationID, mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}
	conv, err := o.store.GetOrCreate(ctx, conversationID, o.defaultMode)
	if err != nil {
		return err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.mode = m
	conv.turns = nil
	log.Info().Str("conversation_id", conversationID).Str("mode", mode).Msg("chat mode switched")
	return nil
}

func composeUserPrompt(question string, sources []models.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, src.Text)
	}
	return b.String()
}

func transcript(turns []models.ChatTurn) string {
	var b strings.Builder
	for _, t := range turns {
		role := "Human"
		if t.Role == models.ChatRoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	return b.String()
}

func userTurn(content string) models.ChatTurn {
	return models.ChatTurn{Role: models.ChatRoleUser, Content: content}
}

func assistantTurn(content string) models.ChatTurn {
	return models.ChatTurn{Role: models.ChatRoleAssistant, Content: content}
}
