// Package services – Engine
//
// This file implements the conversation-context engine: the policy that
// decides what is sent to the language model on every turn.
//
//   - Sequencing: every message gets max(sequence)+1, computed from storage.
//   - Context building: the transcript projected to role/content pairs.
//   - Summarization: once the estimated token cost of a transcript reaches
//     the threshold, the first messages are condensed into one system message.
//   - Retrieval: in rag mode, chunks of linked documents that share a word
//     with the user turn are prepended as context.
//
// A turn holds a per-conversation lock from sequence assignment until the
// reply is persisted, so two turns on one conversation never interleave.
package services

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/lock"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/search"
)

// Engine defaults.
const (
	DefaultSummaryThreshold = 3000
	DefaultSummaryCutoff    = 6

	summaryInstruction = "Summarize briefly."
	summaryPrefix      = "Conversation summary: "
	contextPreamble    = "Use this context:\n"
	contextSeparator   = "\n---\n"
)

// Gateway sends a prompt to the language model and returns its reply.
// *llm.Client satisfies it.
type Gateway interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

var (
	summariesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_summaries_total",
			Help: "Number of times a conversation history was summarized.",
		},
	)
	retrievalChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_chunks_returned",
			Help:    "Chunks returned per retrieval.",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(summariesTotal, retrievalChunks)
}

// fallbackLocker serializes turns for Engines built without a Locker.
var fallbackLocker = lock.NewLocal()

// Engine runs conversation turns against storage and the model gateway.
type Engine struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gateway produces model replies and summaries.
	Gateway Gateway
	// Locker serializes turns per conversation. Nil means an in-process lock.
	Locker lock.Locker

	// SummaryThreshold is the estimated token total at which history is
	// summarized. Zero means DefaultSummaryThreshold.
	SummaryThreshold int
	// SummaryCutoff is how many leading messages are summarized, and the
	// sequence at or below which messages are deleted afterwards.
	// Zero means DefaultSummaryCutoff.
	SummaryCutoff int
	// RetrievalLimit caps retrieved chunks. Zero means
	// search.DefaultRetrievalLimit.
	RetrievalLimit int
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	User       *domain.Message
	Reply      *domain.Message
	Summarized bool
}

func (e *Engine) locker() lock.Locker {
	if e.Locker == nil {
		return fallbackLocker
	}
	return e.Locker
}

func (e *Engine) threshold() int {
	if e.SummaryThreshold <= 0 {
		return DefaultSummaryThreshold
	}
	return e.SummaryThreshold
}

func (e *Engine) cutoff() int {
	if e.SummaryCutoff <= 0 {
		return DefaultSummaryCutoff
	}
	return e.SummaryCutoff
}

// NextSequence returns 1 for an empty conversation, otherwise the highest
// persisted sequence plus one. It never caches.
func (e *Engine) NextSequence(ctx context.Context, db *gorm.DB, conversationID string) (int, error) {
	last, err := repo.MaxSequence(ctx, db, conversationID)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// BuildContext projects the full transcript into role/content pairs in
// ascending sequence order.
func (e *Engine) BuildContext(ctx context.Context, conversationID string) ([]llm.Message, error) {
	msgs, err := repo.ListMessages(ctx, e.DB, conversationID)
	if err != nil {
		return nil, err
	}
	return toLLM(msgs), nil
}

// BuildContextBefore is BuildContext limited to messages whose sequence is
// lower than sequence.
func (e *Engine) BuildContextBefore(ctx context.Context, db *gorm.DB, conversationID string, sequence int) ([]llm.Message, error) {
	msgs, err := repo.ListMessagesBefore(ctx, db, conversationID, sequence)
	if err != nil {
		return nil, err
	}
	return toLLM(msgs), nil
}

func toLLM(msgs []domain.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// MaybeSummarize collapses early history once the transcript's estimated
// token cost reaches the threshold. It reports whether history was rewritten.
//
// The first SummaryCutoff messages are summarized by the gateway, then every
// message with sequence <= SummaryCutoff is deleted and a system message
// holding the summary is inserted at sequence 1. The cutoff is a fixed
// sequence number, not the set of summarized rows. A gateway failure leaves
// history untouched.
func (e *Engine) MaybeSummarize(ctx context.Context, db *gorm.DB, conversationID string) (bool, error) {
	ctx, span := otel.Tracer("services/Engine").Start(ctx, "MaybeSummarize",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	msgs, err := repo.ListMessages(ctx, db, conversationID)
	if err != nil {
		return false, err
	}
	total := 0
	for _, m := range msgs {
		total += search.EstimateTokens(m.Content)
	}
	span.SetAttributes(attribute.Int("tokens.estimated", total))
	if total < e.threshold() {
		return false, nil
	}

	cutoff := e.cutoff()
	head := msgs
	if len(head) > cutoff {
		head = head[:cutoff]
	}
	parts := make([]string, len(head))
	for i, m := range head {
		parts[i] = m.Content
	}

	summary, err := e.Gateway.Complete(ctx, []llm.Message{
		{Role: domain.RoleSystem, Content: summaryInstruction},
		{Role: domain.RoleUser, Content: strings.Join(parts, " ")},
	})
	if err != nil {
		return false, fmt.Errorf("summarize: %w", err)
	}

	var deleted int64
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.DeleteMessagesUpTo(ctx, tx, conversationID, cutoff)
		if err != nil {
			return err
		}
		deleted = n
		_, err = repo.CreateMessage(ctx, tx, conversationID, domain.RoleSystem, summaryPrefix+summary, 1)
		return err
	})
	if err != nil {
		return false, err
	}

	summariesTotal.Inc()
	log.Ctx(ctx).Info().
		Str("conversation_id", conversationID).
		Int("tokens_estimated", total).
		Int64("messages_replaced", deleted).
		Msg("conversation summarized")
	return true, nil
}

// Retrieve returns, in enumeration order, the first RetrievalLimit chunks of
// documents linked to the conversation that contain any word of query,
// ignoring case. Documents are visited in creation order and chunks in
// chunk_index order. Chunks are loaded one document at a time and loading
// stops once the limit is reached. A blank query or a conversation without
// documents yields an empty result.
func (e *Engine) Retrieve(ctx context.Context, conversationID, query string) ([]string, error) {
	ctx, span := otel.Tracer("services/Engine").Start(ctx, "Retrieve",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	terms := search.QueryTerms(query)
	if len(terms) == 0 {
		retrievalChunks.Observe(0)
		return nil, nil
	}
	docIDs, err := repo.ListLinkedDocumentIDs(ctx, e.DB, conversationID)
	if err != nil {
		return nil, err
	}

	var loadErr error
	chunks := iter.Seq[string](func(yield func(string) bool) {
		for _, id := range docIDs {
			rows, err := repo.ListChunks(ctx, e.DB, id)
			if err != nil {
				loadErr = err
				return
			}
			for _, r := range rows {
				if !yield(r.ChunkText) {
					return
				}
			}
		}
	})

	out := search.FirstMatches(terms, chunks, e.RetrievalLimit)
	if loadErr != nil {
		return nil, loadErr
	}
	span.SetAttributes(attribute.Int("retrieval.chunks", len(out)))
	retrievalChunks.Observe(float64(len(out)))
	return out, nil
}

// BuildPrompt assembles the message list for the gateway: history followed by
// the new user turn. In rag mode, when retrieval finds anything, a system
// message carrying the retrieved chunks is placed first.
func (e *Engine) BuildPrompt(ctx context.Context, conv *domain.Conversation, history []llm.Message, userMessage string) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(history)+2)
	if conv.Mode == domain.ModeRAG {
		chunks, err := e.Retrieve(ctx, conv.ID, userMessage)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			out = append(out, llm.Message{
				Role:    domain.RoleSystem,
				Content: contextPreamble + strings.Join(chunks, contextSeparator),
			})
		}
	}
	out = append(out, history...)
	out = append(out, llm.Message{Role: domain.RoleUser, Content: userMessage})
	return out, nil
}

// Turn runs one conversation turn: persist the user message, summarize if
// over budget, assemble the prompt, call the gateway and persist the reply.
//
// The conversation is re-checked once the lock is held, so a Delete that won
// the lock first yields ErrConversationNotFound. A failure after the user
// message was saved leaves it in place; no assistant message is written in
// that case.
func (e *Engine) Turn(ctx context.Context, conv *domain.Conversation, content string) (*TurnResult, error) {
	ctx, span := otel.Tracer("services/Engine").Start(ctx, "Turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conv.ID),
			attribute.String("conversation.mode", conv.Mode),
		),
	)
	defer span.End()

	unlock, err := e.locker().Lock(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := repo.ConversationExists(ctx, e.DB, conv.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConversationNotFound
	}

	seq, err := e.NextSequence(ctx, e.DB, conv.ID)
	if err != nil {
		return nil, err
	}
	userMsg, err := repo.CreateMessage(ctx, e.DB, conv.ID, domain.RoleUser, content, seq)
	if err != nil {
		return nil, err
	}

	summarized, err := e.MaybeSummarize(ctx, e.DB, conv.ID)
	if err != nil {
		return nil, err
	}

	history, err := e.BuildContextBefore(ctx, e.DB, conv.ID, seq)
	if err != nil {
		return nil, err
	}
	prompt, err := e.BuildPrompt(ctx, conv, history, content)
	if err != nil {
		return nil, err
	}

	reply, err := e.Gateway.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	next, err := e.NextSequence(ctx, e.DB, conv.ID)
	if err != nil {
		return nil, err
	}
	replyMsg, err := repo.CreateMessage(ctx, e.DB, conv.ID, domain.RoleAssistant, reply, next)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("message.sequence", next))

	return &TurnResult{User: userMsg, Reply: replyMsg, Summarized: summarized}, nil
}
