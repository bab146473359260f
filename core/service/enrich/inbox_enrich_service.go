// Package enrich runs the enrichment pipeline: one structured model call per raw
// email, strict validation of every result, and an all-or-nothing commit of the
// enriched snapshot.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"inbox_server/core/agent/prompt"
	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/metrics"
)

const defaultConcurrency = 4

type Config struct {
	// Concurrency bounds in-flight model calls per run.
	Concurrency int
	// AutoReplyDrafts stores model-suggested replies as drafts after each run.
	AutoReplyDrafts bool
}

// RunResult summarizes a committed run.
type RunResult struct {
	Processed int           `json:"processed"`
	Spam      int           `json:"spam"`
	Drafts    int           `json:"drafts"`
	Duration  time.Duration `json:"duration"`
}

// enriched pairs a validated record with the auto-reply text the model proposed.
type enriched struct {
	record    domain.EmailRecord
	autoReply string
}

type Service struct {
	store out.InboxStore
	llm   out.LLMClient
	lock  out.WriterLock // optional, cross-process
	cfg   Config
	log   zerolog.Logger

	running sync.Mutex
}

func NewService(store out.InboxStore, llm out.LLMClient, lock out.WriterLock, cfg Config, log zerolog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		store: store,
		llm:   llm,
		lock:  lock,
		cfg:   cfg,
		log:   log.With().Str("component", "enrich").Logger(),
	}
}

// Enrich returns one validated record per raw email, in input order. The first
// failing email aborts the batch with a PIPELINE_FAILED error naming its
// zero-based index and message id.
func (s *Service) Enrich(ctx context.Context, raw []domain.RawEmail, prompts domain.PromptTemplateSet) ([]domain.EmailRecord, error) {
	results, err := s.enrichBatch(ctx, raw, prompts)
	if err != nil {
		return nil, err
	}
	records := make([]domain.EmailRecord, len(results))
	for i, r := range results {
		records[i] = r.record
	}
	return records, nil
}

// Run loads the raw inbox and prompts, enriches everything and replaces the
// enriched snapshot. On any failure before the commit nothing is written.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	if !s.running.TryLock() {
		metrics.IncrementEnrichmentRun("busy")
		return nil, apperr.Busy("enrichment run")
	}
	defer s.running.Unlock()

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		if err != nil {
			if apperr.IsCode(err, apperr.CodeBusy) {
				metrics.IncrementEnrichmentRun("busy")
			} else {
				metrics.IncrementEnrichmentRun("failed")
			}
			return nil, err
		}
		defer release()
	}

	result, err := s.run(ctx)
	if err != nil {
		metrics.IncrementEnrichmentRun("failed")
		return nil, err
	}
	metrics.IncrementEnrichmentRun("committed")
	metrics.RecordEnrichmentRun(result.Duration)
	return result, nil
}

func (s *Service) run(ctx context.Context) (*RunResult, error) {

	start := time.Now()

	raw, err := s.store.LoadRawInbox(ctx)
	if err != nil {
		return nil, err
	}
	prompts, err := s.store.LoadPromptTemplates(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("emails", len(raw)).Int("concurrency", s.cfg.Concurrency).Msg("enrichment run started")

	results, err := s.enrichBatch(ctx, raw, prompts)
	if err != nil {
		s.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("enrichment run aborted, snapshot unchanged")
		return nil, err
	}

	records := make([]domain.EmailRecord, len(results))
	spam := 0
	for i, r := range results {
		records[i] = r.record
		if r.record.IsSpam {
			spam++
		}
	}

	if err := s.store.ReplaceEnrichedInbox(ctx, records); err != nil {
		return nil, err
	}
	for _, r := range records {
		metrics.IncrementEmailEnriched(r.CategoryName())
	}

	result := &RunResult{Processed: len(records), Spam: spam}

	// The snapshot is committed here, so a drafts failure only warns.
	if s.cfg.AutoReplyDrafts {
		n, err := s.replaceSuggestedDrafts(ctx, results)
		if err != nil {
			s.log.Warn().Err(err).Msg("enriched inbox committed but suggested drafts were not saved")
		} else {
			result.Drafts = n
		}
	}

	result.Duration = time.Since(start)
	s.log.Info().
		Int("processed", result.Processed).
		Int("spam", result.Spam).
		Int("drafts", result.Drafts).
		Dur("elapsed", result.Duration).
		Msg("enrichment run committed")
	return result, nil
}

func (s *Service) enrichBatch(ctx context.Context, raw []domain.RawEmail, prompts domain.PromptTemplateSet) ([]enriched, error) {
	results := make([]enriched, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range raw {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.enrichOne(gctx, i, raw[i], prompts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) enrichOne(ctx context.Context, index int, raw domain.RawEmail, prompts domain.PromptTemplateSet) (enriched, error) {
	id := raw.ID
	if id == "" {
		id = uuid.NewString()
	}

	instruction := prompt.BuildCategorizationInstruction(raw, prompts)
	output, err := s.llm.CompleteJSON(ctx, instruction)
	if err != nil {
		return enriched{}, s.fail(index, raw, err)
	}

	result := domain.DecodeExtraction(raw, id, output)
	record, err := result.Record()
	if err != nil {
		return enriched{}, s.fail(index, raw, err)
	}
	return enriched{record: *record, autoReply: result.AutoReply()}, nil
}

func (s *Service) fail(index int, raw domain.RawEmail, err error) error {
	s.log.Warn().Err(err).
		Int("index", index).
		Str("message_id", raw.MessageID).
		Msg("email enrichment failed")
	return apperr.PipelineFailed(index, raw.MessageID, err)
}

// replaceSuggestedDrafts swaps the previous run's suggested replies for this
// run's in one store operation. Drafts saved by the user are kept, including
// ones saved while the run was in flight.
func (s *Service) replaceSuggestedDrafts(ctx context.Context, results []enriched) (int, error) {
	var add []domain.Draft
	for _, r := range results {
		if r.autoReply == "" || !r.record.ShouldAutoReply() {
			continue
		}
		emailID := r.record.ID
		add = append(add, domain.Draft{
			ID:             uuid.NewString(),
			Type:           domain.DraftReply,
			RelatedEmailID: &emailID,
			Subject:        replySubject(r.record.Subject),
			Body:           r.autoReply,
			Status:         domain.DraftStatusSuggested,
		})
	}

	keep := func(d domain.Draft) bool { return d.Status != domain.DraftStatusSuggested }
	if err := s.store.ReplaceDraftsWhere(ctx, keep, add); err != nil {
		return 0, err
	}
	return len(add), nil
}

func replySubject(subject string) string {
	if subject == "" {
		return prompt.DefaultDraftSubject
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
