package review

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/maxbolgarin/codehook/internal/engine"
	"github.com/maxbolgarin/codehook/internal/events"
	"github.com/maxbolgarin/codehook/internal/filter"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/codehook/internal/storage"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	defaultPoolSize = 100

	// Posted for push events whose filtered change set is empty.
	noRelevantFilesResult = "no relevant files changed"

	commentPrefix = "Auto Review Result: \n"
)

// Merge-like events are reviewed only for these provider actions.
// Everything else (close, merge, label churn) is ignored.
var allowedActions = map[model.ProviderType][]string{
	model.ProviderGitLab: {"open", "update"},
	model.ProviderGitHub: {"opened", "synchronize"},
	model.ProviderGitea:  {"opened", "open", "reopened", "synchronize", "synchronized"},
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	HasMergeRevision(ctx context.Context, project, sourceBranch, targetBranch, lastCommitID string) bool
	InsertMergeReview(ctx context.Context, rec *storage.MergeReviewRecord) error
	InsertPushReview(ctx context.Context, rec *storage.PushReviewRecord) error
}

// Publisher delivers review outcomes to downstream subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any)
}

// Service runs one review orchestration per inbound event: extract,
// filter, dedup, engine call, persist, publish. Runs are submitted to
// a pool so the webhook handler can ack immediately.
type Service struct {
	cfg      Config
	engine   model.ReviewEngine
	store    Store
	notifier model.Notifier
	bus      Publisher
	logger   logze.Logger
	pool     *ants.Pool
}

// NewService creates a review orchestration service.
func NewService(cfg Config, eng model.ReviewEngine, store Store, notifier model.Notifier, bus Publisher) (*Service, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create pool")
	}

	return &Service{
		cfg:      cfg,
		engine:   eng,
		store:    store,
		notifier: notifier,
		bus:      bus,
		logger:   logze.With("module", "review"),
		pool:     pool,
	}, nil
}

// Submit schedules an orchestration run on the pool.
func (s *Service) Submit(ctx context.Context, provider model.CodeProvider, event *model.Event) error {
	return s.pool.Submit(func() {
		s.Process(ctx, provider, event)
	})
}

// Close releases the pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Process runs the full orchestration for one event. All event-fatal
// errors funnel through here: they are logged and forwarded to the
// notifier, never returned, so the webhook ack is unaffected.
func (s *Service) Process(ctx context.Context, provider model.CodeProvider, event *model.Event) {
	log := s.logger.WithFields(
		"provider", event.Provider,
		"kind", event.Kind,
		"project", event.ProjectName,
		"author", event.Author,
	)

	var err error
	switch event.Kind {
	case model.EventPush:
		err = s.processPush(ctx, provider, event, log)
	case model.EventMerge:
		err = s.processMerge(ctx, provider, event, log)
	default:
		log.Warn("unknown event kind")
		return
	}

	if err != nil {
		log.Err(err, "failed to process event")
		s.notifier.Send(ctx, fmt.Sprintf("review of %s %s event for %s failed: %s\n%s",
			event.Provider, event.Kind, event.ProjectName, err, debug.Stack()))
	}
}

func (s *Service) processPush(ctx context.Context, provider model.CodeProvider, event *model.Event, log logze.Logger) error {
	if !s.cfg.PushReviewEnabled {
		log.Info("push review is disabled, skipping event")
		return nil
	}

	commits, err := provider.ExtractCommits(ctx, event)
	if err != nil {
		return errm.Wrap(err, "failed to extract commits")
	}
	if len(commits) == 0 {
		log.Warn("push event carries no commits")
		return nil
	}

	changes, err := provider.ExtractChanges(ctx, event)
	if err != nil {
		return errm.Wrap(err, "failed to extract changes")
	}
	filtered := filter.Apply(changes, s.cfg.SupportedExtensions)

	var (
		result               string
		score                int
		additions, deletions int
	)
	if len(filtered) == 0 {
		log.Info("no relevant files in push, recording sentinel result")
		result = noRelevantFilesResult
	} else {
		result, err = s.engine.Review(ctx, filtered, model.JoinCommitMessages(commits))
		if err != nil {
			return errm.Wrap(err, "failed to review changes")
		}
		score = engine.ParseScore(result)
		additions, deletions = sumCounts(filtered)

		if err := provider.PostComment(ctx, event, commentPrefix+result); err != nil {
			log.Err(err, "failed to post review comment")
		}
	}

	outcome := model.PushReviewEvent{
		ProjectName:  event.ProjectName,
		Author:       event.Author,
		Branch:       event.Branch,
		UpdatedAt:    time.Now().Unix(),
		Commits:      commits,
		Score:        score,
		ReviewResult: result,
		URLSlug:      event.URLSlug,
		Additions:    additions,
		Deletions:    deletions,
	}

	if err := s.store.InsertPushReview(ctx, &storage.PushReviewRecord{
		ProjectName:    outcome.ProjectName,
		Author:         outcome.Author,
		Branch:         outcome.Branch,
		UpdatedAt:      outcome.UpdatedAt,
		CommitMessages: model.JoinCommitMessages(commits),
		Score:          outcome.Score,
		ReviewResult:   outcome.ReviewResult,
		Additions:      outcome.Additions,
		Deletions:      outcome.Deletions,
	}); err != nil {
		log.Err(err, "failed to persist push review")
	}

	s.bus.Publish(ctx, events.TopicPushReviewed, outcome)
	log.Info("push review completed", "score", score, "files", len(filtered))
	return nil
}

func (s *Service) processMerge(ctx context.Context, provider model.CodeProvider, event *model.Event, log logze.Logger) error {
	log = log.WithFields("source", event.SourceBranch, "target", event.TargetBranch)

	if !slices.Contains(allowedActions[event.Provider], event.Action) {
		log.Debug("merge action is not reviewable", "action", event.Action)
		return nil
	}

	commits, err := provider.ExtractCommits(ctx, event)
	if err != nil {
		return errm.Wrap(err, "failed to extract commits")
	}
	if len(commits) == 0 {
		log.Warn("merge event carries no commits")
		return nil
	}

	if event.Draft {
		log.Info("merge request is a draft, skipping review")
		s.notifier.Send(ctx, fmt.Sprintf("merge request %s in %s is a draft, review skipped",
			event.URL, event.ProjectName))
		return nil
	}

	if s.cfg.MergeOnlyProtectedBranches {
		protected, err := provider.IsTargetBranchProtected(ctx, event)
		if err != nil {
			return errm.Wrap(err, "failed to check branch protection")
		}
		if !protected {
			log.Debug("target branch is not protected, skipping review")
			return nil
		}
	}

	if s.store.HasMergeRevision(ctx, event.ProjectName, event.SourceBranch, event.TargetBranch, event.LastCommitID) {
		log.Info("revision already reviewed, skipping", "last_commit_id", event.LastCommitID)
		return nil
	}

	changes, err := provider.ExtractChanges(ctx, event)
	if err != nil {
		return errm.Wrap(err, "failed to extract changes")
	}
	filtered := filter.Apply(changes, s.cfg.SupportedExtensions)
	if len(filtered) == 0 {
		log.Info("no relevant files in merge request, skipping review")
		return nil
	}

	result, err := s.engine.Review(ctx, filtered, model.JoinCommitMessages(commits))
	if err != nil {
		return errm.Wrap(err, "failed to review changes")
	}
	score := engine.ParseScore(result)
	additions, deletions := sumCounts(filtered)

	if err := provider.PostComment(ctx, event, commentPrefix+result); err != nil {
		log.Err(err, "failed to post review comment")
	}

	outcome := model.MergeReviewEvent{
		ProjectName:  event.ProjectName,
		Author:       event.Author,
		SourceBranch: event.SourceBranch,
		TargetBranch: event.TargetBranch,
		UpdatedAt:    time.Now().Unix(),
		Commits:      commits,
		Score:        score,
		URL:          event.URL,
		ReviewResult: result,
		URLSlug:      event.URLSlug,
		Additions:    additions,
		Deletions:    deletions,
		LastCommitID: event.LastCommitID,
	}

	if err := s.store.InsertMergeReview(ctx, &storage.MergeReviewRecord{
		ProjectName:    outcome.ProjectName,
		Author:         outcome.Author,
		SourceBranch:   outcome.SourceBranch,
		TargetBranch:   outcome.TargetBranch,
		UpdatedAt:      outcome.UpdatedAt,
		CommitMessages: model.JoinCommitMessages(commits),
		Score:          outcome.Score,
		URL:            outcome.URL,
		ReviewResult:   outcome.ReviewResult,
		Additions:      outcome.Additions,
		Deletions:      outcome.Deletions,
		LastCommitID:   outcome.LastCommitID,
	}); err != nil {
		log.Err(err, "failed to persist merge review")
	}

	s.bus.Publish(ctx, events.TopicMergeReviewed, outcome)
	log.Info("merge review completed", "score", score, "files", len(filtered))
	return nil
}

func sumCounts(changes []model.RawChange) (additions, deletions int) {
	for _, ch := range changes {
		additions += ch.Additions
		deletions += ch.Deletions
	}
	return additions, deletions
}
