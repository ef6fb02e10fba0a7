package review

import (
	"context"
	"testing"

	"github.com/maxbolgarin/codehook/internal/events"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/codehook/internal/storage"
)

type fakeProvider struct {
	commits        []model.CommitInfo
	changes        []model.RawChange
	protected      bool
	extractCalls   int
	commentsPosted []string
}

func (f *fakeProvider) ParseWebhook(payload []byte, eventName string) (*model.Event, error) {
	return nil, nil
}

func (f *fakeProvider) ValidateWebhook(payload []byte, authToken string) error { return nil }

func (f *fakeProvider) ExtractCommits(ctx context.Context, event *model.Event) ([]model.CommitInfo, error) {
	return f.commits, nil
}

func (f *fakeProvider) ExtractChanges(ctx context.Context, event *model.Event) ([]model.RawChange, error) {
	f.extractCalls++
	return f.changes, nil
}

func (f *fakeProvider) PostComment(ctx context.Context, event *model.Event, body string) error {
	f.commentsPosted = append(f.commentsPosted, body)
	return nil
}

func (f *fakeProvider) IsTargetBranchProtected(ctx context.Context, event *model.Event) (bool, error) {
	return f.protected, nil
}

type fakeEngine struct {
	result string
	calls  int
}

func (f *fakeEngine) Review(ctx context.Context, changes []model.RawChange, commitsText string) (string, error) {
	f.calls++
	return f.result, nil
}

type fakeStore struct {
	mergeRows []storage.MergeReviewRecord
	pushRows  []storage.PushReviewRecord
}

func (f *fakeStore) HasMergeRevision(ctx context.Context, project, source, target, lastCommitID string) bool {
	for _, r := range f.mergeRows {
		if r.ProjectName == project && r.SourceBranch == source &&
			r.TargetBranch == target && r.LastCommitID == lastCommitID {
			return true
		}
	}
	return false
}

func (f *fakeStore) InsertMergeReview(ctx context.Context, rec *storage.MergeReviewRecord) error {
	f.mergeRows = append(f.mergeRows, *rec)
	return nil
}

func (f *fakeStore) InsertPushReview(ctx context.Context, rec *storage.PushReviewRecord) error {
	f.pushRows = append(f.pushRows, *rec)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Send(ctx context.Context, text string) {
	f.messages = append(f.messages, text)
}

type fakeBus struct {
	published map[events.Topic][]any
}

func (f *fakeBus) Publish(ctx context.Context, topic events.Topic, payload any) {
	if f.published == nil {
		f.published = make(map[events.Topic][]any)
	}
	f.published[topic] = append(f.published[topic], payload)
}

func newTestService(t *testing.T, cfg Config, eng *fakeEngine, store *fakeStore, notifier *fakeNotifier, bus *fakeBus) *Service {
	t.Helper()
	s, err := NewService(cfg, eng, store, notifier, bus)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func someCommits() []model.CommitInfo {
	return []model.CommitInfo{{ID: "abc", Message: "fix bug", Author: "alice"}}
}

func someChanges() []model.RawChange {
	return []model.RawChange{{
		Path:      "main.go",
		Status:    model.StatusModified,
		Diff:      "+added line\n-removed line\n",
		Additions: 1,
		Deletions: 1,
		HasStats:  true,
	}}
}

func mergeEvent() *model.Event {
	return &model.Event{
		Kind:         model.EventMerge,
		Provider:     model.ProviderGitLab,
		Action:       "open",
		ProjectName:  "alpha",
		Author:       "alice",
		SourceBranch: "feat",
		TargetBranch: "main",
		LastCommitID: "abc",
		URL:          "https://example.com/mr/1",
	}
}

func TestMergeReviewHappyPath(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "solid work\nscore: 85"}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	bus := &fakeBus{}
	s := newTestService(t, Config{}, eng, store, notifier, bus)

	s.Process(context.Background(), provider, mergeEvent())

	if eng.calls != 1 {
		t.Fatalf("expected 1 engine call, got %d", eng.calls)
	}
	if len(store.mergeRows) != 1 {
		t.Fatalf("expected 1 persisted row, got %d", len(store.mergeRows))
	}
	row := store.mergeRows[0]
	if row.Score != 85 || row.Additions != 1 || row.Deletions != 1 || row.LastCommitID != "abc" {
		t.Errorf("unexpected persisted row: %+v", row)
	}
	if row.CommitMessages != "fix bug" {
		t.Errorf("unexpected commit messages: %q", row.CommitMessages)
	}
	if len(provider.commentsPosted) != 1 {
		t.Errorf("expected 1 posted comment, got %d", len(provider.commentsPosted))
	}
	if len(bus.published[events.TopicMergeReviewed]) != 1 {
		t.Errorf("expected 1 published merge event")
	}
	if len(notifier.messages) != 0 {
		t.Errorf("no notifications expected, got %v", notifier.messages)
	}
}

func TestMergeDuplicateRevisionDropped(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	s := newTestService(t, Config{}, eng, store, &fakeNotifier{}, &fakeBus{})

	s.Process(context.Background(), provider, mergeEvent())
	s.Process(context.Background(), provider, mergeEvent())

	if eng.calls != 1 {
		t.Errorf("second identical event must not reach the engine, got %d calls", eng.calls)
	}
	if len(store.mergeRows) != 1 {
		t.Errorf("second identical event must not persist a row, got %d", len(store.mergeRows))
	}
}

func TestMergeDraftSkipsExtractionAndNotifies(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	s := newTestService(t, Config{}, eng, store, notifier, &fakeBus{})

	event := mergeEvent()
	event.Draft = true
	s.Process(context.Background(), provider, event)

	if len(notifier.messages) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.messages))
	}
	if provider.extractCalls != 0 {
		t.Errorf("draft must abort before change extraction, got %d calls", provider.extractCalls)
	}
	if eng.calls != 0 || len(store.mergeRows) != 0 {
		t.Errorf("draft must not be reviewed or persisted")
	}
}

func TestMergeUnprotectedBranchSkipped(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges(), protected: false}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	s := newTestService(t, Config{MergeOnlyProtectedBranches: true}, eng, store, notifier, &fakeBus{})

	s.Process(context.Background(), provider, mergeEvent())

	if eng.calls != 0 || len(store.mergeRows) != 0 || len(notifier.messages) != 0 {
		t.Errorf("unprotected target branch must be skipped silently")
	}
}

func TestMergeIgnoredAction(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	s := newTestService(t, Config{}, eng, store, &fakeNotifier{}, &fakeBus{})

	event := mergeEvent()
	event.Action = "close"
	s.Process(context.Background(), provider, event)

	if eng.calls != 0 || len(store.mergeRows) != 0 {
		t.Errorf("close action must be ignored")
	}
}

func TestMergeEmptyFilterSilentDrop(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: []model.RawChange{
		{Path: "picture.png", Status: model.StatusModified, Diff: "+x\n"},
	}}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	bus := &fakeBus{}
	s := newTestService(t, Config{SupportedExtensions: []string{".go"}}, eng, store, notifier, bus)

	s.Process(context.Background(), provider, mergeEvent())

	if eng.calls != 0 || len(store.mergeRows) != 0 || len(bus.published) != 0 {
		t.Errorf("merge event with no relevant files must be dropped silently")
	}
}

func TestPushReviewDisabled(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	s, err := NewService(Config{PushReviewEnabled: false}, eng, store, &fakeNotifier{}, &fakeBus{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer s.Close()

	s.Process(context.Background(), provider, &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitLab,
		ProjectName: "alpha",
		Branch:      "main",
	})

	if eng.calls != 0 || len(store.pushRows) != 0 {
		t.Errorf("disabled push review must not call the engine or persist")
	}
}

func TestPushEmptyFilterPersistsSentinel(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: []model.RawChange{
		{Path: "notes.txt", Status: model.StatusModified, Diff: "+x\n"},
	}}
	eng := &fakeEngine{result: "score: 70"}
	store := &fakeStore{}
	bus := &fakeBus{}
	s := newTestService(t, Config{PushReviewEnabled: true, SupportedExtensions: []string{".go"}}, eng, store, &fakeNotifier{}, bus)

	s.Process(context.Background(), provider, &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitLab,
		ProjectName: "alpha",
		Branch:      "main",
	})

	if eng.calls != 0 {
		t.Errorf("sentinel outcome must not call the engine")
	}
	if len(store.pushRows) != 1 {
		t.Fatalf("expected sentinel row, got %d rows", len(store.pushRows))
	}
	row := store.pushRows[0]
	if row.ReviewResult != noRelevantFilesResult || row.Score != 0 || row.Additions != 0 || row.Deletions != 0 {
		t.Errorf("unexpected sentinel row: %+v", row)
	}
	if len(bus.published[events.TopicPushReviewed]) != 1 {
		t.Errorf("sentinel outcome must still be published")
	}
}

func TestPushHappyPath(t *testing.T) {
	provider := &fakeProvider{commits: someCommits(), changes: someChanges()}
	eng := &fakeEngine{result: "fine\nscore: 90"}
	store := &fakeStore{}
	bus := &fakeBus{}
	s := newTestService(t, Config{PushReviewEnabled: true}, eng, store, &fakeNotifier{}, bus)

	s.Process(context.Background(), provider, &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitea,
		ProjectName: "alpha",
		Author:      "bob",
		Branch:      "dev",
	})

	if eng.calls != 1 {
		t.Fatalf("expected 1 engine call, got %d", eng.calls)
	}
	if len(store.pushRows) != 1 {
		t.Fatalf("expected 1 persisted row, got %d", len(store.pushRows))
	}
	row := store.pushRows[0]
	if row.Score != 90 || row.Branch != "dev" || row.Author != "bob" {
		t.Errorf("unexpected persisted row: %+v", row)
	}
	if len(provider.commentsPosted) != 1 {
		t.Errorf("expected review comment on push")
	}
}
