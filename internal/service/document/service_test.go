package document

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/generation"
	"github.com/1282saa/paperone/internal/repository"
	"github.com/1282saa/paperone/internal/service/subject"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	output    string
	err       error
	chunks    []generation.Chunk
	streamErr error
	prompts   []string
}

func (f *fakeBackend) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

func (f *fakeBackend) GenerateStream(ctx context.Context, prompt string) (<-chan generation.Chunk, error) {
	f.prompts = append(f.prompts, prompt)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan generation.Chunk)
	go func() {
		defer close(ch)
		for _, c := range f.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeBackend) ModelName() string { return "claude-3-haiku" }

type fixture struct {
	svc      *Service
	subjects *subject.Service
	backend  *fakeBackend
	fallback *generation.TableFallback
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenBadger(store.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	subjectRepo := repository.NewSubjectRepository(
		db.Table(repository.SubjectsTable("subjects", repository.DefaultUserIndex)), "", nil)
	documentRepo := repository.NewDocumentRepository(
		db.Table(repository.DocumentsTable("documents", repository.DefaultUserIndex, repository.DefaultSubjectIndex)), "", "", nil)

	f := &fixture{
		backend:  &fakeBackend{},
		fallback: generation.NewTableFallback(true),
		now:      time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC),
	}
	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("id-%02d", seq) }
	clock := func() time.Time { return f.now }

	f.subjects = subject.NewService(subjectRepo, documentRepo, nil, nil, nil,
		subject.WithIDGenerator(ids), subject.WithClock(clock))
	f.svc = NewService(documentRepo, f.subjects, f.backend, f.fallback, nil, nil, nil,
		WithIDGenerator(ids), WithClock(clock))
	return f
}

func (f *fixture) subject(t *testing.T, userID, name string) *domain.Subject {
	t.Helper()
	s, err := f.subjects.Create(context.Background(), userID, subject.CreateInput{Name: name})
	require.NoError(t, err)
	return s
}

func (f *fixture) document(t *testing.T, userID, subjectID string, pages int) *domain.Document {
	t.Helper()
	d, err := f.svc.Create(context.Background(), userID, domain.NewDocument{
		SubjectID: subjectID,
		Title:     "note",
		Pages:     &pages,
	})
	require.NoError(t, err)
	return d
}


func TestStatisticsFollowDocumentMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")

	assertStats := func(docs, pages int) {
		t.Helper()
		got, err := f.subjects.Get(ctx, "u1", s.SubjectID)
		require.NoError(t, err)
		assert.Equal(t, docs, got.TotalDocuments)
		assert.Equal(t, pages, got.TotalPages)
	}

	d1 := f.document(t, "u1", s.SubjectID, 5)
	assert.Equal(t, 5, d1.Pages)
	assertStats(1, 5)

	d2 := f.document(t, "u1", s.SubjectID, 2)
	assertStats(2, 7)

	_, err := f.svc.Update(ctx, "u1", d2.DocumentID, domain.DocumentUpdate{Pages: domain.Some(4)})
	require.NoError(t, err)
	assertStats(2, 9)

	require.NoError(t, f.svc.Delete(ctx, "u1", d1.DocumentID))
	assertStats(1, 4)

	t.Run("RoundTripPages", func(t *testing.T) {
		d := f.document(t, "u1", s.SubjectID, 5)
		got, err := f.svc.Get(ctx, "u1", d.DocumentID, s.SubjectID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Pages)
		assertStats(2, 9)
	})
}

func TestUpdateFieldMask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")

	text, url := "ocr", "https://cdn/img.jpg"
	d, err := f.svc.Create(ctx, "u1", domain.NewDocument{
		SubjectID:     s.SubjectID,
		Title:         "note",
		ExtractedText: &text,
		ImageURL:      &url,
	})
	require.NoError(t, err)

	t.Run("AbsentKeeps", func(t *testing.T) {
		got, err := f.svc.Update(ctx, "u1", d.DocumentID, domain.DocumentUpdate{Title: domain.Some("renamed")})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		require.NotNil(t, got.ExtractedText)
		assert.Equal(t, "ocr", *got.ExtractedText)
	})

	t.Run("NullClears", func(t *testing.T) {
		_, err := f.svc.Update(ctx, "u1", d.DocumentID, domain.DocumentUpdate{ExtractedText: domain.Null[string]()})
		require.NoError(t, err)

		got, err := f.svc.Get(ctx, "u1", d.DocumentID, s.SubjectID)
		require.NoError(t, err)
		assert.Nil(t, got.ExtractedText)
		require.NotNil(t, got.ImageURL)
		assert.Equal(t, url, *got.ImageURL)
	})

	t.Run("NullPagesRejected", func(t *testing.T) {
		_, err := f.svc.Update(ctx, "u1", d.DocumentID, domain.DocumentUpdate{Pages: domain.Null[int]()})
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestCreateRequiresOwnedSubject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")

	_, err := f.svc.Create(ctx, "u2", domain.NewDocument{SubjectID: s.SubjectID, Title: "x"})
	assert.True(t, appErrors.IsNotFound(err))

	_, err = f.svc.Create(ctx, "u1", domain.NewDocument{SubjectID: s.SubjectID, Title: ""})
	assert.True(t, appErrors.IsValidation(err))

	d, err := f.svc.Create(ctx, "u1", domain.NewDocument{SubjectID: s.SubjectID, Title: "defaults"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Pages)
	assert.Equal(t, 0, d.ReviewCount)
	assert.False(t, d.ReviewCompleted)
}

func TestGetOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")
	d := f.document(t, "u1", s.SubjectID, 1)

	t.Run("ByScan", func(t *testing.T) {
		got, err := f.svc.Get(ctx, "u1", d.DocumentID, "")
		require.NoError(t, err)
		assert.Equal(t, d.DocumentID, got.DocumentID)
	})

	t.Run("OtherUserWithSubjectIsForbidden", func(t *testing.T) {
		_, err := f.svc.Get(ctx, "u2", d.DocumentID, s.SubjectID)
		assert.True(t, appErrors.IsForbidden(err))
	})

	t.Run("OtherUserByScanIsNotFound", func(t *testing.T) {
		_, err := f.svc.Get(ctx, "u2", d.DocumentID, "")
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("ListBySubjectChecksOwner", func(t *testing.T) {
		_, err := f.svc.ListBySubject(ctx, "u2", s.SubjectID)
		assert.True(t, appErrors.IsNotFound(err))
		docs, err := f.svc.ListBySubject(ctx, "u1", s.SubjectID)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestToggleReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")
	d := f.document(t, "u1", s.SubjectID, 1)

	done, err := f.svc.ToggleReview(ctx, "u1", d.DocumentID)
	require.NoError(t, err)
	assert.True(t, done.ReviewCompleted)
	assert.Equal(t, 1, done.ReviewCount)
	require.NotNil(t, done.LastReviewedAt)
	reviewedAt := *done.LastReviewedAt

	f.now = f.now.Add(time.Hour)
	back, err := f.svc.ToggleReview(ctx, "u1", d.DocumentID)
	require.NoError(t, err)
	assert.False(t, back.ReviewCompleted)
	assert.Equal(t, 1, back.ReviewCount)
	require.NotNil(t, back.LastReviewedAt)
	assert.Equal(t, reviewedAt, *back.LastReviewedAt)

	stored, err := f.svc.Get(ctx, "u1", d.DocumentID, s.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReviewCount)
	assert.False(t, stored.ReviewCompleted)
}

func TestDueReviewsService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("NoDocuments", func(t *testing.T) {
		due, err := f.svc.DueReviews(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, due.Today)
		assert.Empty(t, due.Overdue)
		assert.NotNil(t, due.Today)
		assert.Zero(t, due.TodayCount)
		assert.Zero(t, due.OverdueCount)
	})

	s := f.subject(t, "u1", "Math")
	today := f.now
	f.now = today.Add(-24 * time.Hour)
	old := f.document(t, "u1", s.SubjectID, 1)
	f.now = today
	f.document(t, "u1", s.SubjectID, 1)
	f.document(t, "u1", s.SubjectID, 1)

	due, err := f.svc.DueReviews(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, due.TodayCount)
	assert.Equal(t, 1, due.OverdueCount)
	require.Len(t, due.Overdue, 1)
	assert.Equal(t, old.DocumentID, due.Overdue[0].DocumentID)
	assert.Equal(t, "Math", due.Overdue[0].SubjectName)
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")
	d := f.document(t, "u1", s.SubjectID, 1)

	t.Run("ReturnsTrimmedOutput", func(t *testing.T) {
		f.backend.output = "  | a | b |\n"
		res, err := f.svc.Correct(ctx, "u1", d.DocumentID, "원문")
		require.NoError(t, err)
		assert.Equal(t, "원문", res.OriginalText)
		assert.Equal(t, "| a | b |", res.CorrectedText)
		assert.Equal(t, "claude-3-haiku", res.ModelUsed)
		assert.Equal(t, f.now, res.Timestamp)
		assert.Contains(t, f.backend.prompts[len(f.backend.prompts)-1], "원문")
	})

	t.Run("FallbackInsertsTable", func(t *testing.T) {
		f.backend.output = "국내외 목표 - 판매\n"
		res, err := f.svc.Correct(ctx, "u1", d.DocumentID, "국내외 목표 - 판매")
		require.NoError(t, err)
		assert.Equal(t, "| 구분 | 내용 |\n|------|------|\n| 국내외 목표 - 판매", res.CorrectedText)
	})

	t.Run("FallbackDisabled", func(t *testing.T) {
		f.fallback.SetEnabled(false)
		defer f.fallback.SetEnabled(true)
		f.backend.output = "국내외 목표 - 판매"
		res, err := f.svc.Correct(ctx, "u1", d.DocumentID, "국내외 목표 - 판매")
		require.NoError(t, err)
		assert.Equal(t, "국내외 목표 - 판매", res.CorrectedText)
	})

	t.Run("BackendError", func(t *testing.T) {
		f.backend.err = fmt.Errorf("socket closed")
		defer func() { f.backend.err = nil }()
		_, err := f.svc.Correct(ctx, "u1", d.DocumentID, "text")
		assert.True(t, appErrors.IsGeneration(err))
	})

	t.Run("NotOwner", func(t *testing.T) {
		calls := len(f.backend.prompts)
		_, err := f.svc.Correct(ctx, "u2", d.DocumentID, "text")
		assert.True(t, appErrors.IsNotFound(err))
		assert.Len(t, f.backend.prompts, calls)
	})
}

func drain(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var out []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestCorrectStream(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.subject(t, "u1", "Math")
	d := f.document(t, "u1", s.SubjectID, 1)

	t.Run("ForwardsInOrder", func(t *testing.T) {
		f.backend.chunks = []generation.Chunk{{Text: "# 노트"}, {Text: "\n| a |"}, {Text: " b |"}}
		ch, err := f.svc.CorrectStream(ctx, "u1", d.DocumentID, "목표")
		require.NoError(t, err)
		assert.Equal(t, []string{"# 노트", "\n| a |", " b |"}, drain(t, ch))
		assert.True(t, strings.HasPrefix(f.backend.prompts[len(f.backend.prompts)-1], "당신은 학습 노트"))
	})

	t.Run("EmptyStream", func(t *testing.T) {
		f.backend.chunks = nil
		ch, err := f.svc.CorrectStream(ctx, "u1", d.DocumentID, "plain text")
		require.NoError(t, err)
		assert.Empty(t, drain(t, ch))
	})

	t.Run("FallbackTailAppended", func(t *testing.T) {
		f.backend.chunks = []generation.Chunk{{Text: "요약"}}
		ch, err := f.svc.CorrectStream(ctx, "u1", d.DocumentID, "올해 목표")
		require.NoError(t, err)
		got := drain(t, ch)
		require.Len(t, got, 6)
		assert.Equal(t, "요약", got[0])
		assert.Equal(t, "\n\n## 주요 정보 정리\n\n", got[1])
		assert.Equal(t, "| 목표 | 텍스트에서 추출된 목표 내용 |\n", got[4])
	})

	t.Run("MidStreamErrorBecomesFinalFragment", func(t *testing.T) {
		f.backend.chunks = []generation.Chunk{
			{Text: "앞부분"},
			{Err: appErrors.NewGeneration("model stream failed", fmt.Errorf("reset"))},
			{Text: "never sent"},
		}
		ch, err := f.svc.CorrectStream(ctx, "u1", d.DocumentID, "목표")
		require.NoError(t, err)
		got := drain(t, ch)
		require.Len(t, got, 2)
		assert.Equal(t, "앞부분", got[0])
		assert.Equal(t, "오류 발생: model stream failed: reset", got[1])
	})

	t.Run("OpenErrorBecomesFragment", func(t *testing.T) {
		f.backend.streamErr = fmt.Errorf("access denied")
		defer func() { f.backend.streamErr = nil }()
		ch, err := f.svc.CorrectStream(ctx, "u1", d.DocumentID, "text")
		require.NoError(t, err)
		assert.Equal(t, []string{"오류 발생: access denied"}, drain(t, ch))
	})

	t.Run("OwnershipCheckedBeforeStreaming", func(t *testing.T) {
		_, err := f.svc.CorrectStream(ctx, "u2", d.DocumentID, "text")
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("CancelClosesStream", func(t *testing.T) {
		f.backend.chunks = []generation.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}}
		cctx, cancel := context.WithCancel(ctx)
		ch, err := f.svc.CorrectStream(cctx, "u1", d.DocumentID, "text")
		require.NoError(t, err)
		first := <-ch
		assert.Equal(t, "a", first)
		cancel()
		drain(t, ch)
	})
}
