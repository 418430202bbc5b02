package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	itscommand "github.com/get-eventually/tracker/internal/its/command"
	"github.com/get-eventually/tracker/internal/its/issue"
	"github.com/get-eventually/tracker/internal/its/issueblocklink"
	"github.com/get-eventually/tracker/internal/its/issuecomment"
	"github.com/get-eventually/tracker/version"
)

var now = time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)

func clock() time.Time { return now }

type tracker struct {
	store    *event.InMemoryStore
	index    *event.InMemoryIndex
	issues   itscommand.IssueRepository
	links    itscommand.IssueBlockLinkRepository
	comments itscommand.IssueCommentRepository
}

func newTracker() tracker {
	store := event.NewInMemoryStore()
	index := event.NewInMemoryIndex()

	return tracker{
		store:    store,
		index:    index,
		issues:   aggregate.NewEventSourcedRepository(store, issue.Codec, issue.Type, aggregate.WithIndex(index)),
		links:    aggregate.NewEventSourcedRepository(store, issueblocklink.Codec, issueblocklink.Type, aggregate.WithIndex(index)),
		comments: aggregate.NewEventSourcedRepository(store, issuecomment.Codec, issuecomment.Type),
	}
}

func (tr tracker) create(t *testing.T, title string) issue.Number {
	t.Helper()

	var created issue.Number

	handler := itscommand.CreateIssueHandler{
		Clock:      clock,
		Index:      tr.index,
		Repository: tr.issues,
		OnCreated:  func(n issue.Number) { created = n },
	}

	require.NoError(t, handler.Handle(context.Background(), command.ToEnvelope(itscommand.CreateIssue{Title: title})))

	return created
}

func (tr tracker) find(t *testing.T, n issue.Number) *issue.Issue {
	t.Helper()

	found, ok, err := tr.issues.Find(context.Background(), n)
	require.NoError(t, err)
	require.True(t, ok)

	return found
}

func TestCreateIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("a created issue can be found", func(t *testing.T) {
		tr := newTracker()
		due := now.Add(24 * time.Hour)

		created, err := issue.Create(event.NewStreamID(), 1, "title1", &due, now)
		require.NoError(t, err)
		assert.Equal(t, version.Version(1), created.Version())
		assert.Equal(t, issue.StatusTodo, created.Status)

		require.NoError(t, tr.issues.Save(ctx, created))

		assert.Equal(t, created, tr.find(t, 1))
	})

	t.Run("issue numbers are allocated in sequence", func(t *testing.T) {
		tr := newTracker()

		for want := issue.FirstNumber; want <= 9; want++ {
			assert.Equal(t, want, tr.create(t, "title"+want.String()))
		}

		assert.Equal(t, "title9", tr.find(t, 9).Title)
	})

	t.Run("concurrent creations get distinct numbers", func(t *testing.T) {
		tr := newTracker()

		var (
			mx      sync.Mutex
			numbers []issue.Number
		)

		handler := itscommand.CreateIssueHandler{
			Clock:      clock,
			Index:      tr.index,
			Repository: tr.issues,
			Attempts:   10,
			OnCreated: func(n issue.Number) {
				mx.Lock()
				defer mx.Unlock()
				numbers = append(numbers, n)
			},
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for range 5 {
			group.Go(func() error {
				return handler.Handle(groupCtx, command.ToEnvelope(itscommand.CreateIssue{Title: "racing"}))
			})
		}

		require.NoError(t, group.Wait())
		assert.ElementsMatch(t, []issue.Number{1, 2, 3, 4, 5}, numbers)
	})

	t.Run("invalid titles are rejected", func(t *testing.T) {
		tr := newTracker()
		handler := itscommand.CreateIssueHandler{Clock: clock, Index: tr.index, Repository: tr.issues}

		err := handler.Handle(ctx, command.ToEnvelope(itscommand.CreateIssue{Title: ""}))
		require.ErrorIs(t, err, issue.ErrEmptyTitle)

		ids, err := tr.store.FindEventIDsAfter(ctx, event.ID{})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestFinishIssue(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	n := tr.create(t, "title1")

	handler := itscommand.FinishIssueHandler{Clock: clock, Repository: tr.issues}
	cmd := command.ToEnvelope(itscommand.FinishIssue{Number: n, Resolution: "Fixed"})

	require.NoError(t, handler.Handle(ctx, cmd))

	finished := tr.find(t, n)
	assert.Equal(t, version.Version(2), finished.Version())
	assert.Equal(t, issue.StatusDone, finished.Status)
	assert.Equal(t, "Fixed", finished.Resolution)

	require.ErrorIs(t, handler.Handle(ctx, cmd), issue.ErrAlreadyFinished)
	assert.Equal(t, version.Version(2), tr.find(t, n).Version())

	err := handler.Handle(ctx, command.ToEnvelope(itscommand.FinishIssue{Number: 99}))
	require.ErrorIs(t, err, itscommand.ErrIssueNotFound)
}

func TestUpdateIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("title, description and due can be changed", func(t *testing.T) {
		tr := newTracker()
		n := tr.create(t, "title1")
		due := now.Add(time.Hour)

		require.NoError(t, itscommand.UpdateIssueHandler{Clock: clock, Repository: tr.issues}.
			Handle(ctx, command.ToEnvelope(itscommand.UpdateIssue{Number: n, Due: &due})))
		require.NoError(t, itscommand.UpdateIssueTitleHandler{Clock: clock, Repository: tr.issues}.
			Handle(ctx, command.ToEnvelope(itscommand.UpdateIssueTitle{Number: n, Title: "title2"})))
		require.NoError(t, itscommand.UpdateIssueDescriptionHandler{Clock: clock, Repository: tr.issues}.
			Handle(ctx, command.ToEnvelope(itscommand.UpdateIssueDescription{Number: n, Description: "desc"})))

		updated := tr.find(t, n)
		assert.Equal(t, version.Version(4), updated.Version())
		assert.Equal(t, &due, updated.Due)
		assert.Equal(t, "title2", updated.Title)
		assert.Equal(t, "desc", updated.Description)
	})

	t.Run("the stale update is retried on top of the other one", func(t *testing.T) {
		tr := newTracker()
		n := tr.create(t, "title1")
		first, second := now.Add(time.Hour), now.Add(2*time.Hour)

		winner := tr.find(t, n)
		loser := tr.find(t, n)

		require.NoError(t, winner.ChangeDue(&first, now))
		require.NoError(t, tr.issues.Save(ctx, winner))

		var conflict version.ConflictError

		require.NoError(t, loser.ChangeDue(&second, now))
		require.ErrorAs(t, tr.issues.Save(ctx, loser), &conflict)
		assert.Equal(t, version.ConflictError{Expected: 1, Actual: 2}, conflict)

		handler := command.RetryOnConflict[itscommand.UpdateIssue](itscommand.UpdateIssueHandler{
			Clock: clock,
			Repository: aggregate.FusedRepository[issue.Number, *issue.Issue]{
				Finder: &staleOnce{stale: tr.find(t, n), Finder: tr.issues},
				Saver:  tr.issues,
			},
		}, 3)

		// The first attempt works on version 2 while version 3 gets stored.
		require.NoError(t, itscommand.UpdateIssueHandler{Clock: clock, Repository: tr.issues}.
			Handle(ctx, command.ToEnvelope(itscommand.UpdateIssue{Number: n, Due: &first})))
		require.NoError(t, handler.Handle(ctx, command.ToEnvelope(itscommand.UpdateIssue{Number: n, Due: &second})))

		updated := tr.find(t, n)
		assert.Equal(t, version.Version(4), updated.Version())
		assert.Equal(t, &second, updated.Due)
	})
}

// staleOnce returns an Issue loaded earlier on the first Find,
// as if another writer stored a new version right after loading it.
type staleOnce struct {
	aggregate.Finder[issue.Number, *issue.Issue]

	stale *issue.Issue
	used  bool
}

func (s *staleOnce) Find(ctx context.Context, n issue.Number) (*issue.Issue, bool, error) {
	if !s.used {
		s.used = true
		return s.stale, true, nil
	}

	return s.Finder.Find(ctx, n)
}

func TestBlockIssue(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	first, second := tr.create(t, "title1"), tr.create(t, "title2")
	id := issueblocklink.ID{Issue: first, Blocked: second}

	block := itscommand.BlockIssueHandler{
		Clock:                    clock,
		IssueRepository:          tr.issues,
		IssueBlockLinkRepository: tr.links,
	}
	unblock := itscommand.UnblockIssueHandler{Clock: clock, IssueBlockLinkRepository: tr.links}

	require.NoError(t, block.Handle(ctx, command.ToEnvelope(itscommand.BlockIssue{ID: id})))
	require.ErrorIs(t, block.Handle(ctx, command.ToEnvelope(itscommand.BlockIssue{ID: id})), issueblocklink.ErrAlreadyBlocked)

	require.NoError(t, unblock.Handle(ctx, command.ToEnvelope(itscommand.UnblockIssue{ID: id})))
	require.ErrorIs(t, unblock.Handle(ctx, command.ToEnvelope(itscommand.UnblockIssue{ID: id})), issueblocklink.ErrAlreadyUnblocked)

	require.NoError(t, block.Handle(ctx, command.ToEnvelope(itscommand.BlockIssue{ID: id})))

	link, ok, err := tr.links.Find(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, issueblocklink.StatusBlocked, link.Status)
	assert.Equal(t, version.Version(3), link.Version())

	err = block.Handle(ctx, command.ToEnvelope(itscommand.BlockIssue{ID: issueblocklink.ID{Issue: first, Blocked: 42}}))
	require.ErrorIs(t, err, itscommand.ErrIssueNotFound)

	err = block.Handle(ctx, command.ToEnvelope(itscommand.BlockIssue{ID: issueblocklink.ID{Issue: first, Blocked: first}}))
	require.ErrorIs(t, err, issueblocklink.ErrSelfBlock)

	err = unblock.Handle(ctx, command.ToEnvelope(itscommand.UnblockIssue{ID: issueblocklink.ID{Issue: second, Blocked: first}}))
	require.ErrorIs(t, err, itscommand.ErrLinkNotFound)
}

func TestIssueComment(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	n := tr.create(t, "title1")

	var id issuecomment.ID

	create := itscommand.CreateIssueCommentHandler{
		Clock:             clock,
		IssueRepository:   tr.issues,
		CommentRepository: tr.comments,
		OnCreated:         func(created issuecomment.ID) { id = created },
	}
	update := itscommand.UpdateIssueCommentHandler{Clock: clock, Repository: tr.comments}
	remove := itscommand.DeleteIssueCommentHandler{Clock: clock, Repository: tr.comments}

	err := create.Handle(ctx, command.ToEnvelope(itscommand.CreateIssueComment{Issue: 99, Text: "lost"}))
	require.ErrorIs(t, err, itscommand.ErrIssueNotFound)

	require.NoError(t, create.Handle(ctx, command.ToEnvelope(itscommand.CreateIssueComment{Issue: n, Text: "first"})))
	require.NoError(t, update.Handle(ctx, command.ToEnvelope(itscommand.UpdateIssueComment{ID: id, Text: "second"})))
	require.NoError(t, remove.Handle(ctx, command.ToEnvelope(itscommand.DeleteIssueComment{ID: id})))

	comment, ok, err := tr.comments.Find(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n, comment.Issue)
	assert.Equal(t, "second", comment.Text)
	assert.True(t, comment.Deleted)
	assert.Equal(t, version.Version(3), comment.Version())

	err = update.Handle(ctx, command.ToEnvelope(itscommand.UpdateIssueComment{ID: id, Text: "third"}))
	require.ErrorIs(t, err, issuecomment.ErrDeleted)
	require.ErrorIs(t, remove.Handle(ctx, command.ToEnvelope(itscommand.DeleteIssueComment{ID: id})), issuecomment.ErrDeleted)

	missing := issuecomment.ID(event.NewStreamID())
	err = remove.Handle(ctx, command.ToEnvelope(itscommand.DeleteIssueComment{ID: missing}))
	require.ErrorIs(t, err, itscommand.ErrCommentNotFound)
}

func TestSaveAfterConflict(t *testing.T) {
	ctx := context.Background()
	tr := newTracker()
	n := tr.create(t, "title1")
	due := now.Add(time.Hour)

	winner := tr.find(t, n)
	loser := tr.find(t, n)

	require.NoError(t, winner.ChangeDue(&due, now))
	require.NoError(t, tr.issues.Save(ctx, winner))

	var conflict version.ConflictError

	require.NoError(t, loser.Finish("Fixed", now))
	require.ErrorAs(t, tr.issues.Save(ctx, loser), &conflict)
	require.ErrorAs(t, tr.issues.Save(ctx, loser), &conflict)

	stored := tr.find(t, n)
	assert.Equal(t, version.Version(2), stored.Version())
	assert.Equal(t, issue.StatusTodo, stored.Status)
}
