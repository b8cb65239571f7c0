package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/agentmem/pkg/markdown"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newMemory(id model.MemoryID, createdAt time.Time) *model.Memory {
	return &model.Memory{
		Meta: model.Meta{
			ID:        id,
			CreatedAt: createdAt,
			Project:   "agentmem",
			Agent:     model.AgentClaude,
			Version:   model.SchemaVersion,
		},
		Context: model.Context{
			Goal:        "Persist agent memories <safely> & atomically",
			TechStack:   []string{"Go"},
			Constraints: []string{},
		},
		State: model.State{
			Implemented:  []string{"validator"},
			Pending:      []string{},
			FilesTouched: []string{"pkg/repository/filesystem.go"},
		},
		Decisions: []model.Decision{
			{Decision: "tmp+rename", Rationale: "atomic"},
		},
		NextActions: []string{"write tests"},
		Raw:         &model.Raw{Source: model.RawSourceConversation},
	}
}

func setupRepo(t *testing.T) (*repository.FileSystem, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "memory")
	return repository.New(dir, repository.WithLocation(time.UTC)), dir
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	gt.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo, dir := setupRepo(t)

	m := newMemory(model.NewMemoryID(), time.Date(2026, 10, 15, 9, 30, 0, 123000000, time.UTC))
	gt.NoError(t, repo.Save(ctx, m))

	// Both artifacts exist, no temp files remain
	_, err := os.Stat(repo.JSONPath(m.Meta.ID))
	gt.NoError(t, err)
	_, err = os.Stat(repo.MarkdownPath(m.Meta.ID))
	gt.NoError(t, err)

	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.A(t, entries).Length(2)

	loaded, err := repo.Load(ctx, m.Meta.ID)
	gt.NoError(t, err)
	gt.Equal(t, loaded, m)

	// JSON artifact is pretty-printed and not HTML-escaped
	data, err := os.ReadFile(repo.JSONPath(m.Meta.ID))
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("\n  \"meta\": {")
	gt.S(t, string(data)).Contains("<safely> & atomically")

	md, err := os.ReadFile(repo.MarkdownPath(m.Meta.ID))
	gt.NoError(t, err)
	gt.Equal(t, string(md), markdown.Render(m, markdown.WithLocation(time.UTC)))
}

func TestSaveCreatesNestedDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	repo := repository.New(dir)

	gt.NoError(t, repo.Save(ctx, newMemory(model.NewMemoryID(), time.Now().UTC())))

	info, err := os.Stat(dir)
	gt.NoError(t, err)
	gt.True(t, info.IsDir())
}

func TestSaveDirCreateFailed(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	file := filepath.Join(base, "file")
	gt.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	repo := repository.New(filepath.Join(file, "memory"))
	err := repo.Save(ctx, newMemory(model.NewMemoryID(), time.Now().UTC()))
	gt.Error(t, err).Required()
	gt.True(t, errors.Is(err, model.ErrDirCreateFailed))
}

func TestSaveRejectsUnsafeID(t *testing.T) {
	ctx := context.Background()
	repo, dir := setupRepo(t)

	for _, id := range []model.MemoryID{"../../etc/passwd", "latest", ""} {
		err := repo.Save(ctx, newMemory(id, time.Now().UTC()))
		gt.Error(t, err).Required()
		gt.True(t, errors.Is(err, model.ErrInvalidID))
	}

	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}

func TestLoadLatestByModificationTime(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	// ID order is the opposite of write order
	r1 := newMemory("ffffffff-ffff-4fff-bfff-ffffffffffff", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r2 := newMemory("00000000-0000-4000-8000-000000000000", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	gt.NoError(t, repo.Save(ctx, r1))
	gt.NoError(t, repo.Save(ctx, r2))

	now := time.Now()
	setMtime(t, repo.JSONPath(r1.Meta.ID), now.Add(-time.Hour))
	setMtime(t, repo.JSONPath(r2.Meta.ID), now)

	latest, err := repo.Load(ctx, model.LatestMemoryID)
	gt.NoError(t, err)
	gt.Equal(t, latest.Meta.ID, r2.Meta.ID)

	// mtime wins over both ID and createdAt
	setMtime(t, repo.JSONPath(r1.Meta.ID), now.Add(time.Hour))
	latest, err = repo.Load(ctx, model.LatestMemoryID)
	gt.NoError(t, err)
	gt.Equal(t, latest.Meta.ID, r1.Meta.ID)
}

func TestLoadLatestNoMemories(t *testing.T) {
	ctx := context.Background()

	t.Run("missing directory", func(t *testing.T) {
		repo, _ := setupRepo(t)
		_, err := repo.Load(ctx, model.LatestMemoryID)
		gt.Error(t, err).Required()
		gt.True(t, errors.Is(err, model.ErrNoMemoriesFound))
	})

	t.Run("only non-json files", func(t *testing.T) {
		repo, dir := setupRepo(t)
		gt.NoError(t, os.MkdirAll(dir, 0755))
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("# x"), 0644))
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "x.json.tmp"), []byte("{}"), 0644))

		_, err := repo.Load(ctx, model.LatestMemoryID)
		gt.Error(t, err).Required()
		gt.True(t, errors.Is(err, model.ErrNoMemoriesFound))
	})
}

func TestLoadRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	_, err := repo.Load(ctx, "../../etc/passwd")
	gt.Error(t, err).Required()
	gt.True(t, errors.Is(err, model.ErrInvalidID))
}

func TestLoadNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	_, err := repo.Load(ctx, model.NewMemoryID())
	gt.Error(t, err).Required()
	gt.True(t, errors.Is(err, model.ErrLoadFailed))
	gt.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadCorruptedFile(t *testing.T) {
	ctx := context.Background()

	t.Run("schema violation", func(t *testing.T) {
		repo, _ := setupRepo(t)
		m := newMemory(model.NewMemoryID(), time.Now().UTC())
		gt.NoError(t, repo.Save(ctx, m))

		path := repo.JSONPath(m.Meta.ID)
		data, err := os.ReadFile(path)
		gt.NoError(t, err)

		var doc map[string]any
		gt.NoError(t, json.Unmarshal(data, &doc))
		doc["context"].(map[string]any)["goal"] = ""
		data, err = json.Marshal(doc)
		gt.NoError(t, err)
		gt.NoError(t, os.WriteFile(path, data, 0644))

		loaded, err := repo.Load(ctx, m.Meta.ID)
		gt.Error(t, err).Required()
		gt.Nil(t, loaded)
		gt.True(t, errors.Is(err, model.ErrLoadFailed))
		gt.True(t, errors.Is(err, model.ErrSchemaValidation))
		gt.Equal(t, model.CodeOf(err), model.CodeLoadFailed)
		gt.S(t, err.Error()).Contains("context.goal")

		// latest resolution goes through the same gate
		_, err = repo.Load(ctx, model.LatestMemoryID)
		gt.True(t, errors.Is(err, model.ErrLoadFailed))
	})

	t.Run("invalid JSON", func(t *testing.T) {
		repo, _ := setupRepo(t)
		m := newMemory(model.NewMemoryID(), time.Now().UTC())
		gt.NoError(t, repo.Save(ctx, m))
		gt.NoError(t, os.WriteFile(repo.JSONPath(m.Meta.ID), []byte("{\"meta\":"), 0644))

		_, err := repo.Load(ctx, m.Meta.ID)
		gt.Error(t, err).Required()
		gt.True(t, errors.Is(err, model.ErrLoadFailed))
		gt.False(t, errors.Is(err, model.ErrSchemaValidation))
	})

	t.Run("id does not match file name", func(t *testing.T) {
		repo, _ := setupRepo(t)
		m := newMemory(model.NewMemoryID(), time.Now().UTC())
		gt.NoError(t, repo.Save(ctx, m))

		other := model.NewMemoryID()
		data, err := os.ReadFile(repo.JSONPath(m.Meta.ID))
		gt.NoError(t, err)
		gt.NoError(t, os.WriteFile(repo.JSONPath(other), data, 0644))

		_, err = repo.Load(ctx, other)
		gt.Error(t, err).Required()
		gt.True(t, errors.Is(err, model.ErrLoadFailed))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo, dir := setupRepo(t)

	older := newMemory(model.NewMemoryID(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := newMemory(model.NewMemoryID(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	newer.Meta.Project = "other"
	gt.NoError(t, repo.Save(ctx, older))
	gt.NoError(t, repo.Save(ctx, newer))

	// files that must be skipped
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{oops"), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "nometa.json"), []byte(`{"context":{}}`), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "nodate.json"),
		[]byte(`{"meta":{"id":"`+model.NewMemoryID().String()+`"}}`), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "badid.json"),
		[]byte(`{"meta":{"id":"../x","createdAt":"2026-01-01T00:00:00Z"}}`), 0644))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.json.tmp"), []byte("{}"), 0644))
	gt.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	summaries, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, summaries).Length(2)
	gt.Equal(t, summaries[0].ID, newer.Meta.ID)
	gt.Equal(t, summaries[0].Project, "other")
	gt.True(t, summaries[0].CreatedAt.Equal(newer.Meta.CreatedAt))
	gt.Equal(t, summaries[1].ID, older.Meta.ID)
}

func TestListIncludesUnvalidatedEntries(t *testing.T) {
	ctx := context.Background()
	repo, dir := setupRepo(t)
	gt.NoError(t, os.MkdirAll(dir, 0755))

	id := model.NewMemoryID()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, id.String()+".json"),
		[]byte(`{"meta":{"id":"`+id.String()+`","createdAt":"2026-01-01T00:00:00Z"}}`), 0644))

	summaries, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, summaries).Length(1)
	gt.Equal(t, summaries[0].Project, model.UnknownProject)
}

func TestListMissingDirectory(t *testing.T) {
	repo, _ := setupRepo(t)
	summaries, err := repo.List(context.Background())
	gt.NoError(t, err)
	gt.A(t, summaries).Length(0)
}

func TestRegenerateMarkdown(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemory(model.NewMemoryID(), time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	gt.NoError(t, repo.Save(ctx, m))

	jsonPath := repo.JSONPath(m.Meta.ID)
	before, err := os.ReadFile(jsonPath)
	gt.NoError(t, err)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	setMtime(t, jsonPath, past)

	gt.NoError(t, os.WriteFile(repo.MarkdownPath(m.Meta.ID), []byte("tampered"), 0644))
	gt.NoError(t, repo.RegenerateMarkdown(ctx, m.Meta.ID))

	md, err := os.ReadFile(repo.MarkdownPath(m.Meta.ID))
	gt.NoError(t, err)
	gt.Equal(t, string(md), markdown.Render(m, markdown.WithLocation(time.UTC)))

	after, err := os.ReadFile(jsonPath)
	gt.NoError(t, err)
	gt.Equal(t, string(after), string(before))
	info, err := os.Stat(jsonPath)
	gt.NoError(t, err)
	gt.True(t, info.ModTime().Equal(past))
}

func TestRegenerateMarkdownRecreatesMissingFile(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemory(model.NewMemoryID(), time.Now().UTC())
	gt.NoError(t, repo.Save(ctx, m))
	gt.NoError(t, os.Remove(repo.MarkdownPath(m.Meta.ID)))

	gt.NoError(t, repo.RegenerateMarkdown(ctx, model.LatestMemoryID))
	_, err := os.Stat(repo.MarkdownPath(m.Meta.ID))
	gt.NoError(t, err)
}

func TestRegenerateMarkdownRequiresValidRecord(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	err := repo.RegenerateMarkdown(ctx, model.NewMemoryID())
	gt.Error(t, err).Required()
	gt.True(t, errors.Is(err, model.ErrLoadFailed))
}

func TestConcurrentSavesOfDifferentIDs(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Save(ctx, newMemory(model.NewMemoryID(), time.Now().UTC()))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		gt.NoError(t, err)
	}

	summaries, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, summaries).Length(n)
}
