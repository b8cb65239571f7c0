package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/agentmem/pkg/markdown"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/schema"
	"github.com/m-mizutani/agentmem/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	jsonExt     = ".json"
	markdownExt = ".md"
	tmpSuffix   = ".tmp"

	dirPerm  = 0o755
	filePerm = 0o644
)

// FileSystem stores each memory as <id>.json plus a rendered <id>.md in a
// single directory. The directory listing is the only index.
//
// There is no locking. Correctness for a single writer relies on the
// write-to-temp-then-rename protocol; racing writers on the same ID are not
// coordinated and the last rename wins.
type FileSystem struct {
	dir string
	loc *time.Location

	// replaced in tests to inject I/O failures
	writeFile func(name string, data []byte, perm os.FileMode) error
	rename    func(oldpath, newpath string) error
	remove    func(name string) error
}

var _ Repository = (*FileSystem)(nil)

// Option is a functional option for FileSystem
type Option func(*FileSystem)

// WithLocation sets the time zone used when rendering Markdown
func WithLocation(loc *time.Location) Option {
	return func(r *FileSystem) {
		r.loc = loc
	}
}

// New creates a filesystem repository rooted at dir. The directory is
// created lazily on the first save.
func New(dir string, opts ...Option) *FileSystem {
	r := &FileSystem{
		dir:       dir,
		loc:       time.Local,
		writeFile: os.WriteFile,
		rename:    os.Rename,
		remove:    os.Remove,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dir returns the storage directory
func (r *FileSystem) Dir() string {
	return r.dir
}

// JSONPath returns the path of the structured artifact for id
func (r *FileSystem) JSONPath(id model.MemoryID) string {
	return filepath.Join(r.dir, id.String()+jsonExt)
}

// MarkdownPath returns the path of the rendered artifact for id
func (r *FileSystem) MarkdownPath(id model.MemoryID) string {
	return filepath.Join(r.dir, id.String()+markdownExt)
}

func (r *FileSystem) ensureDir() error {
	if err := os.MkdirAll(r.dir, dirPerm); err != nil {
		return model.NewError(model.CodeDirCreateFailed, "failed to create memory directory: "+r.dir,
			goerr.Wrap(err, "mkdir failed", goerr.V("dir", r.dir)))
	}
	return nil
}

// recordID sanitizes the ID of a memory about to be written
func recordID(m *model.Memory) (model.MemoryID, error) {
	id, err := model.SanitizeID(m.Meta.ID.String())
	if err != nil {
		return "", err
	}
	if id.IsLatest() {
		return "", model.NewError(model.CodeInvalidID, "\"latest\" cannot be used as a memory ID", nil)
	}
	return id, nil
}

func (r *FileSystem) Save(ctx context.Context, m *model.Memory) error {
	if err := r.ensureDir(); err != nil {
		return err
	}

	id, err := recordID(m)
	if err != nil {
		return err
	}

	jsonData, err := encodeJSON(m)
	if err != nil {
		return model.NewError(model.CodeSaveFailed, "failed to save memory: "+id.String(), err)
	}
	mdData := []byte(markdown.Render(m, markdown.WithLocation(r.loc)))

	// Both writes are always awaited. If one fails after the other
	// succeeded, the finished artifact is left in place.
	var eg errgroup.Group
	eg.Go(func() error {
		return r.writeAtomic(r.JSONPath(id), jsonData)
	})
	eg.Go(func() error {
		return r.writeAtomic(r.MarkdownPath(id), mdData)
	})
	if err := eg.Wait(); err != nil {
		return model.NewError(model.CodeSaveFailed, "failed to save memory: "+id.String(), err)
	}

	logging.From(ctx).Debug("memory saved", "id", id, "dir", r.dir)
	return nil
}

func encodeJSON(m *model.Memory) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, goerr.Wrap(err, "failed to encode memory", goerr.V("id", m.Meta.ID))
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to path+".tmp" and renames it over path, so
// readers never observe a partially written file at path. On failure the
// temp file is removed on a best-effort basis and the write error is returned.
func (r *FileSystem) writeAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix

	if err := r.writeFile(tmp, data, filePerm); err != nil {
		_ = r.remove(tmp)
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", tmp))
	}

	if err := r.rename(tmp, path); err != nil {
		_ = r.remove(tmp)
		return goerr.Wrap(err, "failed to rename temp file", goerr.V("from", tmp), goerr.V("to", path))
	}

	return nil
}

func (r *FileSystem) Load(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	safeID, err := model.SanitizeID(id.String())
	if err != nil {
		return nil, err
	}

	var path string
	if safeID.IsLatest() {
		path, err = r.latestPath(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		path = r.JSONPath(safeID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewError(model.CodeLoadFailed, "failed to load memory: "+id.String(),
			goerr.Wrap(err, "failed to read memory file", goerr.V("path", path)))
	}

	m, err := schema.ValidateJSON(data)
	if err != nil {
		return nil, model.NewError(model.CodeLoadFailed, "failed to load memory: "+id.String(), err)
	}

	if !safeID.IsLatest() && m.Meta.ID != safeID {
		return nil, model.NewError(model.CodeLoadFailed, "failed to load memory: "+id.String(),
			goerr.New("memory ID does not match file name", goerr.V("path", path), goerr.V("meta.id", m.Meta.ID)))
	}

	logging.From(ctx).Debug("memory loaded", "id", m.Meta.ID, "path", path)
	return m, nil
}

// latestPath returns the JSON artifact with the newest modification time.
// Memory IDs are random, so file metadata is the only ordering available.
// Among files with identical mtimes the choice is unspecified.
func (r *FileSystem) latestPath(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", model.NewError(model.CodeNoMemoriesFound, "no memory files found in "+r.dir, nil)
		}
		return "", model.NewError(model.CodeLoadFailed, "failed to load memory: latest",
			goerr.Wrap(err, "failed to read memory directory", goerr.V("dir", r.dir)))
	}

	var (
		latest    string
		latestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), jsonExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and stat
			logging.From(ctx).Debug("skip memory file on latest resolution", "name", entry.Name(), "error", err)
			continue
		}

		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(r.dir, entry.Name())
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		return "", model.NewError(model.CodeNoMemoriesFound, "no memory files found in "+r.dir, nil)
	}

	logging.From(ctx).Debug("resolved latest memory", "path", latest, "mtime", latestMod)
	return latest, nil
}

// summaryDoc is decoded leniently: List does not validate full records
type summaryDoc struct {
	Meta *struct {
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
		Project   string `json:"project"`
	} `json:"meta"`
}

// List scans every JSON artifact. Files that cannot be read or parsed, or
// that lack a valid meta.id or meta.createdAt, are skipped rather than
// failing the whole listing.
func (r *FileSystem) List(ctx context.Context) ([]*model.Summary, error) {
	logger := logging.From(ctx)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*model.Summary{}, nil
		}
		return nil, model.NewError(model.CodeLoadFailed, "failed to list memories",
			goerr.Wrap(err, "failed to read memory directory", goerr.V("dir", r.dir)))
	}

	summaries := make([]*model.Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), jsonExt) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())

		s, err := readSummary(path)
		if err != nil {
			logger.Warn("skip unreadable memory file", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

func readSummary(path string) (*model.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file")
	}

	var doc summaryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse JSON")
	}
	if doc.Meta == nil {
		return nil, goerr.New("meta is missing")
	}
	if doc.Meta.ID == model.LatestMemoryID.String() || !model.IsValidID(doc.Meta.ID) {
		return nil, goerr.New("meta.id is not a valid memory ID", goerr.V("id", doc.Meta.ID))
	}

	createdAt, err := time.Parse(time.RFC3339Nano, doc.Meta.CreatedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "meta.createdAt is not a timestamp")
	}

	project := doc.Meta.Project
	if project == "" {
		project = model.UnknownProject
	}

	return &model.Summary{
		ID:        model.MemoryID(doc.Meta.ID),
		CreatedAt: createdAt,
		Project:   project,
	}, nil
}

// RegenerateMarkdown re-renders the Markdown artifact from the validated
// JSON artifact. The JSON artifact is not touched.
func (r *FileSystem) RegenerateMarkdown(ctx context.Context, id model.MemoryID) error {
	m, err := r.Load(ctx, id)
	if err != nil {
		return err
	}

	safeID, err := recordID(m)
	if err != nil {
		return err
	}

	path := r.MarkdownPath(safeID)
	if err := r.writeAtomic(path, []byte(markdown.Render(m, markdown.WithLocation(r.loc)))); err != nil {
		return model.NewError(model.CodeSaveFailed, "failed to regenerate markdown: "+safeID.String(), err)
	}

	logging.From(ctx).Debug("markdown regenerated", "id", safeID, "path", path)
	return nil
}
