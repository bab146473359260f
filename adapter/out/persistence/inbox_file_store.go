// Package persistence provides the flat-file snapshot store implementing the
// outbound store port.
package persistence

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
)

var _ out.InboxStore = (*FileStore)(nil)

// FileStoreConfig names the four JSON documents. Relative names resolve
// against Dir.
type FileStoreConfig struct {
	Dir           string
	InboxFile     string
	ProcessedFile string
	PromptsFile   string
	DraftsFile    string
}

func DefaultFileStoreConfig(dir string) FileStoreConfig {
	return FileStoreConfig{
		Dir:           dir,
		InboxFile:     "inbox.json",
		ProcessedFile: "processed_inbox.json",
		PromptsFile:   "prompts.json",
		DraftsFile:    "drafts.json",
	}
}

// FileStore keeps every document as one JSON file. Writes go to a temp file in
// the same directory and are renamed into place, so readers only ever see a
// complete previous or complete new document.
type FileStore struct {
	inboxPath     string
	processedPath string
	promptsPath   string
	draftsPath    string

	mu  sync.RWMutex
	log zerolog.Logger
}

func NewFileStore(cfg FileStoreConfig, log zerolog.Logger) (*FileStore, error) {
	def := DefaultFileStoreConfig(cfg.Dir)
	if cfg.InboxFile == "" {
		cfg.InboxFile = def.InboxFile
	}
	if cfg.ProcessedFile == "" {
		cfg.ProcessedFile = def.ProcessedFile
	}
	if cfg.PromptsFile == "" {
		cfg.PromptsFile = def.PromptsFile
	}
	if cfg.DraftsFile == "" {
		cfg.DraftsFile = def.DraftsFile
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, apperr.StoreFailed("mkdir", cfg.Dir, err)
		}
	}

	return &FileStore{
		inboxPath:     resolve(cfg.Dir, cfg.InboxFile),
		processedPath: resolve(cfg.Dir, cfg.ProcessedFile),
		promptsPath:   resolve(cfg.Dir, cfg.PromptsFile),
		draftsPath:    resolve(cfg.Dir, cfg.DraftsFile),
		log:           log.With().Str("component", "file_store").Logger(),
	}, nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// =============================================================================
// Raw inbox
// =============================================================================

// rawInboxDocument is the wrapped raw inbox layout.
type rawInboxDocument struct {
	Emails []domain.RawEmail `json:"emails"`
}

func (s *FileStore) LoadRawInbox(ctx context.Context) ([]domain.RawEmail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, err := os.ReadFile(s.inboxPath)
	s.mu.RUnlock()
	if err != nil {
		return nil, apperr.StoreFailed("read", s.inboxPath, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []domain.RawEmail{}, nil
	}

	var emails []domain.RawEmail
	if trimmed[0] == '{' {
		var doc rawInboxDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, apperr.StoreFailed("parse", s.inboxPath, err)
		}
		emails = doc.Emails
	} else if err := json.Unmarshal(trimmed, &emails); err != nil {
		return nil, apperr.StoreFailed("parse", s.inboxPath, err)
	}

	if emails == nil {
		emails = []domain.RawEmail{}
	}
	return emails, nil
}

// =============================================================================
// Prompt templates
// =============================================================================

func (s *FileStore) LoadPromptTemplates(ctx context.Context) (domain.PromptTemplateSet, error) {
	prompts := domain.PromptTemplateSet{}
	if err := s.readOptional(ctx, s.promptsPath, &prompts); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = domain.PromptTemplateSet{}
	}
	return prompts, nil
}

func (s *FileStore) SavePromptTemplates(ctx context.Context, prompts domain.PromptTemplateSet) error {
	if prompts == nil {
		prompts = domain.PromptTemplateSet{}
	}
	return s.write(ctx, s.promptsPath, prompts)
}

// =============================================================================
// Enriched inbox
// =============================================================================

func (s *FileStore) LoadEnrichedInbox(ctx context.Context) ([]domain.EmailRecord, error) {
	var emails []domain.EmailRecord
	if err := s.readOptional(ctx, s.processedPath, &emails); err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []domain.EmailRecord{}
	}
	return emails, nil
}

func (s *FileStore) ReplaceEnrichedInbox(ctx context.Context, emails []domain.EmailRecord) error {
	if emails == nil {
		emails = []domain.EmailRecord{}
	}
	if err := s.write(ctx, s.processedPath, emails); err != nil {
		return err
	}
	s.log.Info().Int("emails", len(emails)).Str("path", s.processedPath).Msg("enriched inbox replaced")
	return nil
}

// =============================================================================
// Drafts
// =============================================================================

func (s *FileStore) LoadDrafts(ctx context.Context) ([]domain.Draft, error) {
	var drafts []domain.Draft
	if err := s.readOptional(ctx, s.draftsPath, &drafts); err != nil {
		return nil, err
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	return drafts, nil
}

func (s *FileStore) SaveDrafts(ctx context.Context, drafts []domain.Draft) error {
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	return s.write(ctx, s.draftsPath, drafts)
}

// AppendDraft adds one draft under a single write lock so concurrent appends
// never lose each other.
func (s *FileStore) AppendDraft(ctx context.Context, draft domain.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var drafts []domain.Draft
	if err := s.readLocked(s.draftsPath, &drafts); err != nil {
		return err
	}
	drafts = append(drafts, draft)
	return s.writeLocked(s.draftsPath, drafts)
}

func (s *FileStore) RemoveDraft(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var drafts []domain.Draft
	if err := s.readLocked(s.draftsPath, &drafts); err != nil {
		return err
	}

	kept := make([]domain.Draft, 0, len(drafts))
	for _, d := range drafts {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(drafts) {
		return apperr.NotFound("draft")
	}
	return s.writeLocked(s.draftsPath, kept)
}

// ReplaceDraftsWhere filters and extends the drafts document in one locked
// read-modify-write.
func (s *FileStore) ReplaceDraftsWhere(ctx context.Context, keep func(domain.Draft) bool, add []domain.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var drafts []domain.Draft
	if err := s.readLocked(s.draftsPath, &drafts); err != nil {
		return err
	}

	kept := make([]domain.Draft, 0, len(drafts)+len(add))
	for _, d := range drafts {
		if keep == nil || keep(d) {
			kept = append(kept, d)
		}
	}
	kept = append(kept, add...)
	return s.writeLocked(s.draftsPath, kept)
}

// =============================================================================
// File helpers
// =============================================================================

func (s *FileStore) readOptional(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(path, v)
}

// readLocked decodes path into v. A missing or empty file leaves v untouched.
func (s *FileStore) readLocked(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperr.StoreFailed("read", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.StoreFailed("parse", path, err)
	}
	return nil
}

func (s *FileStore) write(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(path, v)
}

func (s *FileStore) writeLocked(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.StoreFailed("encode", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.StoreFailed("write", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.StoreFailed("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.StoreFailed("sync", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.StoreFailed("write", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperr.StoreFailed("rename", path, err)
	}
	return nil
}
