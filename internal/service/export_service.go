package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Sign(fileID, relPath string) (string, time.Time, error)
	Verify(token string, allowExpired bool) (storage.SignedFile, error)
}

// FileServiceConfig tunes stored file behaviour.
type FileServiceConfig struct {
	APIPrefix       string
	RetentionTTL    time.Duration
	CleanupInterval time.Duration
}

// StoredFile describes a persisted file reachable through a signed URL.
type StoredFile struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Download is a resolved signed URL ready to stream.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// FileService stores generated files (credential slips, exports) and serves them
// back through HMAC signed download tokens.
type FileService struct {
	storage fileStorage
	signer  urlSigner
	logger  *zap.Logger
	cfg     FileServiceConfig
}

// NewFileService constructs a FileService.
func NewFileService(store fileStorage, signer urlSigner, cfg FileServiceConfig, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetentionTTL <= 0 {
		cfg.RetentionTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &FileService{storage: store, signer: signer, logger: logger, cfg: cfg}
}

// Store writes payload under a dated folder for kind and returns a signed URL.
func (s *FileService) Store(kind, name string, payload []byte) (*StoredFile, error) {
	id := uuid.NewString()
	filename := sanitizeFilename(name)
	rel := path.Join(sanitizeFilename(kind), time.Now().UTC().Format("20060102"), id[:8]+"_"+filename)

	stored, err := s.storage.Save(rel, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	token, expiresAt, err := s.signer.Sign(id, stored)
	if err != nil {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &StoredFile{
		ID:        id,
		Filename:  filename,
		URL:       fmt.Sprintf("%s/files/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve validates token and loads the referenced file.
func (s *FileService) Resolve(token string) (*Download, error) {
	file, err := s.signer.Verify(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link is invalid")
	}
	body, err := s.storage.Read(file.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file is no longer available")
	}
	filename := path.Base(file.Path)
	if i := strings.IndexByte(filename, '_'); i > 0 {
		filename = filename[i+1:]
	}
	return &Download{Filename: filename, ContentType: contentTypeFor(filename), Body: body}, nil
}

// Cleanup removes files past the retention TTL.
func (s *FileService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.RetentionTTL)
}

// StartCleanup runs Cleanup on an interval until ctx is cancelled.
func (s *FileService) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Cleanup()
				if err != nil {
					s.logger.Warn("file cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("removed expired files", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "file"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
