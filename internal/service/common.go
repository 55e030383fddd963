package service

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// ActorMailSync is the audit label for changes made by the mailbox sync.
const ActorMailSync = "system:mail-sync"

// FileUpload is an uploaded file handed to a service.
type FileUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Clock returns the current time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// newCaseID returns a 24 hex character id so subject tokens stay CASE-<24 hex>.
func newCaseID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func loadCase(ctx context.Context, cases repository.CaseRepository, id string) (*domain.Case, error) {
	c, err := cases.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": id})
		}
		return nil, err
	}
	return c, nil
}

// loadCaseFor returns the case if identity may act on it. Non-owners see NotFound.
func loadCaseFor(ctx context.Context, cases repository.CaseRepository, identity domain.Identity, id string) (*domain.Case, error) {
	c, err := loadCase(ctx, cases, id)
	if err != nil {
		return nil, err
	}
	if !identity.Admin && c.OwnerID != identity.SubjectID {
		return nil, apperrors.NewNotFound("case", map[string]any{"case_id": id})
	}
	return c, nil
}

func uploadKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}

func safeFilename(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
