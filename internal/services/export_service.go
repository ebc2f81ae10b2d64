package services

import (
	"bytes"
	"context"
	"errors"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/prepdeck/internal/export"
	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/storage"
	"github.com/yoockh/prepdeck/internal/utils"
)

type ExportOptions struct {
	export.Options
	// Persist also uploads the file to the export bucket.
	Persist bool
}

type ExportResult struct {
	*export.Result
	StoredPath string `json:"stored_path,omitempty"`
	// Truncated is set when more sessions matched than one export may carry.
	Truncated bool `json:"truncated,omitempty"`
}

type ExportService interface {
	ExportUserData(ctx context.Context, userID string, opts ExportOptions) (*ExportResult, error)
}

type exportService struct {
	d           Deps
	uploader    storage.Uploader
	maxSessions int
}

// NewExportService builds the exporter. uploader may be nil when no export
// bucket is configured; Persist then fails with Unavailable.
func NewExportService(d Deps, uploader storage.Uploader, maxSessions int) ExportService {
	if maxSessions <= 0 {
		maxSessions = 5000
	}
	return &exportService{d: d.withDefaults(), uploader: uploader, maxSessions: maxSessions}
}

func (s *exportService) ExportUserData(ctx context.Context, userID string, opts ExportOptions) (*ExportResult, error) {
	const op = "ExportService.ExportUserData"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if !opts.Format.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "format must be json or csv", nil)
	}
	if opts.From != nil && opts.To != nil && opts.From.After(*opts.To) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "date range start is after its end", nil)
	}
	if opts.Persist && s.uploader == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "export storage is not configured", nil)
	}

	log := s.d.Logger.WithFields(logrus.Fields{"op": op, "user_id": userID, "format": opts.Format})

	sessions, total, err := loadAll(ctx, s.d, userID, models.SessionFilter{From: opts.From, To: opts.To}, s.maxSessions)
	if err != nil {
		s.d.Metrics.Export(string(opts.Format), "error")
		return nil, utils.E(utils.CodeInternal, op, "failed to load sessions", err)
	}

	res, err := export.Render(userID, sessions, opts.Options, s.d.Now())
	if errors.Is(err, export.ErrEmpty) {
		s.d.Metrics.Export(string(opts.Format), "empty")
		return nil, utils.E(utils.CodeEmptyExport, op, "no sessions match the export", err)
	}
	if err != nil {
		s.d.Metrics.Export(string(opts.Format), "error")
		return nil, utils.E(utils.CodeInternal, op, "failed to render export", err)
	}

	out := &ExportResult{Result: res, Truncated: total > int64(len(sessions))}
	if out.Truncated {
		log.WithFields(logrus.Fields{"total": total, "read": len(sessions)}).Warn("export truncated")
	}
	if opts.Persist {
		object := path.Join("exports", userID, res.Filename)
		stored, err := s.uploader.Upload(ctx, object, res.MimeType, bytes.NewReader(res.Data))
		if err != nil {
			s.d.Metrics.Export(string(opts.Format), "error")
			return nil, utils.E(utils.CodeUnavailable, op, "failed to store export", err)
		}
		out.StoredPath = stored
	}

	s.d.Metrics.Export(string(opts.Format), "ok")
	log.WithFields(logrus.Fields{"sessions": res.Count, "bytes": len(res.Data), "persisted": opts.Persist, "truncated": out.Truncated}).Info("export generated")
	return out, nil
}
