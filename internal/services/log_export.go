// log_export.go archives a company's email log to object storage as JSON Lines.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/storage"
	"github.com/mailnow/mailnow-admin/internal/telemetry"
)

const exportTimeFormat = "20060102T150405.000Z"

var errExportTooLarge = errors.New("export row limit exceeded")

// LogExportOptions configures a LogExporter.
type LogExportOptions struct {
	// Backend names the storage backend in metrics and results.
	Backend string
	URLTTL  time.Duration
	MaxRows int
	// Recipients, when non-empty, receive an OpenPGP-encrypted archive.
	Recipients openpgp.EntityList
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"sha256"`
	Encrypted bool      `json:"encrypted"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LogExporter writes filtered email logs to storage and hands out a download URL.
type LogExporter struct {
	logs  EmailLogStore
	store storage.Storage
	opts  LogExportOptions
	now   Clock
}

// NewLogExporter creates a LogExporter.
func NewLogExporter(logs EmailLogStore, store storage.Storage, opts LogExportOptions) *LogExporter {
	if opts.URLTTL <= 0 {
		opts.URLTTL = time.Hour
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 100000
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}
	return &LogExporter{logs: logs, store: store, opts: opts, now: systemClock}
}

// Export streams the company's logs matching f, oldest first, into
// exports/<company_id>/<timestamp>.jsonl and returns a URL valid for URLTTL. Limit and
// Offset in f are ignored; more than MaxRows matching rows is a validation error.
func (e *LogExporter) Export(ctx context.Context, companyID int64, f repositories.EmailLogFilter) (*ExportResult, error) {
	if err := validateWindow(f); err != nil {
		return nil, err
	}
	f.Limit, f.Offset = 0, 0

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	rows := 0
	err := e.logs.Each(ctx, companyID, f, func(l *models.EmailLog) error {
		rows++
		if rows > e.opts.MaxRows {
			return errExportTooLarge
		}
		return enc.Encode(l)
	})
	if errors.Is(err, errExportTooLarge) {
		e.count("too_large")
		return nil, apperr.Invalid("end_date", "export matches more than %d rows, narrow the date range", e.opts.MaxRows)
	}
	if err != nil {
		e.count("error")
		return nil, fmt.Errorf("failed to read email logs: %w", err)
	}

	now := e.now()
	objectPath := path.Join("exports", fmt.Sprint(companyID), now.Format(exportTimeFormat)+".jsonl")
	body := io.Reader(&buf)
	encrypted := len(e.opts.Recipients) > 0
	if encrypted {
		sealed, err := encryptExport(buf.Bytes(), e.opts.Recipients, path.Base(objectPath))
		if err != nil {
			e.count("error")
			return nil, err
		}
		objectPath += ".pgp"
		body = sealed
	}

	up, err := e.store.Upload(ctx, objectPath, body, -1)
	if err != nil {
		e.count("error")
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	url, err := e.store.GetURL(ctx, objectPath, e.opts.URLTTL)
	if err != nil {
		e.count("error")
		return nil, fmt.Errorf("failed to create export URL: %w", err)
	}

	e.count("ok")
	slog.Info("email log export stored",
		"company_id", companyID, "path", objectPath, "rows", rows,
		"bytes", up.Size, "encrypted", encrypted, "backend", e.opts.Backend)

	return &ExportResult{
		Path:      objectPath,
		URL:       url,
		Rows:      rows,
		Size:      up.Size,
		Checksum:  up.Checksum,
		Encrypted: encrypted,
		ExpiresAt: now.Add(e.opts.URLTTL),
	}, nil
}

func (e *LogExporter) count(result string) {
	telemetry.LogExportsTotal.WithLabelValues(e.opts.Backend, result).Inc()
}

// encryptExport seals data as a binary OpenPGP message for recipients.
func encryptExport(data []byte, recipients openpgp.EntityList, fileName string) (*bytes.Buffer, error) {
	var out bytes.Buffer
	w, err := openpgp.Encrypt(&out, recipients, nil, &openpgp.FileHints{IsBinary: true, FileName: fileName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start export encryption: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to encrypt export: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish export encryption: %w", err)
	}
	return &out, nil
}
