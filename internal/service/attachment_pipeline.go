package service

import (
	"context"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/storage"
	"github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

var tracer = otel.Tracer("github.com/spec-kit/ticket-tracker/internal/service")

// FileUpload is one file received with an update.
type FileUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// AttachmentOutcome reports what happened to one uploaded file. Err is nil
// when the file was stored and its attachment record written.
type AttachmentOutcome struct {
	FileName   string
	Attachment *domain.Attachment
	URL        string
	Err        error
}

// OK reports whether the file was stored.
func (o AttachmentOutcome) OK() bool { return o.Err == nil }

// PhotoWriter records the flattened photo view. Writes are advisory; the
// attachment record is the source of truth.
type PhotoWriter interface {
	Create(ctx context.Context, photo *domain.Photo) error
}

// AttachmentPipeline stores uploaded files and links them to a log entry.
type AttachmentPipeline struct {
	blobs       storage.BlobStore
	attachments repository.AttachmentRepository
	photos      PhotoWriter
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewAttachmentPipeline wires the pipeline. photos may be nil.
func NewAttachmentPipeline(blobs storage.BlobStore, attachments repository.AttachmentRepository, photos PhotoWriter, metrics *observability.Metrics, logger *zap.Logger) *AttachmentPipeline {
	return &AttachmentPipeline{
		blobs:       blobs,
		attachments: attachments,
		photos:      photos,
		metrics:     metrics,
		logger:      logger,
	}
}

// StorageKey builds <ticket>/<log>/<random token><extension> with a fresh
// random token on every call.
func StorageKey(ticketID, logID, fileName string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ticketID + "/" + logID + "/" + token + fileExtension(fileName)
}

func fileExtension(fileName string) string {
	base := fileName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return path.Ext(base)
}

// Process handles every file independently and returns one outcome per file
// in input order. A failing file never stops the ones after it.
func (p *AttachmentPipeline) Process(ctx context.Context, ticketID, logID, uploaderID string, files []FileUpload) []AttachmentOutcome {
	outcomes := make([]AttachmentOutcome, 0, len(files))
	for _, file := range files {
		outcome := p.processOne(ctx, ticketID, logID, uploaderID, file)
		p.metrics.RecordAttachment(outcome.OK())
		if !outcome.OK() {
			p.logger.Warn("attachment failed",
				zap.String("ticket_id", ticketID),
				zap.String("log_id", logID),
				zap.String("file_name", file.FileName),
				zap.Error(outcome.Err))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *AttachmentPipeline) processOne(ctx context.Context, ticketID, logID, uploaderID string, file FileUpload) AttachmentOutcome {
	ctx, span := tracer.Start(ctx, "attachment.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("log.id", logID),
		attribute.Int("file.size", len(file.Data)),
	)

	outcome := AttachmentOutcome{FileName: file.FileName}
	fail := func(err error) AttachmentOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attachment failed")
		outcome.Err = errorutil.NewAttachmentError(file.FileName, err)
		return outcome
	}

	contentType := resolveContentType(file)
	key := StorageKey(ticketID, logID, file.FileName)
	if err := p.blobs.Upload(ctx, key, file.Data, contentType); err != nil {
		return fail(err)
	}

	attachment := &domain.Attachment{
		TicketID:    ticketID,
		LogID:       logID,
		UploadedBy:  uploaderID,
		StoragePath: key,
		FileName:    file.FileName,
		MimeType:    contentType,
		SizeBytes:   int64(len(file.Data)),
	}
	if err := p.attachments.Create(ctx, attachment); err != nil {
		return fail(err)
	}
	outcome.Attachment = attachment

	url, err := p.blobs.PublicURL(ctx, key)
	if err != nil {
		p.logger.Warn("resolve attachment url", zap.String("storage_path", key), zap.Error(err))
		return outcome
	}
	outcome.URL = url
	p.writePhoto(ctx, ticketID, key, url)
	return outcome
}

// writePhoto swallows every failure.
func (p *AttachmentPipeline) writePhoto(ctx context.Context, ticketID, key, url string) {
	if p.photos == nil {
		return
	}
	photo := &domain.Photo{TicketID: ticketID, URL: url, StoragePath: key}
	if err := p.photos.Create(ctx, photo); err != nil {
		p.logger.Warn("photo projection write failed",
			zap.String("ticket_id", ticketID),
			zap.String("storage_path", key),
			zap.Error(err))
	}
}

func resolveContentType(file FileUpload) string {
	if ct := strings.TrimSpace(file.ContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(fileExtension(file.FileName)); ct != "" {
		return ct
	}
	return http.DetectContentType(file.Data)
}
