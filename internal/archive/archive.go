// Package archive writes terminal scheduled_emails/email_logs rows to S3.
// SPEC_FULL.md §9 (carrying spec.md's "Retention is not part of the core
// contract; implementations may archive terminal rows externally") treats
// this as an optional side effect, not a queue-contract requirement — a
// nil *Archiver disables it entirely.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Archiver writes one JSON object per terminal row to a configured S3
// bucket, keyed by owner/date/id so a lifecycle rule can expire them
// independently of the live scheduled_emails table.
type Archiver struct {
	s3     *s3.S3
	bucket string
	logger logger.Logger
}

// NewArchiver builds an Archiver over sess, or returns nil if bucket is
// empty (archival disabled).
func NewArchiver(sess *session.Session, bucket string, log logger.Logger) *Archiver {
	if bucket == "" {
		return nil
	}
	return &Archiver{s3: s3.New(sess), bucket: bucket, logger: log}
}

// record is the archived shape: the terminal scheduled_emails row plus
// its associated email_logs row, when one exists.
type record struct {
	ScheduledEmail *domain.ScheduledEmail `json:"scheduled_email"`
	EmailLog       *domain.EmailLog       `json:"email_log,omitempty"`
	ArchivedAt     time.Time              `json:"archived_at"`
}

// ArchiveTerminalRow uploads one terminal row (and its email log, if any)
// as a single JSON object. Failures are logged and swallowed by the
// caller (sender/reactor) rather than surfaced as pipeline errors —
// archival is a best-effort side channel, not part of the send contract.
func (a *Archiver) ArchiveTerminalRow(ctx context.Context, row *domain.ScheduledEmail, log *domain.EmailLog) error {
	if a == nil {
		return nil
	}
	body, err := json.Marshal(record{ScheduledEmail: row, EmailLog: log, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("archive: marshaling row %s: %w", row.ID, err)
	}

	key := fmt.Sprintf("scheduled_emails/%s/%s/%s.json", row.OwnerID, row.ScheduledFor.Format("2006-01-02"), row.ID)
	_, err = a.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: uploading row %s: %w", row.ID, err)
	}
	return nil
}
