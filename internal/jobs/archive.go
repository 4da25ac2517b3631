package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DeadLetterArchiver persists the final form of a dead job outside the
// queue store, before the TTL purge can reach it. The worker only needs
// this write side.
type DeadLetterArchiver interface {
	Archive(ctx context.Context, job Job, cause string) error
}

// DeadLetterArchive adds the read and cleanup side used by the admin API:
// presigned downloads of archived documents, and discarding the archived
// copy once a job is requeued and live again.
type DeadLetterArchive interface {
	DeadLetterArchiver
	DownloadURL(ctx context.Context, job Job, expires time.Duration) (string, error)
	Discard(ctx context.Context, job Job) error
}

// ObjectStore is the storage slice the archive needs; the S3 archive
// storage implements it.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

const defaultDownloadExpiry = 15 * time.Minute

type objectArchiver struct {
	store  ObjectStore
	prefix string
}

// NewObjectArchiver archives dead jobs as JSON documents under
// prefix/queue/jobID.json.
func NewObjectArchiver(store ObjectStore, prefix string) DeadLetterArchive {
	if prefix == "" {
		prefix = "dead-letters"
	}
	return &objectArchiver{store: store, prefix: prefix}
}

type deadLetterDoc struct {
	Job        Job       `json:"job"`
	Cause      string    `json:"cause"`
	ArchivedAt time.Time `json:"archivedAt"`
}

func (a *objectArchiver) Archive(ctx context.Context, job Job, cause string) error {
	doc := deadLetterDoc{
		Job:        job,
		Cause:      cause,
		ArchivedAt: time.Now().UTC(),
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dead letter: %w", err)
	}

	if err := a.store.PutObject(ctx, a.key(job), "application/json", body); err != nil {
		return fmt.Errorf("uploading dead letter %s: %w", a.key(job), err)
	}
	return nil
}

// DownloadURL presigns a GET on the job's archived document.
func (a *objectArchiver) DownloadURL(ctx context.Context, job Job, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = defaultDownloadExpiry
	}
	url, err := a.store.GeneratePresignedDownloadURL(ctx, a.key(job), expires)
	if err != nil {
		return "", fmt.Errorf("presigning dead letter %s: %w", a.key(job), err)
	}
	return url, nil
}

// Discard removes the archived copy. Called when a dead job is requeued,
// since the document no longer reflects a terminal state.
func (a *objectArchiver) Discard(ctx context.Context, job Job) error {
	if err := a.store.DeleteObject(ctx, a.key(job)); err != nil {
		return fmt.Errorf("deleting dead letter %s: %w", a.key(job), err)
	}
	return nil
}

func (a *objectArchiver) key(job Job) string {
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, job.Queue, job.ID.Hex())
}
