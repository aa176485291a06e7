package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

const (
	// DefaultMaxWorkers caps the pool of a single batch.
	DefaultMaxWorkers = 5
	// DefaultGracePeriod bounds a whole batch.
	DefaultGracePeriod = 60 * time.Second

	maxFilenameLength  = 100
	lateCleanupTimeout = 10 * time.Second
)

// ObjectStore stores binary payloads under a key and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, payload []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageStore is an ObjectStore that also keeps a thumbnail of each image.
// An empty thumbURL means no thumbnail was stored.
type ImageStore interface {
	ObjectStore
	PutImage(ctx context.Context, key, contentType string, payload []byte) (url, thumbURL string, err error)
}

// IDGenerator produces unique identifiers for stored objects.
type IDGenerator interface {
	NewID() uuid.UUID
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() uuid.UUID

// NewID implements IDGenerator.
func (f IDGeneratorFunc) NewID() uuid.UUID { return f() }

// Observer receives one call per finished upload.
type Observer interface {
	ObserveUpload(kind domain.ContentKind, outcome string, bytes int, elapsed time.Duration)
}

// Upload outcomes reported to the Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

type nopObserver struct{}

func (nopObserver) ObserveUpload(domain.ContentKind, string, int, time.Duration) {}

// Upload is one file to attach.
type Upload struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// Config tunes an Uploader. Zero values take the defaults.
type Config struct {
	MaxWorkers  int
	GracePeriod time.Duration
}

// Uploader attaches uploaded images to content.
type Uploader struct {
	store    ObjectStore
	ids      IDGenerator
	observer Observer
	cfg      Config
	locks    *keyedMutex
	logger   *slog.Logger
}

// NewUploader creates an Uploader. A nil observer disables telemetry and a
// nil ids uses uuid.New.
func NewUploader(
	store ObjectStore,
	ids IDGenerator,
	observer Observer,
	cfg Config,
	logger *slog.Logger,
) (*Uploader, error) {
	if store == nil {
		return nil, domain.NewValidationError("store", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		return nil, domain.NewValidationError("logger", "cannot be nil", domain.ErrValidation)
	}
	if ids == nil {
		ids = IDGeneratorFunc(uuid.New)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	return &Uploader{
		store:    store,
		ids:      ids,
		observer: observer,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		logger:   logger.With(slog.String("component", "attach_uploader")),
	}, nil
}

// uploadState tracks one upload inside a batch.
type uploadState int

const (
	statePending uploadState = iota
	stateDone
	stateFailed
)

// batch holds the per-call results. Guarded by the parent's lock.
type batch struct {
	states   []uploadState
	assets   []*domain.Asset
	failures []AssetFailure
	closed   bool
}

// Attach uploads every item to object storage in parallel and appends the
// successful ones to parent.Assets in input order.
//
// It returns nil when everything was attached, and *AttachError otherwise.
// Assets attached before an error are kept on the parent.
func (u *Uploader) Attach(ctx context.Context, parent *domain.Content, uploads []Upload) error {
	if err := validate(parent, uploads); err != nil {
		return err
	}

	log := logger.FromContextOrDefault(ctx, u.logger).With(
		slog.String("content_id", parent.ID.String()),
		slog.Int("asset_count", len(uploads)))

	workers := min(u.cfg.MaxWorkers, len(uploads))
	batchCtx, cancel := context.WithTimeout(ctx, u.cfg.GracePeriod)
	defer cancel()

	b := &batch{
		states: make([]uploadState, len(uploads)),
		assets: make([]*domain.Asset, len(uploads)),
	}
	lock := u.locks.get(parent.ID)
	defer u.locks.release(parent.ID)

	// Sibling failures must not cancel each other, so the group has no context.
	var g errgroup.Group
	g.SetLimit(workers)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for i := range uploads {
			if batchCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				u.runOne(batchCtx, parent, i, uploads[i], b, lock, log)
				return nil
			})
		}
		_ = g.Wait()
	}()

	var interrupted bool
	select {
	case <-drained:
	case <-batchCtx.Done():
		lock.Lock()
		b.closed = true
		lock.Unlock()
		interrupted = true
		<-drained
	}

	lock.Lock()
	defer lock.Unlock()

	completed := u.appendCompleted(parent, uploads, b)

	attachErr := &AttachError{Failed: b.failures}
	for i, st := range b.states {
		switch st {
		case stateDone:
			attachErr.Completed = append(attachErr.Completed, uploads[i].Filename)
		case statePending:
			attachErr.Pending = append(attachErr.Pending, uploads[i].Filename)
		}
	}
	// The deadline can fire right as the last upload lands. A batch with
	// nothing pending was not cut short.
	if len(attachErr.Pending) == 0 {
		interrupted = false
	}
	if len(b.failures) == 0 && !interrupted {
		log.Info("assets attached")
		return nil
	}
	if interrupted {
		if ctx.Err() != nil {
			attachErr.Cause = ctx.Err()
		} else {
			attachErr.TimedOut = true
		}
	}

	log.Warn("asset batch incomplete",
		slog.Int("completed", completed),
		slog.Int("pending", len(attachErr.Pending)),
		slog.Int("failed", len(attachErr.Failed)),
		slog.Bool("timed_out", attachErr.TimedOut))
	return attachErr
}

// runOne uploads a single item and records the result. Uploads that finish
// after the batch was closed are treated as pending and their objects removed.
func (u *Uploader) runOne(
	ctx context.Context,
	parent *domain.Content,
	index int,
	up Upload,
	b *batch,
	lock *sync.Mutex,
	log *slog.Logger,
) {
	if ctx.Err() != nil {
		return
	}

	id := u.ids.NewID()
	key := StorageKey(parent.Kind, id, up.Filename)
	contentType := up.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(up.Payload)
	}

	start := time.Now()
	url, thumbURL, err := u.put(ctx, key, contentType, up.Payload)
	elapsed := time.Since(start)

	lock.Lock()
	late := b.closed
	switch {
	case late:
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// cancelled in flight: stays pending
	case err != nil:
		b.states[index] = stateFailed
		b.failures = append(b.failures, AssetFailure{Index: index, Filename: up.Filename, Err: err})
	default:
		b.states[index] = stateDone
		b.assets[index] = &domain.Asset{
			ID:           id,
			ContentID:    parent.ID,
			StorageKey:   key,
			URL:          url,
			ThumbnailURL: thumbURL,
			CreatedAt:    time.Now().UTC(),
		}
	}
	lock.Unlock()

	switch {
	case err == nil && late:
		u.observer.ObserveUpload(parent.Kind, OutcomeCanceled, len(up.Payload), elapsed)
		log.Warn("upload finished after batch deadline, removing object", slog.String("key", key))
		u.removeLate(key, log)
	case err != nil && ctx.Err() != nil:
		u.observer.ObserveUpload(parent.Kind, OutcomeCanceled, len(up.Payload), elapsed)
	case err != nil:
		u.observer.ObserveUpload(parent.Kind, OutcomeFailure, len(up.Payload), elapsed)
		log.Error("asset upload failed",
			slog.String("filename", up.Filename),
			slog.String("key", key),
			slog.String("error", err.Error()))
	default:
		u.observer.ObserveUpload(parent.Kind, OutcomeSuccess, len(up.Payload), elapsed)
		log.Debug("asset uploaded", slog.String("key", key), slog.Duration("elapsed", elapsed))
	}
}

func (u *Uploader) put(ctx context.Context, key, contentType string, payload []byte) (string, string, error) {
	if images, ok := u.store.(ImageStore); ok {
		return images.PutImage(ctx, key, contentType, payload)
	}
	url, err := u.store.Put(ctx, key, contentType, payload)
	return url, "", err
}

// appendCompleted appends successful uploads in input order. Caller holds the
// parent lock.
func (u *Uploader) appendCompleted(parent *domain.Content, uploads []Upload, b *batch) int {
	type indexed struct {
		index int
		asset *domain.Asset
	}
	done := make([]indexed, 0, len(uploads))
	for i, a := range b.assets {
		if a != nil && b.states[i] == stateDone {
			done = append(done, indexed{index: i, asset: a})
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].index < done[j].index })

	base := len(parent.Assets)
	for i, d := range done {
		d.asset.Position = base + i
		parent.Assets = append(parent.Assets, d.asset)
	}
	return len(done)
}

func (u *Uploader) removeLate(key string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), lateCleanupTimeout)
	defer cancel()
	if err := u.store.Delete(ctx, key); err != nil {
		log.Error("failed to remove late upload", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// StorageKey derives the object key "<kind>/<id>_<filename>".
func StorageKey(kind domain.ContentKind, id uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s_%s", kind, id, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == "/" {
		out = "file"
	}
	if len(out) > maxFilenameLength {
		out = out[len(out)-maxFilenameLength:]
	}
	return out
}

func validate(parent *domain.Content, uploads []Upload) error {
	if parent == nil {
		return fmt.Errorf("%w: parent cannot be nil", ErrInvalidUpload)
	}
	if parent.ID == uuid.Nil || !parent.Kind.Valid() {
		return fmt.Errorf("%w: parent must have an id and a kind", ErrInvalidUpload)
	}
	return ValidateUploads(uploads)
}

// ValidateUploads checks a batch before any work starts. Every upload needs
// a filename and a non-empty payload.
func ValidateUploads(uploads []Upload) error {
	if len(uploads) == 0 {
		return fmt.Errorf("%w: no assets given", ErrInvalidUpload)
	}
	for i, up := range uploads {
		if strings.TrimSpace(up.Filename) == "" {
			return fmt.Errorf("%w: asset %d has no filename", ErrInvalidUpload, i)
		}
		if len(up.Payload) == 0 {
			return fmt.Errorf("%w: asset %q is empty", ErrInvalidUpload, up.Filename)
		}
	}
	return nil
}
