// Package service contains the upload session registry and the background
// services around it
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firstbit/storage-api/model"
	"firstbit/storage-api/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidRequest   = errors.New("missing required fields")
	ErrSessionExpired   = errors.New("session expired")
	ErrNotOwner         = errors.New("caller does not own this upload")
	ErrUploadInitFailed = errors.New("failed to initialize upload")
	ErrAlreadyFinished  = errors.New("upload already completed or aborted")

	// ErrReconcile means the store committed the object but the file record
	// could not be written. The object is durable and addressable, so this
	// must never be swallowed as a generic failure.
	ErrReconcile = errors.New("object stored but file record not created")
)

// ObjectStore is the slice of the storage client the registry needs.
type ObjectStore interface {
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	UniqueKey(ctx context.Context, baseKey string) (string, error)
}

// Registry is the server-side bookkeeping for in-flight multipart uploads.
// Every lifecycle call is authorized against the owner that initiated the
// session, and state transitions are guarded so duplicate complete/abort
// calls get rejected instead of re-executed.
type Registry struct {
	DB    *gorm.DB
	Store ObjectStore
}

func NewRegistry(db *gorm.DB, store ObjectStore) *Registry {
	return &Registry{DB: db, Store: store}
}

// Init derives a collision-free object key for the file, opens a multipart
// upload on the store and persists the session. The total size is fixed here
// for the session's whole life; Complete checks against it.
func (r *Registry) Init(ctx context.Context, ownerID, name, contentType string, totalSize model.ByteSize) (uploadID, key string, err error) {
	if ownerID == "" || name == "" || contentType == "" || totalSize <= 0 {
		return "", "", ErrInvalidRequest
	}

	baseKey := "uploads/" + ownerID + "/" + name

	key, err = r.Store.UniqueKey(ctx, baseKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUploadInitFailed, err)
	}

	uploadID, err = r.Store.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUploadInitFailed, err)
	}

	err = r.DB.WithContext(ctx).Create(&model.UploadSession{
		UploadID:     uploadID,
		UserID:       ownerID,
		Key:          key,
		OriginalName: name,
		ContentType:  contentType,
		TotalSize:    totalSize,
		Parts:        model.PartSlice{},
		Status:       model.SessionInit,
	}).Error
	if err != nil {
		// The store-side upload is now an orphan. Cut it loose instead of
		// leaving it to the sweeper
		if abortErr := r.Store.AbortMultipartUpload(ctx, key, uploadID); abortErr != nil {
			zap.L().Error("Failed to abort upload after session insert failure",
				zap.String("key", key),
				zap.String("uploadID", uploadID),
				zap.Error(abortErr))
		}

		return "", "", fmt.Errorf("%w: %s", ErrUploadInitFailed, err)
	}

	return uploadID, key, nil
}

// SavePart records a finished part in the session's inventory. Saving the
// same part number again overwrites the previous entry, which is exactly
// what a retried part upload needs.
func (r *Registry) SavePart(ctx context.Context, ownerID, uploadID string, partNumber int32, size int64, etag string) error {
	if uploadID == "" || partNumber < 1 || etag == "" {
		return ErrInvalidRequest
	}

	sess, err := r.lookup(ctx, ownerID, uploadID)
	if err != nil {
		return err
	}

	if sess.Terminal() {
		return ErrAlreadyFinished
	}

	entry := model.Part{
		PartNumber: partNumber,
		Size:       size,
		ETag:       storage.NormalizeETag(etag),
		Uploaded:   true,
	}

	replaced := false
	for i := range sess.Parts {
		if sess.Parts[i].PartNumber == partNumber {
			sess.Parts[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		sess.Parts = append(sess.Parts, entry)
	}

	// Guarded like transition: the session may have completed or aborted
	// between the lookup above and this write, and a part retry landing
	// late must not knock a finished session back to UPLOADING
	res := r.DB.WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("upload_id = ? AND status IN ?", uploadID,
			[]string{model.SessionInit, model.SessionUploading}).
		Updates(map[string]any{
			"parts":  sess.Parts,
			"status": model.SessionUploading,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrAlreadyFinished
	}

	return nil
}

type CompleteRequest struct {
	UploadID     string
	Key          string
	OriginalName string
	ContentType  string
	TotalSize    model.ByteSize
	Parts        []storage.CompletedPart
}

// Complete finalizes the store-side upload and atomically creates the file
// record together with its history entry. A second Complete for the same
// session fails with ErrAlreadyFinished no matter how the calls interleave,
// because only one caller wins the UPLOADING -> COMPLETING transition.
func (r *Registry) Complete(ctx context.Context, ownerID string, req CompleteRequest) (*model.File, error) {
	if req.UploadID == "" || req.Key == "" || req.OriginalName == "" ||
		req.ContentType == "" || req.TotalSize <= 0 || len(req.Parts) == 0 {
		return nil, ErrInvalidRequest
	}

	// The owner row can vanish mid-upload (admin deleted the account). That
	// is a re-authenticate situation, not a retry situation
	var owner model.User
	if err := r.DB.WithContext(ctx).First(&owner, "id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	sess, err := r.lookup(ctx, ownerID, req.UploadID)
	if err != nil {
		return nil, err
	}
	if sess.Key != req.Key || sess.TotalSize != req.TotalSize {
		return nil, ErrInvalidRequest
	}

	if err := r.transition(ctx, ownerID, req.UploadID, model.SessionCompleting); err != nil {
		return nil, err
	}

	if _, err := r.Store.CompleteMultipartUpload(ctx, req.Key, req.UploadID, req.Parts); err != nil {
		// The session is still usable, the client may retry the completion
		r.settle(ctx, req.UploadID, model.SessionCompleting, model.SessionUploading)
		return nil, fmt.Errorf("failed to complete multipart upload, %w", err)
	}

	file := &model.File{
		ID:     uuid.NewString(),
		UserID: ownerID,
		Name:   req.OriginalName,
		Size:   req.TotalSize,
		Type:   req.ContentType,
		Path:   req.Key,
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}

		return tx.Create(&model.UploadHistory{
			FileID: &file.ID,
			UserID: ownerID,
			Size:   req.TotalSize,
			Status: model.UploadStatusSuccess,
		}).Error
	})
	if err != nil {
		// The object is already committed on the store. Record the failed
		// attempt and surface enough to reconcile by hand
		zap.L().Error("Object committed but file record failed",
			zap.String("key", req.Key),
			zap.String("uploadID", req.UploadID),
			zap.String("userID", ownerID),
			zap.Error(err))

		if histErr := r.DB.WithContext(ctx).Create(&model.UploadHistory{
			UserID: ownerID,
			Size:   req.TotalSize,
			Status: model.UploadStatusError,
		}).Error; histErr != nil {
			zap.L().Error("Failed to record upload failure", zap.Error(histErr))
		}

		return nil, fmt.Errorf("%w (key=%s uploadId=%s)", ErrReconcile, req.Key, req.UploadID)
	}

	r.settle(ctx, req.UploadID, model.SessionCompleting, model.SessionCompleted)

	return file, nil
}

// Abort tears the session down. The store-side abort is best effort: failing
// the user's cancel over advisory cleanup would be worse than a rare
// orphaned store session.
func (r *Registry) Abort(ctx context.Context, ownerID, uploadID, key string) error {
	if uploadID == "" || key == "" {
		return ErrInvalidRequest
	}

	err := r.transition(ctx, ownerID, uploadID, model.SessionAborting)
	if err != nil {
		if errors.Is(err, ErrAlreadyFinished) {
			sess, lookupErr := r.lookup(ctx, ownerID, uploadID)
			if lookupErr == nil && (sess.Status == model.SessionAborted || sess.Status == model.SessionAborting) {
				// Duplicate cancel, nothing left to do
				return nil
			}
		}
		return err
	}

	if err := r.Store.AbortMultipartUpload(ctx, key, uploadID); err != nil {
		zap.L().Error("Failed to abort store-side upload",
			zap.String("key", key),
			zap.String("uploadID", uploadID),
			zap.Error(err))
	}

	r.settle(ctx, uploadID, model.SessionAborting, model.SessionAborted)

	return nil
}

// SweepStale aborts sessions that never saw a complete or abort within ttl.
// COMPLETING and ABORTING rows old enough to sweep were stranded by a crash
// mid-transition (or by a completion that failed after the store commit);
// those get the same best-effort store abort and land in ABORTED, any
// committed object stays reachable through its history row.
func (r *Registry) SweepStale(ctx context.Context, ttl time.Duration) {
	var stale []model.UploadSession

	err := r.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{model.SessionInit, model.SessionUploading, model.SessionCompleting, model.SessionAborting},
			time.Now().Add(-ttl)).
		Find(&stale).Error
	if err != nil {
		zap.L().Error("Failed to query stale upload sessions", zap.Error(err))
		return
	}

	for _, sess := range stale {
		switch sess.Status {
		case model.SessionCompleting, model.SessionAborting:
			// Abort can't claim these through the CAS, finish them directly.
			// Aborting a store upload that already completed just fails and
			// is ignored
			if err := r.Store.AbortMultipartUpload(ctx, sess.Key, sess.UploadID); err != nil {
				zap.L().Error("Failed to abort store-side upload",
					zap.String("key", sess.Key),
					zap.String("uploadID", sess.UploadID),
					zap.Error(err))
			}

			r.settle(ctx, sess.UploadID, sess.Status, model.SessionAborted)
		default:
			if err := r.Abort(ctx, sess.UserID, sess.UploadID, sess.Key); err != nil {
				zap.L().Error("Failed to sweep stale session",
					zap.String("uploadID", sess.UploadID),
					zap.Error(err))
				continue
			}
		}

		zap.L().Info("Swept stale upload session",
			zap.String("uploadID", sess.UploadID),
			zap.String("key", sess.Key),
			zap.Time("lastActivity", sess.UpdatedAt))
	}
}

// Session returns the caller's session. Handlers use it to authorize a part
// upload before any bytes are pushed to the store.
func (r *Registry) Session(ctx context.Context, ownerID, uploadID string) (*model.UploadSession, error) {
	return r.lookup(ctx, ownerID, uploadID)
}

func (r *Registry) lookup(ctx context.Context, ownerID, uploadID string) (*model.UploadSession, error) {
	var sess model.UploadSession

	err := r.DB.WithContext(ctx).First(&sess, "upload_id = ?", uploadID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if sess.UserID != ownerID {
		return nil, ErrNotOwner
	}

	return &sess, nil
}

// transition is the compare-and-set guard on the session state machine. Only
// a session still in INIT or UPLOADING and owned by ownerID moves; everyone
// else finds out why they lost.
func (r *Registry) transition(ctx context.Context, ownerID, uploadID, to string) error {
	res := r.DB.WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("upload_id = ? AND user_id = ? AND status IN ?",
			uploadID, ownerID,
			[]string{model.SessionInit, model.SessionUploading}).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		if _, err := r.lookup(ctx, ownerID, uploadID); err != nil {
			return err
		}
		return ErrAlreadyFinished
	}

	return nil
}

// settle moves a session out of a transitional state, forward to its final
// state or back to UPLOADING when a store call failed. Best effort: a miss
// here leaves a transitional row for the sweeper.
func (r *Registry) settle(ctx context.Context, uploadID, from, to string) {
	err := r.DB.WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("upload_id = ? AND status = ?", uploadID, from).
		Update("status", to).Error
	if err != nil {
		zap.L().Error("Failed to move session state",
			zap.String("uploadID", uploadID),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
	}
}
