package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"

	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/storage"
)

// ============================================
// Attachment Service
// ============================================

type AttachmentService interface {
	Upload(ctx context.Context, taskID, userID string, file *multipart.FileHeader) (*repository.Attachment, error)
	ListByTask(ctx context.Context, taskID, userID string) ([]*repository.Attachment, error)
	Download(ctx context.Context, attachmentID, userID string) (*repository.Attachment, io.ReadSeekCloser, error)
	Delete(ctx context.Context, attachmentID, userID string) error
}

type attachmentService struct {
	attachmentRepo repository.AttachmentRepository
	taskRepo       repository.TaskRepository
	teamRepo       repository.TeamRepository
	store          storage.Store
}

func NewAttachmentService(
	attachmentRepo repository.AttachmentRepository,
	taskRepo repository.TaskRepository,
	teamRepo repository.TeamRepository,
	store storage.Store,
) AttachmentService {
	return &attachmentService{
		attachmentRepo: attachmentRepo,
		taskRepo:       taskRepo,
		teamRepo:       teamRepo,
		store:          store,
	}
}

func (s *attachmentService) Upload(ctx context.Context, taskID, userID string, file *multipart.FileHeader) (*repository.Attachment, error) {
	if err := s.requireTaskAccess(ctx, taskID, userID); err != nil {
		return nil, err
	}

	filename, path, err := s.store.Save(file)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	attachment := &repository.Attachment{
		Filename:     filename,
		OriginalName: file.Filename,
		MimeType:     file.Header.Get("Content-Type"),
		Size:         file.Size,
		Path:         path,
		TaskID:       &taskID,
		UploadedBy:   userID,
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		// Don't leave an orphaned file behind
		if rmErr := s.store.Remove(path); rmErr != nil {
			log.Printf("[Attachment] Failed to remove orphaned file %s: %v", path, rmErr)
		}
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}
	return attachment, nil
}

func (s *attachmentService) ListByTask(ctx context.Context, taskID, userID string) ([]*repository.Attachment, error) {
	if err := s.requireTaskAccess(ctx, taskID, userID); err != nil {
		return nil, err
	}
	return s.attachmentRepo.FindByTask(ctx, taskID)
}

func (s *attachmentService) Download(ctx context.Context, attachmentID, userID string) (*repository.Attachment, io.ReadSeekCloser, error) {
	attachment, err := s.attachmentRepo.FindByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if attachment == nil {
		return nil, nil, ErrNotFound
	}
	if attachment.TaskID != nil {
		if err := s.requireTaskAccess(ctx, *attachment.TaskID, userID); err != nil {
			return nil, nil, err
		}
	} else if attachment.UploadedBy != userID {
		return nil, nil, ErrForbidden
	}

	f, err := s.store.Open(attachment.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return attachment, f, nil
}

// Delete is reserved for the uploader
func (s *attachmentService) Delete(ctx context.Context, attachmentID, userID string) error {
	attachment, err := s.attachmentRepo.FindByID(ctx, attachmentID)
	if err != nil {
		return err
	}
	if attachment == nil {
		return ErrNotFound
	}
	if attachment.UploadedBy != userID {
		return ErrForbidden
	}

	if err := s.attachmentRepo.Delete(ctx, attachmentID); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if err := s.store.Remove(attachment.Path); err != nil {
		log.Printf("[Attachment] Failed to remove file %s: %v", attachment.Path, err)
	}
	return nil
}

func (s *attachmentService) requireTaskAccess(ctx context.Context, taskID, userID string) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	if task.CreatorID == userID || (task.AssigneeID != nil && *task.AssigneeID == userID) {
		return nil
	}
	if task.TeamID != nil {
		member, err := s.teamRepo.FindMember(ctx, *task.TeamID, userID)
		if err != nil {
			return err
		}
		if member != nil {
			return nil
		}
	}
	return ErrForbidden
}
