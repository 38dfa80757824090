package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

type AvatarService struct {
	Repo      *repository.AvatarRepository
	StageRepo *repository.AssessmentStageRepository
	Storage   *StorageService
	Passwords *SessionPasswordService
	Limiter   *VerifyLimiter
	Notifier  *NotificationService
	Settings  *AssessmentSettings
	Progress  *ProgressTracker
	TempDir   string
	probe     func(path string) (*util.MediaInfo, error)
	now       func() time.Time
}

func NewAvatarService(repo *repository.AvatarRepository, stageRepo *repository.AssessmentStageRepository,
	storage *StorageService, passwords *SessionPasswordService, limiter *VerifyLimiter,
	notifier *NotificationService, settings *AssessmentSettings, progress *ProgressTracker, tempDir string) *AvatarService {
	return &AvatarService{
		Repo:      repo,
		StageRepo: stageRepo,
		Storage:   storage,
		Passwords: passwords,
		Limiter:   limiter,
		Notifier:  notifier,
		Settings:  settings,
		Progress:  progress,
		TempDir:   tempDir,
		probe:     util.ProbeMedia,
		now:       time.Now,
	}
}

type AvatarInviteRequest struct {
	CandidateEmail string `json:"candidateEmail" binding:"omitempty,email"`
	CandidateName  string `json:"candidateName"`
}

type AvatarInviteResult struct {
	StageID         string    `json:"stageId"`
	Link            string    `json:"link"`
	SessionPassword string    `json:"sessionPassword"`
	InvitedAt       time.Time `json:"invitedAt"`
	QRCode          string    `json:"qrCode,omitempty"`
}

// Invite 每次邀请都重新生成口令，旧口令随即失效
func (s *AvatarService) Invite(ctx context.Context, claims *util.Claims, stageID string, req AvatarInviteRequest) (*AvatarInviteResult, error) {
	stage, avatar, err := s.loadForRecruiter(ctx, claims, stageID)
	if err != nil {
		return nil, err
	}
	if stage.Status.Terminal() {
		return nil, util.NewConflictError("Assessment stage is already " + string(stage.Status)).With("status", stage.Status)
	}

	secret, digest, err := s.Passwords.GenerateAndHash()
	if err != nil {
		return nil, util.NewInternalError("generate session password", err)
	}
	now := s.now()
	if err := s.Repo.SetSessionPassword(ctx, avatar.ID, digest, &now); err != nil {
		return nil, util.NewInternalError("save session password", err)
	}

	result := &AvatarInviteResult{
		StageID:         stage.ID,
		Link:            strings.TrimRight(s.Settings.Get().CandidateBaseURL, "/") + "/avatar/" + stage.ID,
		SessionPassword: secret,
		InvitedAt:       now,
	}
	if png, err := qrcode.Encode(result.Link, qrcode.Medium, 256); err == nil {
		result.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}

	email, name := req.CandidateEmail, req.CandidateName
	if stage.Resume != nil {
		if email == "" {
			email = stage.Resume.CandidateEmail
		}
		if name == "" {
			name = stage.Resume.CandidateName
		}
	}
	s.Notifier.Notify(ctx, Notification{
		Email:   email,
		Name:    name,
		Subject: "Your video interview invitation",
		Body: fmt.Sprintf("Hello %s,\n\nPlease complete your video interview.\n\nLink: %s\nSession password: %s\nTime limit: %d minutes\n",
			name, result.Link, secret, avatar.TimeLimit),
		Alert: fmt.Sprintf("Video interview invite sent to %s (stage %s)", name, stage.ID),
	})

	logger.Log.Info("avatar invite sent", zap.String("stageId", stage.ID), zap.Uint("by", claims.UserID))
	return result, nil
}

// VerifyPassword 未设置口令的阶段直接通过
func (s *AvatarService) VerifyPassword(ctx context.Context, stageID, secret, client string) error {
	_, err := s.loadForCandidate(ctx, stageID, secret, client)
	return err
}

// loadForCandidate 校验会话口令，错误次数按 (阶段, 客户端) 限制
func (s *AvatarService) loadForCandidate(ctx context.Context, stageID, secret, client string) (*model.AvatarAssessment, error) {
	if err := s.Limiter.Allow(ctx, "avatar", stageID, client); err != nil {
		return nil, err
	}
	avatar, err := s.Repo.FindByStageID(ctx, stageID)
	if err != nil {
		return nil, lookupError(err, "Avatar assessment")
	}
	if !s.Passwords.Check(CredentialFrom(avatar.SessionPasswordHash, avatar.SessionPassword), secret) {
		s.Limiter.RecordFailure(ctx, "avatar", stageID, client)
		return nil, util.NewUnauthorizedError("Invalid session password").With("verified", false)
	}
	s.Limiter.Reset(ctx, "avatar", stageID, client)
	return avatar, nil
}

type RecordingUpload struct {
	StageID       string
	Secret        string
	Client        string
	UploadID      string
	QuestionIndex int
	File          *multipart.FileHeader
}

// UploadRecording 保存录音：校验口令和文件 → 落临时文件并记录进度 → 探测时长 → 上传对象存储 → 写记录
func (s *AvatarService) UploadRecording(ctx context.Context, in RecordingUpload) (*model.AvatarRecording, error) {
	avatar, err := s.loadForCandidate(ctx, in.StageID, in.Secret, in.Client)
	if err != nil {
		return nil, err
	}
	stage, err := s.StageRepo.FindByID(ctx, in.StageID)
	if err != nil {
		return nil, lookupError(err, "Assessment stage")
	}
	if stage.Status.Terminal() {
		return nil, util.NewConflictError("Assessment stage is already " + string(stage.Status)).With("status", stage.Status)
	}

	if in.File == nil {
		return nil, util.NewValidationError("file is required")
	}
	maxBytes := s.Settings.Get().MaxRecordingSizeMB * 1024 * 1024
	if in.File.Size > maxBytes {
		return nil, util.NewValidationError(fmt.Sprintf("recording exceeds %d MB", s.Settings.Get().MaxRecordingSizeMB))
	}
	if !util.HasAllowedExtension(in.File.Filename, util.AllowedRecordingExtensions) {
		return nil, util.NewValidationError("unsupported recording format")
	}

	uploadID := in.UploadID
	if uploadID == "" {
		uploadID = uuid.NewString()
	}
	s.Progress.Start(uploadID, in.StageID, in.File.Size)

	rec, err := s.storeRecording(ctx, avatar, in, uploadID)
	if err != nil {
		s.Progress.Finish(uploadID, in.StageID, UploadFailed, string(util.KindOf(err)), "")
		return nil, err
	}
	s.Progress.Finish(uploadID, in.StageID, UploadCompleted, "", rec.ID)

	if err := s.StageRepo.StartIfPending(ctx, in.StageID); err != nil {
		logger.Log.Warn("mark avatar stage in progress failed", zap.Error(err))
	}
	return rec, nil
}

func (s *AvatarService) storeRecording(ctx context.Context, avatar *model.AvatarAssessment, in RecordingUpload, uploadID string) (*model.AvatarRecording, error) {
	src, err := in.File.Open()
	if err != nil {
		return nil, util.NewInternalError("open upload", err)
	}
	defer src.Close()

	contentType, err := util.ValidateMimeType(src, util.AllowedRecordingMimeTypes)
	if err != nil {
		return nil, util.NewValidationError(err.Error())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, util.NewInternalError("rewind upload", err)
	}
	if contentType == util.MimeOctetStream {
		if ct := in.File.Header.Get("Content-Type"); ct != "" {
			contentType = ct
		}
	}

	if err := os.MkdirAll(s.TempDir, 0755); err != nil {
		return nil, util.NewInternalError("create temp dir", err)
	}
	tmpPath := filepath.Join(s.TempDir, uuid.NewString()+strings.ToLower(filepath.Ext(in.File.Filename)))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return nil, util.NewInternalError("create temp file", err)
	}
	defer os.Remove(tmpPath)

	reader := &progressReader{r: src, tracker: s.Progress, jobID: uploadID, userID: in.StageID}
	size, err := io.Copy(dst, reader)
	dst.Close()
	if err != nil {
		return nil, util.NewInternalError("write temp file", err)
	}

	s.Progress.Update(uploadID, in.StageID, func(p *UploadProgress) { p.State = UploadProcessing })

	var duration float64
	if info, err := s.probe(tmpPath); err != nil {
		logger.Log.Warn("probe recording failed", zap.String("stageId", in.StageID), zap.Error(err))
	} else {
		duration = info.Duration
	}

	now := s.now()
	key := RecordingKey(in.StageID, in.QuestionIndex, in.File.Filename, now)
	url, err := s.Storage.UploadFile(ctx, key, tmpPath, contentType)
	if err != nil {
		return nil, util.NewInternalError("upload recording", err)
	}

	rec := &model.AvatarRecording{
		AvatarAssessmentID: avatar.ID,
		QuestionIndex:      in.QuestionIndex,
		ObjectKey:          key,
		FileURL:            url,
		ContentType:        contentType,
		Size:               size,
		Duration:           duration,
	}
	if err := s.Repo.CreateRecording(ctx, rec); err != nil {
		return nil, util.NewInternalError("save recording", err)
	}

	logger.Log.Info("avatar recording stored",
		zap.String("stageId", in.StageID),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.Float64("duration", duration),
	)
	return rec, nil
}

func (s *AvatarService) GetProgress(uploadID, stageID string) (*UploadProgress, error) {
	p, ok := s.Progress.Get(uploadID, stageID)
	if !ok {
		return nil, util.NewNotFoundError("Upload not found")
	}
	return &p, nil
}

func (s *AvatarService) ListRecordings(ctx context.Context, claims *util.Claims, stageID string) ([]model.AvatarRecording, error) {
	_, avatar, err := s.loadForRecruiter(ctx, claims, stageID)
	if err != nil {
		return nil, err
	}
	list, err := s.Repo.ListRecordings(ctx, avatar.ID)
	if err != nil {
		return nil, util.NewInternalError("list recordings", err)
	}
	return list, nil
}

func (s *AvatarService) loadForRecruiter(ctx context.Context, claims *util.Claims, stageID string) (*model.AssessmentStage, *model.AvatarAssessment, error) {
	stage, err := s.StageRepo.FindByID(ctx, stageID)
	if err != nil {
		return nil, nil, lookupError(err, "Assessment stage")
	}
	if stage.JobPost == nil {
		return nil, nil, util.NewNotFoundError("Assessment stage not found")
	}
	if err := ensureCompanyAccess(claims, stage.JobPost.CompanyID, "Assessment stage"); err != nil {
		return nil, nil, err
	}
	if stage.Type != model.StageAvatar {
		return nil, nil, util.NewValidationError("stage is not an AVATAR assessment")
	}
	avatar, err := s.Repo.FindByStageID(ctx, stageID)
	if err != nil {
		return nil, nil, lookupError(err, "Avatar assessment")
	}
	return stage, avatar, nil
}
