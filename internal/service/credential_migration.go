package service

import (
	"context"
	"fmt"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/pkg/logger"

	"go.uber.org/zap"
)

// CredentialMigration 把历史明文口令改写为摘要，可重复执行
type CredentialMigration struct {
	Interviews *repository.InterviewRepository
	Avatars    *repository.AvatarRepository
	Passwords  *SessionPasswordService
}

func NewCredentialMigration(interviews *repository.InterviewRepository, avatars *repository.AvatarRepository,
	passwords *SessionPasswordService) *CredentialMigration {
	return &CredentialMigration{Interviews: interviews, Avatars: avatars, Passwords: passwords}
}

type MigrationReport struct {
	Interviews int `json:"interviews"`
	Avatars    int `json:"avatars"`
}

func (m *CredentialMigration) Run(ctx context.Context) (*MigrationReport, error) {
	report := &MigrationReport{}

	interviews, err := m.Interviews.ListLegacyPasswords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list legacy interview passwords: %w", err)
	}
	for _, iv := range interviews {
		digest, err := m.Passwords.Hash(iv.SessionPassword)
		if err != nil {
			return report, fmt.Errorf("hash interview %s: %w", iv.ID, err)
		}
		if err := m.Interviews.SetSessionPassword(ctx, iv.ID, digest); err != nil {
			return report, fmt.Errorf("save interview %s: %w", iv.ID, err)
		}
		report.Interviews++
	}

	avatars, err := m.Avatars.ListLegacyPasswords(ctx)
	if err != nil {
		return report, fmt.Errorf("list legacy avatar passwords: %w", err)
	}
	for _, av := range avatars {
		digest, err := m.Passwords.Hash(av.SessionPassword)
		if err != nil {
			return report, fmt.Errorf("hash avatar %s: %w", av.ID, err)
		}
		if err := m.Avatars.SetSessionPassword(ctx, av.ID, digest, av.InvitedAt); err != nil {
			return report, fmt.Errorf("save avatar %s: %w", av.ID, err)
		}
		report.Avatars++
	}

	logger.Log.Info("session passwords migrated",
		zap.Int("interviews", report.Interviews),
		zap.Int("avatars", report.Avatars),
	)
	return report, nil
}
