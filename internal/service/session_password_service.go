package service

import (
	"crypto/rand"
	"crypto/subtle"
	"hire_assessment_backend/pkg/logger"
	"hire_assessment_backend/pkg/monitoring"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionPasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	sessionPasswordLength   = 8
	sessionPasswordCost     = 12
)

// CredentialKind 存储侧会话口令的形态
type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialHashed
	CredentialLegacyPlain
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialHashed:
		return "hashed"
	case CredentialLegacyPlain:
		return "legacy_plain"
	}
	return "none"
}

// SessionCredential 摘要优先；只有明文的历史记录视为待迁移数据
type SessionCredential struct {
	Kind   CredentialKind
	Digest string
	Plain  string
}

// CredentialFrom 由数据库两列推导出口令形态
func CredentialFrom(digest, legacyPlain string) SessionCredential {
	switch {
	case digest != "":
		return SessionCredential{Kind: CredentialHashed, Digest: digest}
	case legacyPlain != "":
		return SessionCredential{Kind: CredentialLegacyPlain, Plain: legacyPlain}
	}
	return SessionCredential{Kind: CredentialNone}
}

func (c SessionCredential) Required() bool {
	return c.Kind != CredentialNone
}

type SessionPasswordService struct {
	cost int
}

func NewSessionPasswordService() *SessionPasswordService {
	return &SessionPasswordService{cost: sessionPasswordCost}
}

// GenerateSecret 8 位大写字母+数字，crypto/rand 均匀采样
func (s *SessionPasswordService) GenerateSecret() (string, error) {
	max := big.NewInt(int64(len(sessionPasswordAlphabet)))
	buf := make([]byte, sessionPasswordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = sessionPasswordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (s *SessionPasswordService) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify 摘要格式错误时返回 false，不返回错误
func (s *SessionPasswordService) Verify(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// GenerateAndHash 明文只用于本次通知，持久化只保存摘要
func (s *SessionPasswordService) GenerateAndHash() (string, string, error) {
	secret, err := s.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	digest, err := s.Hash(secret)
	if err != nil {
		return "", "", err
	}
	return secret, digest, nil
}

// Check 按口令形态校验；CredentialNone 视为无需口令
func (s *SessionPasswordService) Check(cred SessionCredential, secret string) bool {
	var ok bool
	switch cred.Kind {
	case CredentialNone:
		ok = true
	case CredentialHashed:
		ok = s.Verify(secret, cred.Digest)
	case CredentialLegacyPlain:
		logger.Log.Warn("session password verified against legacy plaintext; run -migrate to hash it")
		ok = subtle.ConstantTimeCompare([]byte(secret), []byte(cred.Plain)) == 1
	}

	result := "ok"
	if !ok {
		result = "mismatch"
	}
	monitoring.SecretVerifications.WithLabelValues(cred.Kind.String(), result).Inc()
	if !ok {
		logger.Log.Debug("session password mismatch", zap.String("variant", cred.Kind.String()))
	}
	return ok
}
