package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type counterAllocator interface {
	NextValue(ctx context.Context, tx *sqlx.Tx, organizationID, counterKey string) (int64, error)
}

// NumberService allocates certificate numbers and verification hashes.
// Numbers are sequential per (organization, type, school, year) and must be
// allocated inside the issuance transaction so an abort releases them.
type NumberService struct {
	counters counterAllocator
	prefix   string
}

// NewNumberService constructs NumberService.
func NewNumberService(counters counterAllocator, prefix string) *NumberService {
	if prefix == "" {
		prefix = "PFX"
	}
	return &NumberService{counters: counters, prefix: prefix}
}

// Generate allocates the next certificate number within tx.
func (s *NumberService) Generate(ctx context.Context, tx *sqlx.Tx, organizationID, schoolID, certificateType string, year int) (string, error) {
	key := fmt.Sprintf("%s:%s:%d", slug(certificateType), schoolID, year)
	seq, err := s.counters.NextValue(ctx, tx, organizationID, key)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate certificate number")
	}
	return fmt.Sprintf("%s-%s-%d-%04d", s.prefix, strings.ToUpper(slug(certificateType)), year, seq), nil
}

// VerificationHash derives an unguessable lookup token for one certificate.
// Random input dominates; the student id and timestamp only add uniqueness.
func (s *NumberService) VerificationHash(studentID string) (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification token")
	}
	h := sha256.New()
	h.Write(token)
	h.Write([]byte(studentID))
	h.Write([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// slug lowercases and collapses non-alphanumerics to single hyphens.
func slug(v string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(v) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
