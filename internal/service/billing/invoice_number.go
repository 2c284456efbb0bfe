// internal/service/billing/invoice_number.go
package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/lock"

	"go.uber.org/zap"
)

const (
	invoiceNumberPrefix = "FA"
	sequenceDigits      = 4
	numberingLockTTL    = 5 * time.Second
)

// NextInvoiceNumber allocates the next invoice number for the tenant in the
// current year, formatted "FA<year><seq>" with a zero-padded 4-digit
// sequence, and returns the numbering lease still held. The caller must
// store the invoice before releasing the lease; releasing first lets a
// concurrent run read the same last number and mint a duplicate. On error
// the lease is already released.
func (s *BillingService) NextInvoiceNumber(ctx context.Context, tenantID int64) (string, lock.Lease, error) {
	lease, err := s.locker.Acquire(ctx, numberingLockKey(tenantID), numberingLockTTL)
	if err != nil {
		return "", nil, err
	}

	number, err := s.nextNumberLocked(ctx, tenantID)
	if err != nil {
		s.releaseNumberingLease(ctx, lease, tenantID)
		return "", nil, err
	}

	return number, lease, nil
}

func (s *BillingService) releaseNumberingLease(ctx context.Context, lease lock.Lease, tenantID int64) {
	if err := lease.Release(ctx); err != nil {
		s.logger.Warn("failed to release invoice numbering lock", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}

// nextNumberLocked assumes the caller holds the tenant numbering lock.
func (s *BillingService) nextNumberLocked(ctx context.Context, tenantID int64) (string, error) {
	prefix := fmt.Sprintf("%s%d", invoiceNumberPrefix, s.now().Year())

	last, err := s.invoiceRepo.MaxNumberForPrefix(ctx, tenantID, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up last invoice number: %w", err)
	}

	seq := 1
	if last != "" {
		seq, err = parseSequence(prefix, last)
		if err != nil {
			return "", err
		}
		seq++
	}

	return fmt.Sprintf("%s%0*d", prefix, sequenceDigits, seq), nil
}

func parseSequence(prefix, number string) (int, error) {
	if len(number) <= len(prefix) {
		return 0, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("malformed invoice number %q", number))
	}
	seq, err := strconv.Atoi(number[len(prefix):])
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("malformed invoice number %q", number))
	}
	return seq, nil
}

func numberingLockKey(tenantID int64) string {
	return fmt.Sprintf("billing:invoice_no:%d", tenantID)
}
