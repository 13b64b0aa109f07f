package store

import (
	"errors"
	"fmt"
	"time"

	"quantcontrol/internal/models"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// claimRaceAttempts bounds how many times ClaimNext chases the oldest eligible
// row when concurrent claimants keep winning the CAS first.
const claimRaceAttempts = 5

// InsertSignal creates a new PENDING signal. Returns ErrOpenSignalExists when a
// non-terminal signal (claim markers included) already exists for the same
// (symbol, side) pair. The partial unique index in migrations backs the same
// invariant at the schema level, so the in-transaction check racing another
// writer still cannot produce a duplicate.
func (s *Store) InsertSignal(sig *models.Signal) error {
	sig.Status = models.StatusPending
	sig.Version = 1

	return s.withRetry("insert_signal", func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Signal{}).
				Where("symbol = ? AND side = ? AND status IN ?", sig.Symbol, sig.Side, models.OpenStatuses()).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrOpenSignalExists
			}

			if err := tx.Create(sig).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrOpenSignalExists
				}
				return err
			}
			return nil
		})
	})
}

// ClaimNext atomically claims the oldest signal in the wanted status for the
// given claimant, moving it to the matching claim marker via a version CAS.
// Returns (nil, nil) when no eligible row exists, or when contention exhausts
// the race attempts; a transient store error that persists across attempts is
// returned. A claim is a lease, not a lock: ReleaseStaleClaims hands
// abandoned work to the next claimant.
func (s *Store) ClaimNext(statusWanted, claimantID string) (*models.Signal, error) {
	marker := models.ClaimedStatus(statusWanted)
	if marker == "" {
		return nil, fmt.Errorf("status %q is not claimable", statusWanted)
	}

	var lastErr error
	for attempt := 0; attempt < claimRaceAttempts; attempt++ {
		var sig models.Signal
		err := s.db.
			Where("status = ?", statusWanted).
			Order("created_at ASC").
			First(&sig).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			if IsTransient(err) {
				lastErr = err
				time.Sleep(Backoff(attempt))
				continue
			}
			return nil, err
		}

		now := time.Now().UTC()
		res := s.db.Model(&models.Signal{}).
			Where("id = ? AND version = ? AND status = ?", sig.ID, sig.Version, statusWanted).
			Updates(map[string]interface{}{
				"status":     marker,
				"claimed_by": claimantID,
				"claimed_at": now,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			if IsTransient(res.Error) {
				lastErr = res.Error
				time.Sleep(Backoff(attempt))
				continue
			}
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			sig.Status = marker
			sig.ClaimedBy = claimantID
			sig.ClaimedAt = &now
			sig.Version++
			return &sig, nil
		}
		// Another claimant won the CAS; go back for the next oldest row.
		lastErr = nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("claim %s signal after %d attempts: %w", statusWanted, claimRaceAttempts, lastErr)
	}
	logger.WithFields(logger.Fields{
		"status":   statusWanted,
		"claimant": claimantID,
	}).Warnf("Gave up claiming after %d contested attempts", claimRaceAttempts)
	return nil, nil
}

// CommitTransition finalizes a claimed row's transition to newStatus, clearing
// the claim and applying any extra column updates. expectedVersion is the
// version read at claim time; a mismatch means another writer touched the row
// and the commit is refused with ErrVersionConflict.
func (s *Store) CommitTransition(id uint, expectedVersion int64, newStatus string, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     newStatus,
		"claimed_by": "",
		"claimed_at": nil,
		"version":    gorm.Expr("version + 1"),
	}
	for k, v := range fields {
		updates[k] = v
	}

	return s.withRetry("commit_transition", func() error {
		res := s.db.Model(&models.Signal{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// ReleaseClaim reverts a row this claimant holds back to its pre-claim status,
// for cases where the stage decides not to process it after all (for example
// missing market data). Unknown-outcome broker calls must NOT release; they
// leave the claim for lease expiry so recovery can re-query first.
func (s *Store) ReleaseClaim(sig *models.Signal) error {
	base := models.PreClaimStatus(sig.Status)
	if base == "" {
		return fmt.Errorf("signal %d is not in a claimed status (%s)", sig.ID, sig.Status)
	}

	return s.withRetry("release_claim", func() error {
		res := s.db.Model(&models.Signal{}).
			Where("id = ? AND version = ?", sig.ID, sig.Version).
			Updates(map[string]interface{}{
				"status":     base,
				"claimed_by": "",
				"claimed_at": nil,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// ReleaseStaleClaims reverts claim markers older than maxAge back to their
// pre-claim status so a crashed claimant's work is retried by another process.
// Every stage runs this at the top of every polling cycle.
func (s *Store) ReleaseStaleClaims(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	var total int64

	for _, claimed := range []string{
		models.StatusClaimedPending,
		models.StatusClaimedSized,
		models.StatusClaimedSubmitted,
	} {
		base := models.PreClaimStatus(claimed)
		err := s.withRetry("release_stale_claims", func() error {
			res := s.db.Model(&models.Signal{}).
				Where("status = ? AND claimed_at < ?", claimed, cutoff).
				Updates(map[string]interface{}{
					"status":     base,
					"claimed_by": "",
					"claimed_at": nil,
					"version":    gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
			return nil
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// GetSignal fetches one signal by id. Returns (nil, nil) when absent.
func (s *Store) GetSignal(id uint) (*models.Signal, error) {
	var sig models.Signal
	err := s.db.First(&sig, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// CountByStatus returns how many signals sit in the given status.
func (s *Store) CountByStatus(status string) (int64, error) {
	var count int64
	err := s.withRetry("count_by_status", func() error {
		return s.db.Model(&models.Signal{}).Where("status = ?", status).Count(&count).Error
	})
	return count, err
}

// RecordExecutedTrade appends a fill to the executed_trades audit table.
func (s *Store) RecordExecutedTrade(trade *models.ExecutedTrade) error {
	return s.withRetry("record_executed_trade", func() error {
		return s.db.Create(trade).Error
	})
}
