package store

import (
	"fmt"
	"os"
)

// Rotate applies the retention policy to a project after a successful backup:
// the keepCount newest complete sets survive, everything else is removed.
// Incomplete sets are leftovers of failed runs and are always removed.
// A keepCount of zero (or below) wipes the whole history.
func (s *Store) Rotate(project string, keepCount int) error {
	sets, err := s.ListSets(project)
	if err != nil {
		return fmt.Errorf("failed to list backup sets for rotation: %w", err)
	}

	if keepCount <= 0 {
		s.logger.Warning("Retention is set to keep 0 backups; ALL backup sets of %s will be removed", project)
	}

	victims := rotationVictims(sets, keepCount)
	for _, set := range victims {
		if set.Complete {
			s.logger.Info("Rotating out old backup set: %s", set.Timestamp)
		} else {
			s.logger.Info("Removing incomplete backup set: %s", set.Timestamp)
		}
		if err := os.RemoveAll(set.Dir); err != nil {
			return fmt.Errorf("failed to remove backup set %s: %w", set.Dir, err)
		}
	}

	s.logger.Debug("Retention for %s: kept %d of %d sets", project, len(sets)-len(victims), len(sets))
	return nil
}

// rotationVictims selects the sets Rotate removes, oldest first. Sets must be
// in newest-first order as returned by ListSets. Removing old sets before
// newer ones keeps the surviving history contiguous if rotation is
// interrupted midway.
func rotationVictims(sets []BackupSet, keepCount int) []BackupSet {
	victims := make([]BackupSet, 0, len(sets))
	kept := 0
	for _, set := range sets {
		if set.Complete && kept < keepCount {
			kept++
			continue
		}
		victims = append(victims, set)
	}
	for i, j := 0, len(victims)-1; i < j; i, j = i+1, j-1 {
		victims[i], victims[j] = victims[j], victims[i]
	}
	return victims
}
