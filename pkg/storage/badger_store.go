package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/log"
	"github.com/Sriram-PR/site-harvester/pkg/models"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

const (
	pageKeyPrefix     = "page:"     // page:<url> -> PageDBEntry
	artifactKeyPrefix = "artifact:" // artifact:<kind>:<sha256(value)> -> ClassifiedArtifact
	brokenKeyPrefix   = "broken:"   // broken:<url> -> empty
	runInfoKey        = "meta:run"  // CrawlResult without lists
	stateDBSuffix     = "_state_db"
)

// BadgerStore implements CrawlStore on BadgerDB so a finished crawl can be reported again later
type BadgerStore struct {
	db       *badger.DB
	path     string
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached number of page keys
}

// DBPath returns the directory used for target's state under stateDir
func DBPath(stateDir, target string) string {
	return filepath.Join(stateDir, utils.SanitizeFilename(target)+stateDBSuffix)
}

// NewBadgerStore opens the state DB of target under stateDir.
// With fresh set, any existing state for the target is removed first.
func NewBadgerStore(stateDir, target string, fresh bool, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := DBPath(stateDir, target)
	store := &BadgerStore{path: dbPath, log: logger}

	if fresh {
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: no saved state for target '%s' at %s: %w", utils.ErrFilesystem, target, dbPath, err)
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogger(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	if !fresh {
		count, err := store.countPrefix(pageKeyPrefix)
		if err != nil {
			logger.Warnf("Failed to count existing page keys: %v", err)
		}
		store.keyCount.Store(int64(count))
	}

	logger.WithFields(logrus.Fields{"path": dbPath, "fresh": fresh}).Info("Crawl state database opened")
	return store, nil
}

// Path returns the DB directory
func (s *BadgerStore) Path() string { return s.path }

func (s *BadgerStore) countPrefix(prefix string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Concurrent workers writing the same keys can hit badger.ErrConflict.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkVisited implements VisitedStore. The check and insert share one transaction.
func (s *BadgerStore) MarkVisited(url string, depth int) (bool, error) {
	key := []byte(pageKeyPrefix + url)
	val, err := json.Marshal(&models.PageDBEntry{Status: models.PageStatusPending, Depth: depth, LastAttempt: time.Now()})
	if err != nil {
		return false, fmt.Errorf("%w: encoding page entry: %w", utils.ErrParsing, err)
	}

	added := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.Set(key, val); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// VisitedCount implements VisitedStore
func (s *BadgerStore) VisitedCount() int {
	return int(s.keyCount.Load())
}

// Visited implements VisitedStore. Badger iterates keys in order, so the result is sorted.
func (s *BadgerStore) Visited() ([]string, error) {
	return s.keysWithPrefix(pageKeyPrefix)
}

func (s *BadgerStore) keysWithPrefix(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(p):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing '%s' keys: %w", utils.ErrDatabase, prefix, err)
	}
	return keys, nil
}

// CheckPageStatus implements CrawlStore
func (s *BadgerStore) CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry
	key := []byte(pageKeyPrefix + url)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.PageDBEntry
			if len(val) == 0 || json.Unmarshal(val, &decoded) != nil {
				s.log.Warnf("Unreadable page entry for key '%s', treating as pending", string(key))
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		s.log.Errorf("DB View error in CheckPageStatus for key '%s': %v", string(key), errView)
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdatePageStatus implements CrawlStore
func (s *BadgerStore) UpdatePageStatus(url string, entry *models.PageDBEntry) error {
	key := []byte(pageKeyPrefix + url)
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal PageDBEntry for key '%s': %w", utils.ErrParsing, string(key), err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: failed setting page status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	s.log.Debugf("Updated page status for '%s' to '%s'", url, entry.Status)
	return nil
}

func artifactKey(kind models.ArtifactKind, value string) []byte {
	return []byte(artifactKeyPrefix + string(kind) + ":" + utils.CalculateStringSHA256(value))
}

// SaveArtifact implements CrawlStore. Provenance is merged with what is already stored.
func (s *BadgerStore) SaveArtifact(a models.ClassifiedArtifact) error {
	key := artifactKey(a.Kind, a.Value)
	err := s.dbUpdate(func(txn *badger.Txn) error {
		merged := classify.NewResultSet()
		merged.Merge(a)

		item, errGet := txn.Get(key)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
		case errGet != nil:
			return errGet
		default:
			errVal := item.Value(func(val []byte) error {
				var stored models.ClassifiedArtifact
				if err := json.Unmarshal(val, &stored); err != nil {
					s.log.Warnf("Discarding unreadable artifact '%s': %v", string(key), err)
					return nil
				}
				merged.Merge(stored)
				return nil
			})
			if errVal != nil {
				return errVal
			}
		}

		out, _ := merged.Get(a.Kind, a.Value)
		val, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: saving artifact '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return nil
}

// AddBrokenLink implements CrawlStore
func (s *BadgerStore) AddBrokenLink(url string) error {
	key := []byte(brokenKeyPrefix + url)
	if err := s.dbUpdate(func(txn *badger.Txn) error { return txn.Set(key, []byte{}) }); err != nil {
		return fmt.Errorf("%w: recording broken link '%s': %w", utils.ErrDatabase, url, err)
	}
	return nil
}

// SaveRunInfo implements CrawlStore
func (s *BadgerStore) SaveRunInfo(res *models.CrawlResult) error {
	info := runInfo(res)
	val, err := json.Marshal(&info)
	if err != nil {
		return fmt.Errorf("%w: encoding run info: %w", utils.ErrParsing, err)
	}
	if err := s.dbUpdate(func(txn *badger.Txn) error { return txn.Set([]byte(runInfoKey), val) }); err != nil {
		return fmt.Errorf("%w: saving run info: %w", utils.ErrDatabase, err)
	}
	return nil
}

// LoadResult implements CrawlStore
func (s *BadgerStore) LoadResult() (*models.CrawlResult, error) {
	res := &models.CrawlResult{}
	artifacts := classify.NewResultSet()

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get([]byte(runInfoKey))
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			s.log.Warn("No run info stored, report header will be incomplete")
		case errGet != nil:
			return errGet
		default:
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, res) }); err != nil {
				return fmt.Errorf("%w: decoding run info: %w", utils.ErrParsing, err)
			}
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(artifactKeyPrefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			errVal := it.Item().Value(func(val []byte) error {
				var a models.ClassifiedArtifact
				if err := json.Unmarshal(val, &a); err != nil {
					s.log.Warnf("Skipping unreadable artifact '%s': %v", string(it.Item().Key()), err)
					return nil
				}
				artifacts.Merge(a)
				return nil
			})
			if errVal != nil {
				return errVal
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading crawl result: %w", utils.ErrDatabase, err)
	}

	if res.Visited, err = s.Visited(); err != nil {
		return nil, err
	}
	if res.BrokenLinks, err = s.keysWithPrefix(brokenKeyPrefix); err != nil {
		return nil, err
	}
	res.PagesVisited = len(res.Visited)
	res.Artifacts = artifacts.Snapshot()
	return res, nil
}

// RunGC runs BadgerDB's value log garbage collection periodically until ctx ends
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements CrawlStore
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", utils.ErrDatabase, s.path, err)
	}
	s.log.Debug("Crawl state database closed")
	return nil
}
