package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
)

const (
	TokensBucket = "tokens"

	snapshotKey  = "snapshot"
	fetchedAtKey = "fetched_at"
	providerKey  = "provider"

	DefaultDBPath = "./data/tokens.db"
)

var ErrNoSnapshot = errors.New("no token snapshot stored")

// TokenSnapshot is the last token list that was successfully fetched.
type TokenSnapshot struct {
	Provider  string
	FetchedAt time.Time
	Tokens    []domain.TokenDescriptor
}

// Storage keeps the token list snapshot in a bolt file so the registry can
// serve lookups before the first upstream refresh completes.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[tokenStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot. The list and its metadata are
// written in one batch so readers never observe a mix of two snapshots.
func (s *Storage) SaveSnapshot(snap TokenSnapshot) error {
	data, err := sonic.Marshal(snap.Tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal token list: %w", err)
	}

	entries := map[string][]byte{
		snapshotKey:  data,
		fetchedAtKey: []byte(strconv.FormatInt(snap.FetchedAt.Unix(), 10)),
		providerKey:  []byte(snap.Provider),
	}

	batch := s.db.NewBatch()
	for key, value := range entries {
		value := value
		op := &boltdb.WriteOperation{
			Bucket: []byte(TokensBucket),
			Key:    []byte(key),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", key, err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(snap.Tokens)).Msg("[tokenStorage] FAILED to execute batch")
		return err
	}

	log.Info().Int("count", len(snap.Tokens)).Str("provider", snap.Provider).Msg("[tokenStorage] saved token snapshot")
	return nil
}

func (s *Storage) LoadSnapshot() (*TokenSnapshot, error) {
	data, err := s.db.List(TokensBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	raw, ok := data[snapshotKey]
	if !ok || len(raw) == 0 {
		return nil, ErrNoSnapshot
	}

	var tokens []domain.TokenDescriptor
	if err := sonic.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token snapshot: %w", err)
	}

	snap := &TokenSnapshot{
		Provider: string(data[providerKey]),
		Tokens:   tokens,
	}
	if ts, err := strconv.ParseInt(string(data[fetchedAtKey]), 10, 64); err == nil {
		snap.FetchedAt = time.Unix(ts, 0)
	} else {
		log.Warn().Err(err).Msg("[tokenStorage] snapshot has no valid fetch time")
	}

	return snap, nil
}
