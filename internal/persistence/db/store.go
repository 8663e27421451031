// Package db persists player entities and world chunks in a single sqlite
// database. All calls are synchronous; the hub invokes them outside its
// lock.
package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

type Store struct {
	db  *sql.DB
	log *log.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

func Open(path string, logger *log.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := initPragmas(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := initSchema(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{db: sqlDB, log: logger, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the steady trickle of chunk and entity upserts.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entities (
			client_token TEXT PRIMARY KEY,
			entity_id INTEGER NOT NULL,
			tile_x INTEGER NOT NULL,
			tile_y INTEGER NOT NULL,
			hair_style INTEGER NOT NULL,
			clothing_colour INTEGER NOT NULL,
			skin_colour INTEGER NOT NULL,
			hair_colour INTEGER NOT NULL,
			gems BLOB NOT NULL,
			inventory BLOB NOT NULL,
			bombs_placed INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_entity_id ON entities(entity_id);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_x INTEGER NOT NULL,
			chunk_y INTEGER NOT NULL,
			tiles BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (chunk_x, chunk_y)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// LoadEntity fetches the persisted entity for a client token. ok is false
// when the token has no row. Corrupt gem or inventory blobs repair to
// empty with a logged warning; they never fail the load.
func (s *Store) LoadEntity(token string) (ids.ID, *world.Entity, bool, error) {
	row := s.db.QueryRow(`SELECT entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, gems, inventory, bombs_placed
		FROM entities WHERE client_token = ?`, token)

	var entityID, tileX, tileY int64
	var hairStyle, clothing, skin, hairColour int64
	var gemsBlob, invBlob []byte
	var bombsPlaced int64
	err := row.Scan(&entityID, &tileX, &tileY, &hairStyle, &clothing, &skin, &hairColour, &gemsBlob, &invBlob, &bombsPlaced)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("load entity: %w", err)
	}

	e := &world.Entity{
		Pos:            world.TileCoords{X: int32(tileX), Y: int32(tileY)},
		Direction:      world.DirectionDown,
		HairStyle:      world.DecodeHairStyle(byte(hairStyle)),
		ClothingColour: world.DecodeClothingColour(byte(clothing)),
		SkinColour:     world.DecodeSkinColour(byte(skin)),
		HairColour:     world.DecodeHairColour(byte(hairColour)),
		BombsPlaced:    uint32(bombsPlaced),
	}
	gems, ok := world.DecodeGemBlob(gemsBlob)
	if !ok {
		s.log.Printf("warn: entity %s has a corrupt gem blob, repaired to empty", token)
	}
	e.Gems = gems
	inv, ok := world.DecodeInventoryBlob(invBlob)
	if !ok {
		s.log.Printf("warn: entity %s has a corrupt inventory blob, repaired to empty", token)
	}
	e.Inventory = inv

	return ids.ID(uint64(entityID)), e, true, nil
}

// SaveEntity upserts the entity row for a client token. The facial
// expression and direction are transient and not stored.
func (s *Store) SaveEntity(token string, id ids.ID, e *world.Entity) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO entities
		(client_token, entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, gems, inventory, bombs_placed, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		token,
		int64(uint64(id)),
		int64(e.Pos.X), int64(e.Pos.Y),
		int64(e.HairStyle), int64(e.ClothingColour), int64(e.SkinColour), int64(e.HairColour),
		e.Gems.EncodeBlob(), e.Inventory.EncodeBlob(),
		int64(e.BombsPlaced),
		now(),
	)
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// LoadChunk fetches a persisted chunk. ok is false on a miss, and also
// when the stored blob does not decompress: a chunk we cannot read is
// regenerated deterministically rather than surfaced as fatal. Wrong tile
// counts inside a readable blob repair with a warning.
func (s *Store) LoadChunk(coords world.ChunkCoords) (*world.Chunk, bool, error) {
	row := s.db.QueryRow(`SELECT tiles FROM chunks WHERE chunk_x = ? AND chunk_y = ?`, coords.X, coords.Y)
	var blob []byte
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %v: %w", coords, err)
	}

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		s.log.Printf("warn: chunk %v blob does not decompress (%v), regenerating", coords, err)
		return nil, false, nil
	}

	chunk := world.NewChunk(coords)
	if repaired := chunk.DecodeTiles(raw); repaired {
		s.log.Printf("warn: chunk %v stored with %d tile bytes, repaired", coords, len(raw))
	}
	return chunk, true, nil
}

// SaveChunk upserts a chunk, compressing the tile blob.
func (s *Store) SaveChunk(chunk *world.Chunk) error {
	blob := s.enc.EncodeAll(chunk.EncodeTiles(), nil)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO chunks (chunk_x, chunk_y, tiles, updated_at) VALUES (?,?,?,?)`,
		chunk.Coords.X, chunk.Coords.Y, blob, now())
	if err != nil {
		return fmt.Errorf("save chunk %v: %w", chunk.Coords, err)
	}
	return nil
}
