package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// openDB stats before opening: the driver would otherwise create an
// empty database at a mistyped path.
func openDB(path string) *sql.DB {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func entitiesCmd(args []string) {
	fs := flag.NewFlagSet("entities", flag.ExitOnError)
	dbPath := fs.String("db", "gemrush.db", "sqlite database path")
	limit := fs.Int("limit", 20, "maximum rows to print")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()

	rows, err := db.Query(`SELECT client_token, entity_id, tile_x, tile_y, gems, bombs_placed, updated_at
		FROM entities ORDER BY updated_at DESC LIMIT ?`, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Token       string `json:"token"`
			EntityID    string `json:"entity_id"`
			X           int    `json:"x"`
			Y           int    `json:"y"`
			GemValue    uint64 `json:"gem_value"`
			BombsPlaced int    `json:"bombs_placed"`
			UpdatedAt   string `json:"updated_at"`
		}
		var entityID int64
		var gemsBlob []byte
		if err := rows.Scan(&r.Token, &entityID, &r.X, &r.Y, &gemsBlob, &r.BombsPlaced, &r.UpdatedAt); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		// Hex ids line up with server logs and journal records.
		r.EntityID = ids.ID(uint64(entityID)).String()
		if gems, ok := world.DecodeGemBlob(gemsBlob); ok {
			r.GemValue = gems.Value()
		}
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func entityCmd(args []string) {
	fs := flag.NewFlagSet("entity", flag.ExitOnError)
	dbPath := fs.String("db", "gemrush.db", "sqlite database path")
	token := fs.String("token", "", "client token to look up")
	idHex := fs.String("id", "", "entity id to look up (hex, as logged)")
	_ = fs.Parse(args)

	tok := strings.TrimSpace(*token)
	if tok == "" && *idHex == "" {
		fmt.Fprintln(os.Stderr, "entity: need -token or -id")
		os.Exit(2)
	}

	db := openDB(*dbPath)
	defer db.Close()

	q := `SELECT client_token, entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, gems, inventory, bombs_placed, updated_at
		FROM entities WHERE client_token = ?`
	arg := any(tok)
	if tok == "" {
		id, err := ids.Parse(strings.TrimSpace(*idHex))
		if err != nil {
			fmt.Fprintln(os.Stderr, "entity:", err)
			os.Exit(2)
		}
		q = `SELECT client_token, entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, gems, inventory, bombs_placed, updated_at
		FROM entities WHERE entity_id = ?`
		arg = int64(uint64(id))
	}

	var r struct {
		Token          string            `json:"token"`
		EntityID       string            `json:"entity_id"`
		X              int               `json:"x"`
		Y              int               `json:"y"`
		HairStyle      int               `json:"hair_style"`
		ClothingColour int               `json:"clothing_colour"`
		SkinColour     int               `json:"skin_colour"`
		HairColour     int               `json:"hair_colour"`
		GemValue       uint64            `json:"gem_value"`
		Gems           map[string]uint32 `json:"gems"`
		Inventory      map[string]uint32 `json:"inventory"`
		BombsPlaced    int               `json:"bombs_placed"`
		UpdatedAt      string            `json:"updated_at"`
	}
	var entityID int64
	var gemsBlob, invBlob []byte
	row := db.QueryRow(q, arg)
	err := row.Scan(&r.Token, &entityID, &r.X, &r.Y, &r.HairStyle, &r.ClothingColour, &r.SkinColour, &r.HairColour, &gemsBlob, &invBlob, &r.BombsPlaced, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		fmt.Fprintln(os.Stderr, "entity: no such row")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
	r.EntityID = ids.ID(uint64(entityID)).String()

	gems, ok := world.DecodeGemBlob(gemsBlob)
	if !ok {
		fmt.Fprintln(os.Stderr, "warn: corrupt gem blob")
	}
	r.GemValue = gems.Value()
	r.Gems = map[string]uint32{}
	gems.Each(func(g world.Gem, n uint32) { r.Gems[g.String()] = n })

	inv, ok := world.DecodeInventoryBlob(invBlob)
	if !ok {
		fmt.Fprintln(os.Stderr, "warn: corrupt inventory blob")
	}
	r.Inventory = map[string]uint32{}
	inv.Each(func(i world.Item, n uint32) { r.Inventory[i.String()] = n })

	printJSON(r)
}

func chunksCmd(args []string) {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	dbPath := fs.String("db", "gemrush.db", "sqlite database path")
	limit := fs.Int("limit", 10, "recently touched chunks to print")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()

	var s struct {
		Chunks int `json:"chunks"`
		MinX   int `json:"min_x"`
		MaxX   int `json:"max_x"`
		MinY   int `json:"min_y"`
		MaxY   int `json:"max_y"`
	}
	row := db.QueryRow(`SELECT COUNT(*), COALESCE(MIN(chunk_x),0), COALESCE(MAX(chunk_x),0), COALESCE(MIN(chunk_y),0), COALESCE(MAX(chunk_y),0) FROM chunks`)
	if err := row.Scan(&s.Chunks, &s.MinX, &s.MaxX, &s.MinY, &s.MaxY); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
	printJSON(s)

	rows, err := db.Query(`SELECT chunk_x, chunk_y, LENGTH(tiles), updated_at FROM chunks ORDER BY updated_at DESC LIMIT ?`, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			ChunkX    int    `json:"chunk_x"`
			ChunkY    int    `json:"chunk_y"`
			BlobBytes int    `json:"blob_bytes"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := rows.Scan(&r.ChunkX, &r.ChunkY, &r.BlobBytes, &r.UpdatedAt); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func tileCmd(args []string) {
	fs := flag.NewFlagSet("tile", flag.ExitOnError)
	dbPath := fs.String("db", "gemrush.db", "sqlite database path")
	x := fs.Int("x", 0, "tile x")
	y := fs.Int("y", 0, "tile y")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()

	pos := world.TileCoords{X: int32(*x), Y: int32(*y)}
	cc := pos.Chunk()

	var blob []byte
	var updated string
	row := db.QueryRow(`SELECT tiles, updated_at FROM chunks WHERE chunk_x = ? AND chunk_y = ?`, cc.X, cc.Y)
	err := row.Scan(&blob, &updated)
	if err == sql.ErrNoRows {
		fmt.Fprintf(os.Stderr, "tile: chunk %v is not persisted\n", cc)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zstd:", err)
		os.Exit(1)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decompress:", err)
		os.Exit(1)
	}

	chunk := world.NewChunk(cc)
	if repaired := chunk.DecodeTiles(raw); repaired {
		fmt.Fprintf(os.Stderr, "warn: chunk %v stored with %d tile bytes\n", cc, len(raw))
	}
	tile := chunk.TileAt(pos.Offset())

	printJSON(struct {
		X         int    `json:"x"`
		Y         int    `json:"y"`
		Chunk     string `json:"chunk"`
		Tile      string `json:"tile"`
		TileID    uint8  `json:"tile_id"`
		UpdatedAt string `json:"updated_at"`
	}{*x, *y, cc.String(), tile.String(), uint8(tile), updated})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
