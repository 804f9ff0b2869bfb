package cursor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Pure-Go SQLite driver; registers as "sqlite".
	_ "modernc.org/sqlite"
)

// ItemTable keys holding the three logical streams.
const (
	keyComposerData = "composer.composerData"
	keyPrompts      = "aiService.prompts"
	keyGenerations  = "aiService.generations"
)

// composerRecord is one entry of composer.composerData.
type composerRecord struct {
	ComposerID    string `json:"composerId"`
	Name          string `json:"name"`
	CreatedAt     int64  `json:"createdAt"`
	LastUpdatedAt int64  `json:"lastUpdatedAt"`
}

// composerData is the envelope around the composer records.
type composerData struct {
	AllComposers []composerRecord `json:"allComposers"`
}

// promptRecord is one entry of aiService.prompts.
type promptRecord struct {
	Text        string `json:"text"`
	CommandType int    `json:"commandType"`
}

// generationRecord is one entry of aiService.generations.
type generationRecord struct {
	UnixMs          int64  `json:"unixMs"`
	GenerationUUID  string `json:"generationUUID"`
	Type            string `json:"type"`
	TextDescription string `json:"textDescription"`
}

// storeData holds the decoded streams of one workspace database.
type storeData struct {
	composers   []composerRecord
	prompts     []promptRecord
	generations []generationRecord
}

// readStore opens a workspace database read-only and decodes the three
// streams. The context bounds every query. Missing keys are normal;
// structural corruption is an error the caller handles by skipping the
// workspace.
func readStore(ctx context.Context, dbPath string) (*storeData, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	data := &storeData{}

	if raw, err := readItem(ctx, db, keyComposerData); err != nil {
		return nil, err
	} else if raw != nil {
		var cd composerData
		if err := json.Unmarshal(raw, &cd); err != nil {
			return nil, fmt.Errorf("decoding composer data: %w", err)
		}
		data.composers = cd.AllComposers
	}

	if raw, err := readItem(ctx, db, keyPrompts); err != nil {
		return nil, err
	} else if raw != nil {
		if err := json.Unmarshal(raw, &data.prompts); err != nil {
			return nil, fmt.Errorf("decoding prompts: %w", err)
		}
	}

	if raw, err := readItem(ctx, db, keyGenerations); err != nil {
		return nil, err
	} else if raw != nil {
		if err := json.Unmarshal(raw, &data.generations); err != nil {
			return nil, fmt.Errorf("decoding generations: %w", err)
		}
	}

	return data, nil
}

// readItem fetches one ItemTable value. A missing key returns nil
// without error.
func readItem(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx,
		"SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}
