// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package feedback records whether users found a validation helpful. Only
// the session ID, score, rating and an optional comment are kept; the idea
// text and model output are never stored. Records go to a JSON lines file,
// SQLite or Postgres.
package feedback

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	StorageTypeFile     = "file"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

const (
	tableName        = "feedback"
	maxCommentLength = 2000
	defaultListLimit = 50
)

// Rating is the user's verdict on a validation
type Rating string

const (
	RatingHelpful    Rating = "helpful"
	RatingNotHelpful Rating = "not_helpful"
)

var (
	// ErrInvalidRating rejects ratings other than helpful and not_helpful
	ErrInvalidRating = errors.New("rating must be helpful or not_helpful")
	// ErrCommentTooLong rejects oversized comments
	ErrCommentTooLong = fmt.Errorf("comment must not be longer than %d characters", maxCommentLength)
)

// Valid reports whether r is a known rating
func (r Rating) Valid() bool {
	return r == RatingHelpful || r == RatingNotHelpful
}

// Record is one feedback entry
type Record struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id,omitempty"`
	ValidationScore float64   `json:"validation_score"`
	Rating          Rating    `json:"rating"`
	Comment         string    `json:"comment,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Config holds configuration for feedback logging
type Config struct {
	StorageType string `json:"storage_type"` // file, sqlite or postgres
	FilePath    string `json:"file_path"`
	DBPath      string `json:"db_path"`
	PostgresDSN string `json:"postgres_dsn"`
}

// Logger handles feedback logging to various storage backends
type Logger struct {
	config  Config
	logger  *zap.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
	mu      sync.RWMutex
}

// NewLogger creates a new feedback logger
func NewLogger(config Config, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fl := &Logger{
		config: config,
		logger: logger,
	}

	switch config.StorageType {
	case StorageTypeFile:
		if err := fl.initFileStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
	case StorageTypeSQLite:
		if err := fl.initSQLiteStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	case StorageTypePostgres:
		if err := fl.initPostgresStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	return fl, nil
}

// statementBuilder returns a squirrel builder with the placeholder style of
// the storage type
func statementBuilder(storageType string) sq.StatementBuilderType {
	if storageType == StorageTypePostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (fl *Logger) initFileStorage() error {
	if fl.config.FilePath == "" {
		return errors.New("file path is required")
	}
	dir := filepath.Dir(fl.config.FilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback directory: %w", err)
	}

	file, err := os.OpenFile(fl.config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create feedback file: %w", err)
	}
	return file.Close()
}

func (fl *Logger) initSQLiteStorage() error {
	if fl.config.DBPath == "" {
		return errors.New("database path is required")
	}
	dir := filepath.Dir(fl.config.DBPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fl.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			validation_score REAL NOT NULL,
			rating TEXT NOT NULL,
			comment TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	fl.db = db
	fl.builder = statementBuilder(StorageTypeSQLite)
	return nil
}

func (fl *Logger) initPostgresStorage() error {
	if fl.config.PostgresDSN == "" {
		return errors.New("postgres DSN is required")
	}

	db, err := sql.Open("postgres", fl.config.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to open Postgres database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			validation_score DOUBLE PRECISION NOT NULL,
			rating TEXT NOT NULL,
			comment TEXT,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	fl.db = db
	fl.builder = statementBuilder(StorageTypePostgres)
	return nil
}

// Record validates and stores a feedback entry. ID and Timestamp are
// assigned when empty.
func (fl *Logger) Record(ctx context.Context, record Record) (Record, error) {
	if !record.Rating.Valid() {
		return Record{}, ErrInvalidRating
	}
	if utf8.RuneCountInString(record.Comment) > maxCommentLength {
		return Record{}, ErrCommentTooLong
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	var err error
	if fl.config.StorageType == StorageTypeFile {
		err = fl.logToFile(record)
	} else {
		err = fl.logToDB(ctx, record)
	}
	if err != nil {
		return Record{}, err
	}

	fl.logger.Info("Feedback recorded",
		zap.String("id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("rating", string(record.Rating)),
		zap.String("storage", fl.config.StorageType))
	return record, nil
}

func (fl *Logger) logToFile(record Record) error {
	file, err := os.OpenFile(fl.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open feedback file: %w", err)
	}
	defer func() { _ = file.Close() }()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	if _, err := file.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write feedback to file: %w", err)
	}
	return nil
}

func (fl *Logger) insertQuery(record Record) (string, []interface{}, error) {
	return fl.builder.
		Insert(tableName).
		Columns("id", "session_id", "validation_score", "rating", "comment", "timestamp").
		Values(record.ID, record.SessionID, record.ValidationScore, string(record.Rating), record.Comment, record.Timestamp).
		ToSql()
}

func (fl *Logger) logToDB(ctx context.Context, record Record) error {
	if fl.db == nil {
		return errors.New("feedback database not initialized")
	}
	query, args, err := fl.insertQuery(record)
	if err != nil {
		return fmt.Errorf("failed to build feedback insert: %w", err)
	}
	if _, err := fl.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit of zero or less
// uses a default page size.
func (fl *Logger) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	fl.mu.RLock()
	defer fl.mu.RUnlock()

	if fl.config.StorageType == StorageTypeFile {
		records, err := fl.readFile()
		if err != nil {
			return nil, err
		}
		slices.Reverse(records)
		if len(records) > limit {
			records = records[:limit]
		}
		return records, nil
	}

	query, args, err := fl.builder.
		Select("id", "session_id", "validation_score", "rating", "comment", "timestamp").
		From(tableName).
		OrderBy("timestamp DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feedback query: %w", err)
	}

	rows, err := fl.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var record Record
		var sessionID, comment sql.NullString
		var rating string
		if err := rows.Scan(&record.ID, &sessionID, &record.ValidationScore, &rating, &comment, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		record.SessionID = sessionID.String
		record.Comment = comment.String
		record.Rating = Rating(rating)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	return records, nil
}

// Stats returns the number of records per rating
func (fl *Logger) Stats(ctx context.Context) (map[Rating]int, error) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	stats := map[Rating]int{RatingHelpful: 0, RatingNotHelpful: 0}

	if fl.config.StorageType == StorageTypeFile {
		records, err := fl.readFile()
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			stats[record.Rating]++
		}
		return stats, nil
	}

	query, args, err := fl.builder.
		Select("rating", "COUNT(*)").
		From(tableName).
		GroupBy("rating").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feedback stats query: %w", err)
	}

	rows, err := fl.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rating string
		var count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats row: %w", err)
		}
		stats[Rating(rating)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback stats rows: %w", err)
	}
	return stats, nil
}

// readFile loads every record from the JSON lines file; mu must be held
func (fl *Logger) readFile() ([]Record, error) {
	file, err := os.Open(fl.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			fl.logger.Warn("Skipping malformed feedback line", zap.Int("line", line), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback file: %w", err)
	}
	return records, nil
}

// Ping checks that the backing store is reachable
func (fl *Logger) Ping(ctx context.Context) error {
	if fl.config.StorageType == StorageTypeFile {
		_, err := os.Stat(fl.config.FilePath)
		return err
	}
	if fl.db == nil {
		return errors.New("feedback database not initialized")
	}
	return fl.db.PingContext(ctx)
}

// StorageType returns the configured backend name
func (fl *Logger) StorageType() string {
	return fl.config.StorageType
}

// Close closes the feedback logger and any open resources
func (fl *Logger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.db != nil {
		err := fl.db.Close()
		fl.db = nil
		return err
	}
	return nil
}
