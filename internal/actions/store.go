package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists actions in SQLite. It creates its own table on
// initialization and is safe for concurrent use; transitions are
// single atomic UPDATEs guarded by the current status, so two racing
// decisions on the same action resolve to exactly one winner.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates an action store using the given database connection
// and creates the actions table if it does not already exist.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With("component", "actions")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("action store migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			tool_name       TEXT NOT NULL,
			input_params    TEXT NOT NULL,
			status          TEXT NOT NULL,
			result          TEXT,
			error           TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_actions_user_status
			ON actions(user_id, status);
		CREATE INDEX IF NOT EXISTS idx_actions_user_created
			ON actions(user_id, created_at DESC);
	`)
	return err
}

const actionColumns = `id, user_id, conversation_id, tool_name, input_params,
	status, result, error, created_at, updated_at`

// Create inserts a new pending action and returns it with its assigned
// ID and timestamps.
func (s *Store) Create(ctx context.Context, userID, conversationID, toolName string, params map[string]any) (*Action, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate action id: %w", err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal input params: %w", err)
	}

	now := time.Now().UTC()
	action := &Action{
		ID:             id.String(),
		UserID:         userID,
		ConversationID: conversationID,
		ToolName:       toolName,
		InputParams:    params,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		action.ID, action.UserID, action.ConversationID, action.ToolName,
		string(paramsJSON), string(action.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}

	s.logger.Info("action staged",
		"action_id", action.ID,
		"user_id", userID,
		"tool", toolName)
	return action, nil
}

// Get retrieves an action by ID.
func (s *Store) Get(ctx context.Context, id string) (*Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)

	action, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get action %s: %w", id, err)
	}
	return action, nil
}

// ListPending returns a user's pending actions, oldest first, so a
// review surface shows them in the order they were proposed.
func (s *Store) ListPending(ctx context.Context, userID string) ([]*Action, error) {
	return s.list(ctx, `
		SELECT `+actionColumns+` FROM actions
		WHERE user_id = ? AND status = ?
		ORDER BY created_at ASC`, userID, string(StatusPending))
}

// ListRecent returns a user's most recent actions across all statuses,
// newest first. If limit is 0 a default of 50 is used.
func (s *Store) ListRecent(ctx context.Context, userID string, limit int) ([]*Action, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `
		SELECT `+actionColumns+` FROM actions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var result []*Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		result = append(result, action)
	}
	return result, rows.Err()
}

// Transition atomically moves an action from one of the given statuses
// to a new status, recording an optional result or error message. The
// update is a single guarded statement: if the action is no longer in
// an allowed source status, nothing changes and a ConflictError is
// returned; if the action does not exist, a NotFoundError is returned.
func (s *Store) Transition(ctx context.Context, id string, from []Status, to Status, result map[string]any, errMsg string) (*Action, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transition for action %s: no source statuses", id)
	}
	for _, f := range from {
		if !CanTransition(f, to) {
			return nil, fmt.Errorf("transition for action %s: %s -> %s is not a valid edge", id, f, to)
		}
	}

	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	placeholders := strings.Repeat("?, ", len(from)-1) + "?"
	args := []any{
		string(to), resultJSON, nullable(errMsg),
		time.Now().UTC().Format(time.RFC3339Nano), id,
	}
	for _, f := range from {
		args = append(args, string(f))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE actions
		SET status = ?, result = ?, error = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("transition action %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition action %s: rows affected: %w", id, err)
	}

	if affected == 0 {
		// Distinguish "doesn't exist" from "already decided".
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &ConflictError{ID: id, Current: current.Status, Attempted: to}
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("action transitioned",
		"action_id", id,
		"status", to,
		"tool", updated.ToolName)
	return updated, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanAction(sc scanner) (*Action, error) {
	var a Action
	var paramsJSON string
	var status string
	var resultJSON, errStr sql.NullString
	var createdAt, updatedAt string

	err := sc.Scan(
		&a.ID, &a.UserID, &a.ConversationID, &a.ToolName, &paramsJSON,
		&status, &resultJSON, &errStr, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = Status(status)
	a.Error = errStr.String

	if err := json.Unmarshal([]byte(paramsJSON), &a.InputParams); err != nil {
		return nil, fmt.Errorf("unmarshal input params: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &a.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &a, nil
}
