// Package store persists projects, approvals, and run accounting in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateProject inserts a new active project.
func (s *Store) CreateProject(projectID, description string) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (project_id, description, status) VALUES (?, ?, ?)`,
		projectID, description, ProjectActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject returns the project with the given id.
func (s *Store) GetProject(projectID string) (*Project, error) {
	row := s.db.QueryRow(
		`SELECT id, project_id, description, status, result, created_at, updated_at, completed_at
		 FROM projects WHERE project_id = ?`, projectID)
	var p Project
	var completed sql.NullTime
	err := row.Scan(&p.ID, &p.ProjectID, &p.Description, &p.Status, &p.Result, &p.CreatedAt, &p.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if completed.Valid {
		p.CompletedAt = &completed.Time
	}
	return &p, nil
}

// CompleteProject marks a project finished with the given status and result.
func (s *Store) CompleteProject(projectID, status, result string) error {
	_, err := s.db.Exec(
		`UPDATE projects SET status = ?, result = ?, updated_at = CURRENT_TIMESTAMP, completed_at = CURRENT_TIMESTAMP
		 WHERE project_id = ?`, status, result, projectID)
	if err != nil {
		return fmt.Errorf("failed to complete project: %w", err)
	}
	return nil
}

// AddAgent registers a worker under a project.
func (s *Store) AddAgent(projectID, agentID, task, model string) error {
	_, err := s.db.Exec(
		`INSERT INTO project_agents (project_id, agent_id, task, model, status) VALUES (?, ?, ?, ?, ?)`,
		projectID, agentID, task, model, AgentWorking,
	)
	if err != nil {
		return fmt.Errorf("failed to add agent: %w", err)
	}
	return nil
}

// UpdateAgentStatus sets a worker's status and last reported word.
func (s *Store) UpdateAgentStatus(agentID, status, lastWord string) error {
	res, err := s.db.Exec(
		`UPDATE project_agents SET status = ?, last_word = ?, updated_at = CURRENT_TIMESTAMP WHERE agent_id = ?`,
		status, lastWord, agentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown agent %q", agentID)
	}
	return nil
}

// GetAgent returns the worker with the given agent id.
func (s *Store) GetAgent(agentID string) (*ProjectAgent, error) {
	row := s.db.QueryRow(
		`SELECT id, project_id, agent_id, task, model, status, last_word, created_at, updated_at
		 FROM project_agents WHERE agent_id = ?`, agentID)
	var a ProjectAgent
	err := row.Scan(&a.ID, &a.ProjectID, &a.AgentID, &a.Task, &a.Model, &a.Status, &a.LastWord, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	return &a, nil
}

// ListAgents returns all workers under a project.
func (s *Store) ListAgents(projectID string) ([]ProjectAgent, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, agent_id, task, model, status, last_word, created_at, updated_at
		 FROM project_agents WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []ProjectAgent
	for rows.Next() {
		var a ProjectAgent
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.AgentID, &a.Task, &a.Model, &a.Status, &a.LastWord, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// AddMessage appends an entry to a project's activity log.
func (s *Store) AddMessage(projectID, agentID, kind, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO project_messages (project_id, agent_id, kind, content) VALUES (?, ?, ?, ?)`,
		projectID, agentID, kind, content,
	)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent entries of a project's log, oldest first.
func (s *Store) ListMessages(projectID string, limit int) ([]ProjectMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, project_id, agent_id, kind, content, created_at FROM (
			SELECT id, project_id, agent_id, kind, content, created_at
			FROM project_messages WHERE project_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []ProjectMessage
	for rows.Next() {
		var m ProjectMessage
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.AgentID, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordApproval inserts a pending approval audit row.
func (s *Store) RecordApproval(callID, runID, tool, arguments string) error {
	_, err := s.db.Exec(
		`INSERT INTO approval_requests (call_id, run_id, tool, arguments, status) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO NOTHING`,
		callID, runID, tool, arguments, ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("failed to record approval: %w", err)
	}
	return nil
}

// ResolveApproval moves a pending approval row to a terminal status.
func (s *Store) ResolveApproval(callID, status string) error {
	_, err := s.db.Exec(
		`UPDATE approval_requests SET status = ?, responded_at = CURRENT_TIMESTAMP
		 WHERE call_id = ? AND status = ?`, status, callID, ApprovalPending)
	if err != nil {
		return fmt.Errorf("failed to resolve approval: %w", err)
	}
	return nil
}

// GetApproval returns the audit row for a call id.
func (s *Store) GetApproval(callID string) (*ApprovalRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, call_id, run_id, tool, arguments, status, created_at, responded_at
		 FROM approval_requests WHERE call_id = ?`, callID)
	var r ApprovalRecord
	var responded sql.NullTime
	err := row.Scan(&r.ID, &r.CallID, &r.RunID, &r.Tool, &r.Arguments, &r.Status, &r.CreatedAt, &responded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval: %w", err)
	}
	if responded.Valid {
		r.RespondedAt = &responded.Time
	}
	return &r, nil
}

// ExpireStaleApprovals marks pending approvals older than maxAge as timed
// out. Intended to run once on startup.
func (s *Store) ExpireStaleApprovals(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	res, err := s.db.Exec(
		`UPDATE approval_requests SET status = ?, responded_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND created_at < ?`, ApprovalTimeout, ApprovalPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire approvals: %w", err)
	}
	return res.RowsAffected()
}

// RecordRun upserts the token accounting for a turn.
func (s *Store) RecordRun(rec RunRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, model, prompt_tokens, completion_tokens, total_tokens, rounds, tool_calls)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			model = excluded.model,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens,
			total_tokens = excluded.total_tokens,
			rounds = excluded.rounds,
			tool_calls = excluded.tool_calls`,
		rec.RunID, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Rounds, rec.ToolCalls,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// GetRun returns the accounting row for a run id.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, model, prompt_tokens, completion_tokens, total_tokens, rounds, tool_calls, created_at
		 FROM runs WHERE run_id = ?`, runID)
	var r RunRecord
	err := row.Scan(&r.ID, &r.RunID, &r.Model, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Rounds, &r.ToolCalls, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &r, nil
}
