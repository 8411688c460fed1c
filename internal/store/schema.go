package store

import "time"

// Project is a multi-agent work unit coordinated by a boss agent.
type Project struct {
	ID          int64      `json:"id"`
	ProjectID   string     `json:"project_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProjectAgent is a worker registered under a project.
type ProjectAgent struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	AgentID   string    `json:"agent_id"`
	Task      string    `json:"task"`
	Model     string    `json:"model,omitempty"`
	Status    string    `json:"status"`
	LastWord  string    `json:"last_word,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectMessage is an entry in a project's activity log.
type ProjectMessage struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ApprovalRecord is the audit row for a tool approval request.
type ApprovalRecord struct {
	ID          int64      `json:"id"`
	CallID      string     `json:"call_id"`
	RunID       string     `json:"run_id,omitempty"`
	Tool        string     `json:"tool"`
	Arguments   string     `json:"arguments,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// RunRecord holds per-turn token accounting.
type RunRecord struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"run_id"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Rounds           int       `json:"rounds"`
	ToolCalls        int       `json:"tool_calls"`
	CreatedAt        time.Time `json:"created_at"`
}

const (
	ProjectActive   = "active"
	ProjectComplete = "complete"
	ProjectFailed   = "failed"

	AgentWorking = "working"
	AgentDone    = "done"
	AgentFailed  = "failed"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalDenied   = "denied"
	ApprovalTimeout  = "timeout"

	MessageDelegation = "delegation"
	MessageProgress   = "progress"
	MessageError      = "error"
	MessageResult     = "result"
	MessageInfo       = "info"
)

const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT UNIQUE NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	result TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

CREATE TABLE IF NOT EXISTS project_agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	agent_id TEXT UNIQUE NOT NULL,
	task TEXT,
	model TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'working',
	last_word TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_project_agents_project ON project_agents(project_id);
CREATE INDEX IF NOT EXISTS idx_project_agents_status ON project_agents(status);

CREATE TABLE IF NOT EXISTS project_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	agent_id TEXT DEFAULT '',
	kind TEXT NOT NULL,
	content TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_project_messages_project ON project_messages(project_id);
CREATE INDEX IF NOT EXISTS idx_project_messages_kind ON project_messages(kind);

CREATE TABLE IF NOT EXISTS approval_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	call_id TEXT UNIQUE NOT NULL,
	run_id TEXT DEFAULT '',
	tool TEXT NOT NULL,
	arguments TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	responded_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_approval_status ON approval_requests(status);
CREATE INDEX IF NOT EXISTS idx_approval_call ON approval_requests(call_id);

CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT UNIQUE NOT NULL,
	model TEXT DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	rounds INTEGER NOT NULL DEFAULT 0,
	tool_calls INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_run ON runs(run_id);
`
