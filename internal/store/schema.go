package store

const schema = `
CREATE TABLE IF NOT EXISTS workspace_members (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL,
    handle TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS connected_accounts (
    id TEXT PRIMARY KEY,
    handle TEXT NOT NULL,
    provider TEXT NOT NULL,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    account_owner_id TEXT NOT NULL,
    scopes TEXT NOT NULL DEFAULT '',
    workspace_id TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(workspace_id, handle, account_owner_id)
);

CREATE TABLE IF NOT EXISTS message_channels (
    id TEXT PRIMARY KEY,
    connected_account_id TEXT NOT NULL REFERENCES connected_accounts(id) ON DELETE CASCADE,
    type TEXT NOT NULL DEFAULT 'EMAIL',
    handle TEXT NOT NULL,
    visibility TEXT NOT NULL DEFAULT 'SHARE_EVERYTHING',
    sync_status TEXT,
    sync_stage TEXT NOT NULL DEFAULT 'FULL_MESSAGE_LIST_FETCH_PENDING',
    sync_cursor TEXT NOT NULL DEFAULT '',
    sync_stage_started_at DATETIME,
    workspace_id TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS accounts_to_reconnect (
    user_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, workspace_id, account_id)
);

CREATE TABLE IF NOT EXISTS archived_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id TEXT NOT NULL REFERENCES message_channels(id) ON DELETE CASCADE,
    folder TEXT NOT NULL,
    uid INTEGER NOT NULL,
    message_id TEXT,
    thread_key TEXT,
    subject TEXT,
    body_text TEXT,
    received_at DATETIME,
    participants TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(channel_id, folder, uid)
);

CREATE INDEX IF NOT EXISTS idx_accounts_owner ON connected_accounts(workspace_id, account_owner_id);
CREATE INDEX IF NOT EXISTS idx_channels_account ON message_channels(connected_account_id);
CREATE INDEX IF NOT EXISTS idx_archived_channel ON archived_messages(channel_id);
CREATE INDEX IF NOT EXISTS idx_archived_thread ON archived_messages(thread_key);
`
