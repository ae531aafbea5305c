package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    content     TEXT NOT NULL,
    is_user     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    model       TEXT,
    token_count INTEGER,
    cost        REAL
);

CREATE TABLE IF NOT EXISTS credentials (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    api_key     TEXT NOT NULL,
    provider    TEXT NOT NULL,
    pin_hash    TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
`
