package store

// schemaFor returns the DDL for the given dialect. Only users, sessions,
// rooms and room_members are read/written by the core; the remaining tables
// from spec.md §6.4 are declared so the schema is complete but are not given
// CRUD beyond what's needed to satisfy foreign keys — their REST surface is
// out of scope per spec.md §1.
func schemaFor(dialect string) string {
	autoIncrement := "INTEGER PRIMARY KEY AUTOINCREMENT"
	timestamp := "TIMESTAMP"
	boolean := "BOOLEAN"
	if dialect == "postgres" {
		autoIncrement = "BIGSERIAL PRIMARY KEY"
		timestamp = "TIMESTAMPTZ"
		boolean = "BOOLEAN"
	}

	return `
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    username TEXT,
    display_name TEXT NOT NULL,
    game_nickname TEXT UNIQUE,
    referral_code TEXT UNIQUE,
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    updated_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
    token_hash TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    expires_at ` + timestamp + ` NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS wallets (
    user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    stars INTEGER NOT NULL DEFAULT 0,
    crystals INTEGER NOT NULL DEFAULT 0,
    plasma INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id ` + autoIncrement + `,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    type TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount INTEGER NOT NULL,
    meta TEXT,
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_entries(user_id);

CREATE TABLE IF NOT EXISTS campaign_progress (
    user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    progress TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    settings TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS user_name_limits (
    user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    last_rename_at ` + timestamp + `
);

CREATE TABLE IF NOT EXISTS friend_edges (
    user_id_a TEXT NOT NULL REFERENCES users(user_id),
    user_id_b TEXT NOT NULL REFERENCES users(user_id),
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id_a, user_id_b)
);

CREATE TABLE IF NOT EXISTS friend_requests (
    id ` + autoIncrement + `,
    from_user_id TEXT NOT NULL REFERENCES users(user_id),
    to_user_id TEXT NOT NULL REFERENCES users(user_id),
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    updated_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_user_id);

CREATE TABLE IF NOT EXISTS rooms (
    room_code TEXT PRIMARY KEY,
    owner_user_id TEXT NOT NULL REFERENCES users(user_id),
    name TEXT,
    capacity INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'OPEN',
    phase TEXT NOT NULL DEFAULT 'LOBBY',
    is_public ` + boolean + ` NOT NULL DEFAULT 0,
    has_password ` + boolean + ` NOT NULL DEFAULT 0,
    password_hash TEXT,
    password_salt TEXT,
    started_at ` + timestamp + `,
    started_by_user_id TEXT,
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rooms_public ON rooms(is_public, status);

CREATE TABLE IF NOT EXISTS room_members (
    room_code TEXT NOT NULL REFERENCES rooms(room_code),
    user_id TEXT NOT NULL REFERENCES users(user_id),
    joined_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    ready ` + boolean + ` NOT NULL DEFAULT 0,
    PRIMARY KEY (room_code, user_id)
);

CREATE TABLE IF NOT EXISTS leaderboard_scores (
    user_id TEXT NOT NULL REFERENCES users(user_id),
    mode TEXT NOT NULL,
    score INTEGER NOT NULL,
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_mode ON leaderboard_scores(mode, score);

CREATE TABLE IF NOT EXISTS leaderboard_team_scores (
    room_code TEXT NOT NULL,
    score INTEGER NOT NULL,
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS leaderboard_submit_limits (
    user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    last_submit_at ` + timestamp + `
);

CREATE TABLE IF NOT EXISTS store_items (
    sku TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price_currency TEXT NOT NULL,
    price_amount INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS store_ownership (
    user_id TEXT NOT NULL REFERENCES users(user_id),
    sku TEXT NOT NULL REFERENCES store_items(sku),
    acquired_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, sku)
);

CREATE TABLE IF NOT EXISTS purchase_intents (
    id ` + autoIncrement + `,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    sku TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS referrals (
    referred_user_id TEXT PRIMARY KEY REFERENCES users(user_id),
    referrer_user_id TEXT NOT NULL REFERENCES users(user_id),
    redeemed_at ` + timestamp + ` DEFAULT CURRENT_TIMESTAMP
);
`
}
