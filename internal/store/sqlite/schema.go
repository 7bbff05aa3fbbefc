package sqlite

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	subject    TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forms (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS questions (
	id       TEXT PRIMARY KEY,
	form_id  TEXT NOT NULL,
	text     TEXT NOT NULL DEFAULT '',
	kind     TEXT NOT NULL DEFAULT 'texto',
	position INTEGER NOT NULL DEFAULT 0,
	required BOOLEAN NOT NULL DEFAULT 0,
	options  TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (form_id) REFERENCES forms(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS responses (
	id         TEXT PRIMARY KEY,
	form_id    TEXT NOT NULL,
	answers    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (form_id) REFERENCES forms(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_questions_form ON questions(form_id, position);
CREATE INDEX IF NOT EXISTS idx_responses_form ON responses(form_id, id DESC);
`

// Migrate applies the schema. It is safe to run on an existing database.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
