package storage

const schema = `
-- The 'cards' table stores every vocabulary card and its review state.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL, -- insertion order of the card set
    english TEXT NOT NULL,
    target TEXT NOT NULL,
    stage INTEGER NOT NULL DEFAULT 0, -- 0-3: Apprentice, 4-5: Guru, 6: Master, 7: Enlightened, 8: Burned
    next_review DATETIME, -- NULL: never reviewed, or burned
    last_review_failures INTEGER NOT NULL DEFAULT 0,

    UNIQUE(english, target)
);

-- The 'meta' table records whether the card set was ever saved, so an empty
-- saved set can be told apart from a new database.
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
