package history

const schema = `
CREATE TABLE IF NOT EXISTS run_results (
    id              TEXT PRIMARY KEY,
    run_id          TEXT NOT NULL,
    template        TEXT NOT NULL,
    run_date        TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    ticket_sys_id   TEXT NOT NULL DEFAULT '',
    ticket_number   TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    attached        INTEGER NOT NULL DEFAULT 0,
    omitted         INTEGER NOT NULL DEFAULT 0,
    failed_required INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_results_template_date
    ON run_results(template, run_date);
`

const queryInsertResult = `
INSERT INTO run_results (id, run_id, template, run_date, outcome, ticket_sys_id, ticket_number, error, attached, omitted, failed_required, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const queryCreatedOn = `
SELECT COUNT(*) FROM run_results
WHERE template = ? AND run_date = ? AND outcome = 'created'
`

const queryRecent = `
SELECT id, run_id, template, run_date, outcome, ticket_sys_id, ticket_number, error, attached, omitted, failed_required, created_at
FROM run_results
ORDER BY created_at DESC, id
LIMIT ?
`
