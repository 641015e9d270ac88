package postgres

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

const schema = `
CREATE TABLE IF NOT EXISTS section (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	ord        INT  NOT NULL,
	audience   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS section_subject_idx ON section (subject_id, ord);

CREATE TABLE IF NOT EXISTS item (
	id           TEXT PRIMARY KEY,
	section_id   TEXT NOT NULL REFERENCES section (id) ON DELETE CASCADE,
	ord          INT  NOT NULL,
	audience     TEXT NOT NULL,
	kind         TEXT NOT NULL,
	label        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	window_start TIMESTAMPTZ,
	window_end   TIMESTAMPTZ,
	has_window   BOOLEAN NOT NULL DEFAULT FALSE,
	file_url     TEXT NOT NULL DEFAULT '',
	file_name    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS item_section_idx ON item (section_id, ord);

CREATE TABLE IF NOT EXISTS submission (
	id             TEXT PRIMARY KEY,
	item_id        TEXT NOT NULL REFERENCES item (id) ON DELETE CASCADE,
	submitter_id   TEXT NOT NULL,
	submitter_name TEXT NOT NULL,
	file_url       TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	file_size      BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	review_note    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS submission_item_idx ON submission (item_id, created_at);
`

// Store persists the content tree and submissions in PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func Open(conf *core.Config) (*Store, error) {
	q := make(url.Values)
	q.Set("sslmode", "disable")
	q.Set("timezone", "utc")
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}

	db, err := sqlx.Connect("postgres", u.String())
	if err != nil {
		return nil, errors.Wrap(err, "connecting")
	}
	if _, err = db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "bootstrapping schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type (
	sectionRow struct {
		ID        string `db:"id"`
		SubjectID string `db:"subject_id"`
		Title     string `db:"title"`
		Ord       int    `db:"ord"`
		Audience  string `db:"audience"`
	}

	itemRow struct {
		ID          string    `db:"id"`
		SectionID   string    `db:"section_id"`
		Ord         int       `db:"ord"`
		Audience    string    `db:"audience"`
		Kind        string    `db:"kind"`
		Label       string    `db:"label"`
		Content     string    `db:"content"`
		WindowStart null.Time `db:"window_start"`
		WindowEnd   null.Time `db:"window_end"`
		HasWindow   bool      `db:"has_window"`
		FileURL     string    `db:"file_url"`
		FileName    string    `db:"file_name"`
	}

	submissionRow struct {
		ID            string    `db:"id"`
		ItemID        string    `db:"item_id"`
		SubmitterID   string    `db:"submitter_id"`
		SubmitterName string    `db:"submitter_name"`
		FileURL       string    `db:"file_url"`
		FileName      string    `db:"file_name"`
		FileSize      int64     `db:"file_size"`
		Status        string    `db:"status"`
		ReviewNote    string    `db:"review_note"`
		CreatedAt     time.Time `db:"created_at"`
	}
)

func (r sectionRow) section() content.Section {
	return content.Section{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		Title:     r.Title,
		Order:     r.Ord,
		Audience:  content.Audience(r.Audience),
		Items:     []content.Item{},
	}
}

func (r itemRow) item() content.Item {
	it := content.Item{
		ID:        r.ID,
		SectionID: r.SectionID,
		Order:     r.Ord,
		Audience:  content.Audience(r.Audience),
		Kind:      content.Kind(r.Kind),
		Label:     r.Label,
		Content:   r.Content,
	}
	if r.HasWindow {
		it.Window = &content.Window{StartAt: r.WindowStart, EndAt: r.WindowEnd}
	}
	if r.Kind == string(content.KindFileLink) {
		it.File = &content.FileRef{URL: r.FileURL, Name: r.FileName}
	}
	return it
}

func itemToRow(it content.Item) itemRow {
	r := itemRow{
		ID:        it.ID,
		SectionID: it.SectionID,
		Ord:       it.Order,
		Audience:  string(it.Audience),
		Kind:      string(it.Kind),
		Label:     it.Label,
		Content:   it.Content,
	}
	if it.Window != nil {
		r.HasWindow = true
		r.WindowStart = it.Window.StartAt
		r.WindowEnd = it.Window.EndAt
	}
	if it.File != nil {
		r.FileURL = it.File.URL
		r.FileName = it.File.Name
	}
	return r
}

func (r submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:         r.ID,
		ItemID:     r.ItemID,
		Submitter:  submission.Submitter{ID: r.SubmitterID, Name: r.SubmitterName},
		File:       core.Blob{URL: r.FileURL, Name: r.FileName, Size: r.FileSize},
		Status:     submission.Status(r.Status),
		ReviewNote: r.ReviewNote,
		CreatedAt:  r.CreatedAt,
	}
}

func (s *Store) GetTree(subjectID string) ([]content.Section, error) {
	var secRows []sectionRow
	if err := s.db.Select(&secRows, "SELECT * FROM section WHERE subject_id = $1 ORDER BY ord", subjectID); err != nil {
		return nil, errors.Wrap(err, "selecting sections")
	}
	if len(secRows) == 0 {
		return nil, core.ErrNotFound
	}

	sections := make([]content.Section, 0, len(secRows))
	for _, sr := range secRows {
		sec := sr.section()
		var itRows []itemRow
		if err := s.db.Select(&itRows, "SELECT * FROM item WHERE section_id = $1 ORDER BY ord", sr.ID); err != nil {
			return nil, errors.Wrap(err, "selecting items")
		}
		for _, ir := range itRows {
			sec.Items = append(sec.Items, ir.item())
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func (s *Store) CreateSection(subjectID string, sec content.Section) (content.Section, error) {
	sec.ID = uuid.New().String()
	sec.SubjectID = subjectID
	sec.Items = []content.Item{}
	if sec.Order == 0 {
		if err := s.db.Get(&sec.Order, "SELECT COALESCE(MAX(ord), 0) + 1 FROM section WHERE subject_id = $1", subjectID); err != nil {
			return content.Section{}, errors.Wrap(err, "assigning order")
		}
	}
	_, err := s.db.Exec(
		"INSERT INTO section (id, subject_id, title, ord, audience) VALUES ($1, $2, $3, $4, $5)",
		sec.ID, sec.SubjectID, sec.Title, sec.Order, string(sec.Audience),
	)
	if err != nil {
		return content.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (s *Store) UpdateSection(id string, us content.UpdateSection) (content.Section, error) {
	var row sectionRow
	if err := s.db.Get(&row, "SELECT * FROM section WHERE id = $1", id); err != nil {
		return content.Section{}, mapSQLErr(err, "selecting section")
	}
	sec := row.section()
	us.ApplyTo(&sec)
	_, err := s.db.Exec(
		"UPDATE section SET title = $2, audience = $3 WHERE id = $1",
		id, sec.Title, string(sec.Audience),
	)
	if err != nil {
		return content.Section{}, errors.Wrap(err, "updating section")
	}
	return sec, nil
}

func (s *Store) DeleteSection(id string) error {
	var subjectID string
	if err := s.db.Get(&subjectID, "SELECT subject_id FROM section WHERE id = $1", id); err != nil {
		return mapSQLErr(err, "selecting section")
	}
	if _, err := s.db.Exec("DELETE FROM section WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return s.compactSections(subjectID)
}

func (s *Store) ReorderSections(subjectID string, orderedIDs []string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range orderedIDs {
		res, err := tx.Exec("UPDATE section SET ord = $2 WHERE id = $1 AND subject_id = $3", id, i+1, subjectID)
		if err != nil {
			return errors.Wrap(err, "updating order")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrap(core.ErrNotFound, id)
		}
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (s *Store) CreateItem(sectionID string, it content.Item) (content.Item, error) {
	var exists bool
	if err := s.db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM section WHERE id = $1)", sectionID); err != nil {
		return content.Item{}, errors.Wrap(err, "checking section")
	}
	if !exists {
		return content.Item{}, errors.Wrap(core.ErrNotFound, sectionID)
	}

	it.ID = uuid.New().String()
	it.SectionID = sectionID
	it.Sanitize()
	if it.Order == 0 {
		if err := s.db.Get(&it.Order, "SELECT COALESCE(MAX(ord), 0) + 1 FROM item WHERE section_id = $1", sectionID); err != nil {
			return content.Item{}, errors.Wrap(err, "assigning order")
		}
	}
	r := itemToRow(it)
	_, err := s.db.NamedExec(`
		INSERT INTO item (id, section_id, ord, audience, kind, label, content, window_start, window_end, has_window, file_url, file_name)
		VALUES (:id, :section_id, :ord, :audience, :kind, :label, :content, :window_start, :window_end, :has_window, :file_url, :file_name)`,
		r,
	)
	if err != nil {
		return content.Item{}, errors.Wrap(err, "inserting item")
	}
	return it, nil
}

func (s *Store) UpdateItem(id string, ui content.UpdateItem) (content.Item, error) {
	var row itemRow
	if err := s.db.Get(&row, "SELECT * FROM item WHERE id = $1", id); err != nil {
		return content.Item{}, mapSQLErr(err, "selecting item")
	}
	it := row.item()
	ui.ApplyTo(&it)
	r := itemToRow(it)
	_, err := s.db.NamedExec(`
		UPDATE item SET audience = :audience, kind = :kind, label = :label, content = :content,
			window_start = :window_start, window_end = :window_end, has_window = :has_window,
			file_url = :file_url, file_name = :file_name
		WHERE id = :id`,
		r,
	)
	if err != nil {
		return content.Item{}, errors.Wrap(err, "updating item")
	}
	return it, nil
}

func (s *Store) DeleteItem(id string) error {
	var sectionID string
	if err := s.db.Get(&sectionID, "SELECT section_id FROM item WHERE id = $1", id); err != nil {
		return mapSQLErr(err, "selecting item")
	}
	if _, err := s.db.Exec("DELETE FROM item WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting item")
	}
	return s.compactItems(sectionID)
}

func (s *Store) ReorderItems(sectionID string, orderedIDs []string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range orderedIDs {
		res, err := tx.Exec("UPDATE item SET ord = $2 WHERE id = $1 AND section_id = $3", id, i+1, sectionID)
		if err != nil {
			return errors.Wrap(err, "updating order")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrap(core.ErrNotFound, id)
		}
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (s *Store) GetSection(id string) (content.Section, error) {
	var row sectionRow
	if err := s.db.Get(&row, "SELECT * FROM section WHERE id = $1", id); err != nil {
		return content.Section{}, mapSQLErr(err, "selecting section")
	}
	return row.section(), nil
}

func (s *Store) GetItem(id string) (content.Item, error) {
	var row itemRow
	if err := s.db.Get(&row, "SELECT * FROM item WHERE id = $1", id); err != nil {
		return content.Item{}, mapSQLErr(err, "selecting item")
	}
	return row.item(), nil
}

func (s *Store) ListSubmissions(itemID string) ([]submission.Submission, error) {
	var rows []submissionRow
	if err := s.db.Select(&rows, "SELECT * FROM submission WHERE item_id = $1 ORDER BY created_at", itemID); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (s *Store) CreateSubmission(sub submission.Submission) (submission.Submission, error) {
	var exists bool
	if err := s.db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM item WHERE id = $1)", sub.ItemID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "checking item")
	}
	if !exists {
		return submission.Submission{}, errors.Wrap(core.ErrNotFound, sub.ItemID)
	}

	sub.ID = uuid.New().String()
	sub.Status = submission.StatusSubmitted
	sub.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO submission (id, item_id, submitter_id, submitter_name, file_url, file_name, file_size, status, review_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.ItemID, sub.Submitter.ID, sub.Submitter.Name,
		sub.File.URL, sub.File.Name, sub.File.Size, string(sub.Status), sub.ReviewNote, sub.CreatedAt,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (s *Store) GetSubmission(id string) (submission.Submission, error) {
	var row submissionRow
	if err := s.db.Get(&row, "SELECT * FROM submission WHERE id = $1", id); err != nil {
		return submission.Submission{}, mapSQLErr(err, "selecting submission")
	}
	return row.submission(), nil
}

func (s *Store) SetSubmissionStatus(id string, status submission.Status, note *string) error {
	var res sql.Result
	var err error
	if note != nil {
		res, err = s.db.Exec("UPDATE submission SET status = $2, review_note = $3 WHERE id = $1", id, string(status), *note)
	} else {
		res, err = s.db.Exec("UPDATE submission SET status = $2 WHERE id = $1", id, string(status))
	}
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrap(core.ErrNotFound, id)
	}
	return nil
}

func (s *Store) DeleteSubmission(id string) error {
	res, err := s.db.Exec("DELETE FROM submission WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrap(core.ErrNotFound, id)
	}
	return nil
}

// compactSections restores a contiguous 1..N order after a delete.
func (s *Store) compactSections(subjectID string) error {
	_, err := s.db.Exec(`
		UPDATE section SET ord = ranked.rn
		FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY ord) AS rn FROM section WHERE subject_id = $1) ranked
		WHERE section.id = ranked.id`,
		subjectID,
	)
	return errors.Wrap(err, "compacting section order")
}

func (s *Store) compactItems(sectionID string) error {
	_, err := s.db.Exec(`
		UPDATE item SET ord = ranked.rn
		FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY ord) AS rn FROM item WHERE section_id = $1) ranked
		WHERE item.id = ranked.id`,
		sectionID,
	)
	return errors.Wrap(err, "compacting item order")
}

func mapSQLErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return errors.Wrap(core.ErrNotFound, msg)
	}
	return errors.Wrap(err, msg)
}
