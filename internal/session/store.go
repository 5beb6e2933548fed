// Хранилище сессий матчинга: конфиг, обе таблицы, результаты и undo-журнал.
// Ядро линкера про сессии не знает — вся история решений живёт здесь.
package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"concorde-service/internal/linkage/model"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Config    model.MatchConfig   `json:"config"`
	Source    *model.Table        `json:"source"`
	Target    *model.Table        `json:"target"`
	Results   []model.MatchResult `json:"results"`
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// запись в sqlite всё равно сериализуется
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect session db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			created_at   TEXT NOT NULL,
			config       TEXT NOT NULL,
			source_table TEXT NOT NULL,
			target_table TEXT NOT NULL,
			results      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS undo_log (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id    TEXT NOT NULL,
			target_row_id INTEGER NOT NULL,
			prev_chosen   INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_undo_session ON undo_log(session_id);
	`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Create сохраняет новую сессию; пустой ID генерируется.
func (s *Store) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	cfg, err := json.Marshal(sess.Config)
	if err != nil {
		return err
	}
	src, err := json.Marshal(sess.Source)
	if err != nil {
		return err
	}
	tgt, err := json.Marshal(sess.Target)
	if err != nil {
		return err
	}
	res, err := json.Marshal(sess.Results)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, created_at, config, source_table, target_table, results) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CreatedAt.Format(time.RFC3339Nano), string(cfg), string(src), string(tgt), string(res),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*Session, error) {
	var (
		createdAt              string
		cfg, src, tgt, results string
	)
	err := s.db.QueryRow(
		`SELECT created_at, config, source_table, target_table, results FROM sessions WHERE id = ?`, id,
	).Scan(&createdAt, &cfg, &src, &tgt, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	sess := &Session{ID: id}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if err := json.Unmarshal([]byte(cfg), &sess.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal([]byte(src), &sess.Source); err != nil {
		return nil, fmt.Errorf("decode source table: %w", err)
	}
	if err := json.Unmarshal([]byte(tgt), &sess.Target); err != nil {
		return nil, fmt.Errorf("decode target table: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &sess.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateResults(id string, results []model.MatchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE sessions SET results = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("update results: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PushUndo запоминает прежний выбор строки перед применением решения.
func (s *Store) PushUndo(sessionID string, targetRowID int, prevChosen *int) error {
	var prev sql.NullInt64
	if prevChosen != nil {
		prev = sql.NullInt64{Int64: int64(*prevChosen), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO undo_log (session_id, target_row_id, prev_chosen) VALUES (?, ?, ?)`,
		sessionID, targetRowID, prev,
	)
	return err
}

// PopUndo снимает последнюю запись undo-журнала сессии.
// ok=false — журнал пуст.
func (s *Store) PopUndo(sessionID string) (targetRowID int, prevChosen *int, ok bool, err error) {
	var (
		seq  int64
		prev sql.NullInt64
	)
	err = s.db.QueryRow(
		`SELECT seq, target_row_id, prev_chosen FROM undo_log WHERE session_id = ? ORDER BY seq DESC LIMIT 1`,
		sessionID,
	).Scan(&seq, &targetRowID, &prev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("pop undo: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM undo_log WHERE seq = ?`, seq); err != nil {
		return 0, nil, false, fmt.Errorf("pop undo: %w", err)
	}
	if prev.Valid {
		v := int(prev.Int64)
		prevChosen = &v
	}
	return targetRowID, prevChosen, true, nil
}
