// Package history 在SQLite中记录每次运行的索引结果
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName 数据库文件名
const DBFileName = "arachas.db"

// DefaultDir 默认数据目录 ($XDG_DATA_HOME/arachas)
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "arachas")
}

// timeLayout 定宽时间格式,保证按文本排序即按时间排序
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run 一次运行的记录
type Run struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration"` // 秒
	Cards     int       `json:"cards"`
	Dropped   int64     `json:"dropped"` // 各阶段丢弃总数
	FirstRun  bool      `json:"first_run"`
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
}

// Store 运行历史数据库
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open 打开或创建 <dir>/arachas.db
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("创建历史目录失败: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开历史数据库失败: %w", err)
	}

	// SQLite 只支持一个写入者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("启用WAL失败: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建数据表失败: %w", err)
	}
	return s, nil
}

// Path 数据库文件路径
func (s *Store) Path() string {
	return s.dbPath
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		cards INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		first_run INTEGER NOT NULL DEFAULT 0,
		added TEXT NOT NULL DEFAULT '[]',
		removed TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Record 写入一条运行记录,返回自增ID
func (s *Store) Record(ctx context.Context, run *Run) (int64, error) {
	added, err := json.Marshal(nonNil(run.Added))
	if err != nil {
		return 0, fmt.Errorf("序列化新增列表失败: %w", err)
	}
	removed, err := json.Marshal(nonNil(run.Removed))
	if err != nil {
		return 0, fmt.Errorf("序列化移除列表失败: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO runs (run_id, started_at, duration, cards, dropped, first_run, added, removed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration,
		run.Cards,
		run.Dropped,
		run.FirstRun,
		string(added),
		string(removed),
	)
	if err != nil {
		return 0, fmt.Errorf("写入运行记录失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取记录ID失败: %w", err)
	}
	run.ID = id
	return id, nil
}

// List 按时间倒序返回最近的运行,limit<=0 表示全部
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, run_id, started_at, duration, cards, dropped, first_run, added, removed
	FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run            Run
			startedAt      string
			added, removed string
		)
		if err := rows.Scan(&run.ID, &run.RunID, &startedAt, &run.Duration, &run.Cards,
			&run.Dropped, &run.FirstRun, &added, &removed); err != nil {
			return nil, fmt.Errorf("读取运行记录失败: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("解析时间失败 [%s]: %w", startedAt, err)
		}
		if err := json.Unmarshal([]byte(added), &run.Added); err != nil {
			return nil, fmt.Errorf("解析新增列表失败: %w", err)
		}
		if err := json.Unmarshal([]byte(removed), &run.Removed); err != nil {
			return nil, fmt.Errorf("解析移除列表失败: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
