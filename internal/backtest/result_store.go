package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sygnal/internal/strategy"
)

// ResultStore 以 sqlite 持久化回测记录：runs 表保存运行元数据与汇总，
// 信号与成交账本分别落在 signals / trades 表。实现 ResultSink 契约。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "backtest.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			bars INTEGER NOT NULL DEFAULT 0,
			signal_count INTEGER NOT NULL DEFAULT 0,
			trade_count INTEGER NOT NULL DEFAULT 0,
			open_discarded INTEGER NOT NULL DEFAULT 0,
			skipped_entries INTEGER NOT NULL DEFAULT 0,
			summary_json TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_signals (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			signal_type TEXT NOT NULL,
			conditions_met INTEGER NOT NULL DEFAULT 0,
			signal_json TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id TEXT NOT NULL,
			entry_index INTEGER NOT NULL,
			signal_type TEXT NOT NULL,
			signal_ts INTEGER NOT NULL,
			conditions_met INTEGER NOT NULL DEFAULT 0,
			entry_ts INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			target REAL NOT NULL,
			exit_index INTEGER NOT NULL,
			exit_ts INTEGER NOT NULL,
			exit_price REAL NOT NULL,
			exit_reason TEXT NOT NULL,
			profit REAL NOT NULL,
			pct_change REAL NOT NULL,
			PRIMARY KEY (run_id, entry_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON backtest_runs (symbol, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入新的运行记录（通常为 pending 状态）。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("store 已关闭")
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO backtest_runs
		(id, symbol, strategy, status, outcome, bars, signal_count, trade_count,
		 open_discarded, skipped_entries, summary_json, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Strategy, string(run.Status), string(run.Outcome),
		run.Bars, run.SignalCount, run.TradeCount, run.OpenDiscarded, run.SkippedEntries,
		string(summaryJSON), run.Error, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("写入回测记录失败: %w", err)
	}
	return nil
}

// UpdateRunStatus 推进运行状态；errMsg 仅在 failed 时有意义。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("store 已关闭")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE backtest_runs SET status = ?, error = ?, updated_at = ?
		WHERE id = ?`, string(status), errMsg, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("回测记录不存在: %s", id)
	}
	return nil
}

// SaveResult 把完成的模拟产出写入指定运行：更新汇总并落库信号与成交账本。
func (s *ResultStore) SaveResult(ctx context.Context, runID string, res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("store 已关闭")
	}
	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, `UPDATE backtest_runs SET
		status = ?, outcome = ?, bars = ?, signal_count = ?, trade_count = ?,
		open_discarded = ?, skipped_entries = ?, summary_json = ?, updated_at = ?
		WHERE id = ?`,
		string(RunStatusDone), string(res.Outcome), res.Bars, len(res.Signals), len(res.Trades),
		res.OpenDiscarded, res.SkippedEntries, string(summaryJSON), now, runID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("更新回测记录失败: %w", err)
	}
	for _, rec := range res.Signals {
		sigJSON, err := json.Marshal(rec.Signal)
		if err != nil {
			tx.Rollback()
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO backtest_signals
			(run_id, idx, ts, signal_type, conditions_met, signal_json) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rec.Index, rec.TS, string(rec.Signal.Type), rec.Signal.ConditionsMet, string(sigJSON))
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, t := range res.Trades {
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO backtest_trades
			(run_id, entry_index, signal_type, signal_ts, conditions_met, entry_ts, entry_price,
			 stop_loss, target, exit_index, exit_ts, exit_price, exit_reason, profit, pct_change)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.EntryIndex, string(t.SignalType), t.SignalTS, t.ConditionsMet, t.EntryTS, t.EntryPrice,
			t.StopLoss, t.Target, t.ExitIndex, t.ExitTS, t.ExitPrice, t.ExitReason, t.Profit, t.PctChange)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Write 实现 ResultSink：为结果自建运行记录后落库。
func (s *ResultStore) Write(ctx context.Context, res Result) error {
	run := NewRun(res.Symbol, res.Strategy)
	run.Status = RunStatusRunning
	if err := s.InsertRun(ctx, run); err != nil {
		return err
	}
	return s.SaveResult(ctx, run.ID, res)
}

// GetRun 按 id 读取单条运行记录。
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Run{}, fmt.Errorf("store 已关闭")
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, symbol, strategy, status, outcome, bars,
		signal_count, trade_count, open_discarded, skipped_entries, summary_json, error,
		created_at, updated_at FROM backtest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("回测记录不存在: %s", id)
	}
	return run, err
}

// ListRuns 返回最近的运行记录，按创建时间倒序。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("store 已关闭")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, symbol, strategy, status, outcome, bars,
		signal_count, trade_count, open_discarded, skipped_entries, summary_json, error,
		created_at, updated_at FROM backtest_runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListTrades 返回某次运行的成交账本，按入场顺序。
func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]ClosedPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("store 已关闭")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT entry_index, signal_type, signal_ts, conditions_met,
		entry_ts, entry_price, stop_loss, target, exit_index, exit_ts, exit_price, exit_reason,
		profit, pct_change FROM backtest_trades WHERE run_id = ? ORDER BY entry_index ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClosedPosition
	for rows.Next() {
		var t ClosedPosition
		var sigType string
		if err := rows.Scan(&t.EntryIndex, &sigType, &t.SignalTS, &t.ConditionsMet,
			&t.EntryTS, &t.EntryPrice, &t.StopLoss, &t.Target, &t.ExitIndex, &t.ExitTS,
			&t.ExitPrice, &t.ExitReason, &t.Profit, &t.PctChange); err != nil {
			return nil, err
		}
		t.SignalType = strategy.SignalType(sigType)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListSignals 返回某次运行的信号账本，按回测日期顺序。
func (s *ResultStore) ListSignals(ctx context.Context, runID string) ([]SignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("store 已关闭")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT idx, ts, signal_json
		FROM backtest_signals WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		var raw string
		if err := rows.Scan(&rec.Index, &rec.TS, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &rec.Signal); err != nil {
			return nil, fmt.Errorf("解析信号记录失败: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status, outcome, summaryRaw string
	err := row.Scan(&run.ID, &run.Symbol, &run.Strategy, &status, &outcome, &run.Bars,
		&run.SignalCount, &run.TradeCount, &run.OpenDiscarded, &run.SkippedEntries,
		&summaryRaw, &run.Error, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Outcome = Outcome(outcome)
	if summaryRaw != "" {
		if err := json.Unmarshal([]byte(summaryRaw), &run.Summary); err != nil {
			return Run{}, fmt.Errorf("解析汇总失败: %w", err)
		}
	}
	return run, nil
}
