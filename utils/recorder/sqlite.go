package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS signal_status (
	run_id        TEXT NOT NULL,
	sim_time      REAL NOT NULL,
	iteration     INTEGER NOT NULL,
	group_id      TEXT NOT NULL,
	head          TEXT NOT NULL,
	status        TEXT NOT NULL,
	approaches    INTEGER NOT NULL,
	delay_cost    REAL NOT NULL,
	stopping_cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS phase_boundary (
	run_id        TEXT NOT NULL,
	sim_time      REAL NOT NULL,
	iteration     INTEGER NOT NULL,
	group_id      TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	phase_count   INTEGER NOT NULL,
	from_phase    TEXT NOT NULL,
	to_phase      TEXT NOT NULL,
	duration      REAL NOT NULL,
	head          TEXT NOT NULL,
	approaches    INTEGER NOT NULL,
	delay_cost    REAL NOT NULL,
	stopping_cost REAL NOT NULL,
	mean_delay    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS time_interval (
	run_id              TEXT NOT NULL,
	sim_time            REAL NOT NULL,
	group_id            TEXT NOT NULL,
	strategy            TEXT NOT NULL,
	enabled             INTEGER NOT NULL,
	current_phase       INTEGER NOT NULL,
	phase_elapsed       REAL NOT NULL,
	phase_count         INTEGER NOT NULL,
	approaches          INTEGER NOT NULL,
	delay_cost          REAL NOT NULL,
	stopping_cost       REAL NOT NULL,
	cumulative_delay    REAL NOT NULL,
	cumulative_stopping REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS completed_approach (
	run_id     TEXT NOT NULL,
	sim_time   REAL NOT NULL,
	group_id   TEXT NOT NULL,
	head       TEXT NOT NULL,
	vehicle_id INTEGER NOT NULL,
	class      TEXT NOT NULL,
	urgency    INTEGER NOT NULL,
	age        REAL NOT NULL,
	delay_time REAL NOT NULL,
	delay_cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS summary (
	run_id          TEXT NOT NULL,
	urgency         INTEGER NOT NULL,
	vehicles        INTEGER NOT NULL,
	mean_delay_time REAL NOT NULL,
	mean_delay_cost REAL NOT NULL,
	PRIMARY KEY (run_id, urgency)
);
`

// SQLite 输出到SQLite数据库
// 功能：每次运行分配一个运行ID，所有表都带运行ID，同一数据库可以保存多次运行
// 说明：写入在事务中批量提交，周期统计、汇总与关闭时提交未完成的事务
type SQLite struct {
	mu      sync.Mutex
	db      *sql.DB
	runID   string
	tx      *sql.Tx
	pending int
}

// NewSQLite 打开SQLite数据库并建表
// 参数：path-数据库文件路径（":memory:"为内存数据库）
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 内存数据库每个连接相互独立
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &SQLite{db: db, runID: uuid.New().String()}
	if _, err := db.Exec(
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		s.runID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}
	log.Infof("sqlite output %s, run %s", path, s.runID)
	return s, nil
}

// RunID 本次运行的ID
func (s *SQLite) RunID() string {
	return s.runID
}

// DB 底层数据库连接
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// exec 在当前批次的事务中执行写入，调用方持有锁
func (s *SQLite) exec(op, query string, args ...any) {
	if s.tx == nil {
		tx, err := s.db.Begin()
		if err != nil {
			fail("sqlite", op, err)
			return
		}
		s.tx = tx
	}
	if _, err := s.tx.Exec(query, args...); err != nil {
		fail("sqlite", op, err)
		return
	}
	s.pending++
	if s.pending >= *batchSize {
		s.flush()
	}
}

// flush 提交当前批次，调用方持有锁
func (s *SQLite) flush() {
	if s.tx == nil {
		return
	}
	if err := s.tx.Commit(); err != nil {
		fail("sqlite", "commit", err)
	}
	s.tx = nil
	s.pending = 0
}

func (s *SQLite) RecordData(simTime float64, iteration int32, groupID string, heads []entity.HeadSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range heads {
		s.exec("data",
			`INSERT INTO signal_status (run_id, sim_time, iteration, group_id, head, status, approaches, delay_cost, stopping_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, simTime, iteration, groupID, h.Name, h.Status.String(), h.Approaches,
			h.PhaseCosts.DelayCost, h.PhaseCosts.StoppingCost,
		)
	}
}

// RecordPhaseBoundary 每个信号灯一行，携带刚结束的相位内的费用与各紧急程度的平均延误
func (s *SQLite) RecordPhaseBoundary(b entity.PhaseBoundary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range b.Heads {
		means, err := json.Marshal(meanDelays(h.PhaseCosts))
		if err != nil {
			fail("sqlite", "phase", err)
			continue
		}
		s.exec("phase",
			`INSERT INTO phase_boundary (run_id, sim_time, iteration, group_id, strategy, phase_count, from_phase, to_phase,
			 duration, head, approaches, delay_cost, stopping_cost, mean_delay)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, b.SimTime, b.Iteration, b.GroupID, b.Strategy, b.PhaseCount, b.From, b.To,
			b.Duration, h.Name, h.Approaches, h.PhaseCosts.DelayCost, h.PhaseCosts.StoppingCost, string(means),
		)
	}
}

func (s *SQLite) RecordTimeInterval(simTime float64, groups []entity.GroupStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		s.exec("interval",
			`INSERT INTO time_interval (run_id, sim_time, group_id, strategy, enabled, current_phase, phase_elapsed, phase_count,
			 approaches, delay_cost, stopping_cost, cumulative_delay, cumulative_stopping)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, simTime, g.GroupID, g.Strategy, g.Enabled, g.CurrentPhase, g.PhaseElapsed, g.PhaseCount,
			g.Approaches, g.DelayCost, g.StoppingCost, g.Cumulative.DelayCost, g.Cumulative.StoppingCost,
		)
	}
	s.flush()
}

func (s *SQLite) RecordCompletedApproach(simTime float64, a signal.CompletedApproach) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec("approach",
		`INSERT INTO completed_approach (run_id, sim_time, group_id, head, vehicle_id, class, urgency, age, delay_time, delay_cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, simTime, a.GroupID, a.Head, a.Record.VehicleID, a.Record.Class.String(), a.Record.Urgency,
		a.Age, a.DelayTime, a.DelayCost,
	)
}

// RecordFinalSummary 按紧急程度汇总本次运行被淘汰的接近记录
func (s *SQLite) RecordFinalSummary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM summary WHERE run_id = ?`, s.runID); err != nil {
		return fmt.Errorf("clear summary: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO summary (run_id, urgency, vehicles, mean_delay_time, mean_delay_cost)
		 SELECT run_id, urgency, COUNT(*), AVG(delay_time), AVG(delay_cost)
		 FROM completed_approach WHERE run_id = ? GROUP BY urgency`,
		s.runID,
	); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), s.runID,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Summary 读取本次运行的汇总（按紧急程度升序）
func (s *SQLite) Summary() ([]UrgencySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
	rows, err := s.db.Query(
		`SELECT urgency, vehicles, mean_delay_time, mean_delay_cost FROM summary WHERE run_id = ? ORDER BY urgency`,
		s.runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()
	var out []UrgencySummary
	for rows.Next() {
		var u UrgencySummary
		if err := rows.Scan(&u.Urgency, &u.Vehicles, &u.MeanDelayTime, &u.MeanDelayCost); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
	return s.db.Close()
}
