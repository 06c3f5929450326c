package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	collStatus   = "signal_status"
	collPhase    = "phase_boundary"
	collInterval = "time_interval"
	collApproach = "completed_approach"
	collSummary  = "summary"
)

// Mongo 输出到MongoDB
// 功能：各类记录写入同名集合，文档带运行ID；写入先缓存，达到批量大小或周期统计时批量插入
// 说明：汇总在内存中累计，不需要回读数据库
type Mongo struct {
	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
	runID  string
	buffer map[string][]any
	tally  tally
}

// NewMongo 连接MongoDB
// 参数：uri-连接字符串，database-数据库名
func NewMongo(uri, database string) (*Mongo, error) {
	client := mongoutil.NewClient(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	m := &Mongo{
		client: client,
		db:     client.Database(database),
		runID:  uuid.New().String(),
		buffer: make(map[string][]any),
	}
	log.Infof("mongo output %s, run %s", database, m.runID)
	return m, nil
}

// push 缓存一个文档，调用方持有锁
func (m *Mongo) push(coll string, doc bson.M) {
	doc["run_id"] = m.runID
	m.buffer[coll] = append(m.buffer[coll], doc)
	if len(m.buffer[coll]) >= *batchSize {
		m.flush(coll)
	}
}

// flush 批量插入一个集合的缓存，调用方持有锁
func (m *Mongo) flush(coll string) {
	docs := m.buffer[coll]
	if len(docs) == 0 {
		return
	}
	m.buffer[coll] = nil
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := m.db.Collection(coll).InsertMany(ctx, docs); err != nil {
		fail("mongo", coll, err)
	}
}

func (m *Mongo) flushAll() {
	for coll := range m.buffer {
		m.flush(coll)
	}
}

func (m *Mongo) RecordData(simTime float64, iteration int32, groupID string, heads []entity.HeadSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range heads {
		m.push(collStatus, bson.M{
			"sim_time":      simTime,
			"iteration":     iteration,
			"group_id":      groupID,
			"head":          h.Name,
			"status":        h.Status.String(),
			"approaches":    h.Approaches,
			"delay_cost":    h.PhaseCosts.DelayCost,
			"stopping_cost": h.PhaseCosts.StoppingCost,
		})
	}
}

// RecordPhaseBoundary 一次相位切换一个文档，信号灯作为子文档
func (m *Mongo) RecordPhaseBoundary(b entity.PhaseBoundary) {
	heads := make([]bson.M, 0, len(b.Heads))
	for _, h := range b.Heads {
		heads = append(heads, bson.M{
			"head":          h.Name,
			"approaches":    h.Approaches,
			"delay_cost":    h.PhaseCosts.DelayCost,
			"stopping_cost": h.PhaseCosts.StoppingCost,
			"mean_delay":    meanDelays(h.PhaseCosts),
		})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(collPhase, bson.M{
		"sim_time":    b.SimTime,
		"iteration":   b.Iteration,
		"group_id":    b.GroupID,
		"strategy":    b.Strategy,
		"phase_count": b.PhaseCount,
		"from":        b.From,
		"to":          b.To,
		"duration":    b.Duration,
		"heads":       heads,
	})
}

func (m *Mongo) RecordTimeInterval(simTime float64, groups []entity.GroupStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range groups {
		m.push(collInterval, bson.M{
			"sim_time":            simTime,
			"group_id":            g.GroupID,
			"strategy":            g.Strategy,
			"enabled":             g.Enabled,
			"current_phase":       g.CurrentPhase,
			"phase_elapsed":       g.PhaseElapsed,
			"phase_count":         g.PhaseCount,
			"approaches":          g.Approaches,
			"delay_cost":          g.DelayCost,
			"stopping_cost":       g.StoppingCost,
			"cumulative_delay":    g.Cumulative.DelayCost,
			"cumulative_stopping": g.Cumulative.StoppingCost,
		})
	}
	m.flushAll()
}

func (m *Mongo) RecordCompletedApproach(simTime float64, a signal.CompletedApproach) {
	m.tally.add(a)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(collApproach, bson.M{
		"sim_time":   simTime,
		"group_id":   a.GroupID,
		"head":       a.Head,
		"vehicle_id": a.Record.VehicleID,
		"class":      a.Record.Class.String(),
		"urgency":    a.Record.Urgency,
		"age":        a.Age,
		"delay_time": a.DelayTime,
		"delay_cost": a.DelayCost,
	})
}

// RecordFinalSummary 写入按紧急程度的汇总
func (m *Mongo) RecordFinalSummary() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushAll()
	for _, s := range m.tally.summaries() {
		m.buffer[collSummary] = append(m.buffer[collSummary], bson.M{
			"run_id":          m.runID,
			"urgency":         s.Urgency,
			"vehicles":        s.Vehicles,
			"mean_delay_time": s.MeanDelayTime,
			"mean_delay_cost": s.MeanDelayCost,
		})
	}
	docs := m.buffer[collSummary]
	m.buffer[collSummary] = nil
	if len(docs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := m.db.Collection(collSummary).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// Summary 当前已累计的汇总
func (m *Mongo) Summary() []UrgencySummary {
	return m.tally.summaries()
}

func (m *Mongo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushAll()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
