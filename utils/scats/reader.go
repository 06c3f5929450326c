// 自适应信号周期数据（SCATS定宽文本）读取器
// 文件由若干周期块组成：首行为周期信息，第二行为列标题，随后为各进口道数据行，
// 直到某一行的路口编号字段不能解析为整数为止（该行同时被消费）
package scats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMalformedLine = errors.New("scats: malformed approach line")

	log    = logrus.WithField("module", "scats")
	tracer = otel.Tracer("scats-reader")
)

// Reader 周期数据读取器
// 说明：同步逐行读取，不并发使用
type Reader struct {
	name         string
	intersection string
	layout       Layout

	scanner *bufio.Scanner
	closer  io.Closer
	eof     bool

	cycles    int // 已读取的周期块数（含解析失败的块）
	vehicles  int // 已读取的车辆总数
	last      *Cycle
	listeners []func(*Cycle)
}

// Open 打开数据文件
// 参数：path-文件路径，intersection-目标路口编号，layout-列布局
// 返回：读取器；文件不存在或不可读时返回错误
func Open(path, intersection string, layout Layout) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scats file: %w", err)
	}
	r := NewReader(f, path, intersection, layout)
	r.closer = f
	return r, nil
}

// NewReader 从任意io.Reader创建读取器
func NewReader(src io.Reader, name, intersection string, layout Layout) *Reader {
	return &Reader{
		name:         name,
		intersection: intersection,
		layout:       layout,
		scanner:      bufio.NewScanner(src),
	}
}

// OnCycle 注册周期回调，每读取到一个有效周期调用一次
func (r *Reader) OnCycle(fn func(*Cycle)) {
	r.listeners = append(r.listeners, fn)
}

// EOF 是否已读到文件末尾
func (r *Reader) EOF() bool {
	return r.eof
}

// Last 最近一次读取成功的周期
func (r *Reader) Last() (*Cycle, bool) {
	return r.last, r.last != nil
}

// VehicleTotal 已读取的车辆总数
func (r *Reader) VehicleTotal() int {
	return r.vehicles
}

// Close 关闭底层文件
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) readLine() (string, bool) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			log.Errorf("%s: read err: %v", r.name, err)
		}
		r.eof = true
		return "", false
	}
	return strings.TrimRight(r.scanner.Text(), "\r"), true
}

// Next 读取下一个周期
// 功能：解析一个周期块，返回目标路口的相位时长与进口道车辆数
// 参数：ctx-上下文（用于链路追踪）
// 返回：周期与是否成功；文件结束或周期块格式错误时ok为false
// 算法说明：
// 1. 跳过空行后读取周期信息行，文件结束则返回false
// 2. 跳过列标题行，文件在此结束时返回false
// 3. 逐行读取进口道数据，路口编号不是整数时结束本块
// 4. 只处理目标路口的行：时长为0的相位被丢弃，两个计数字段累加到进口道
// 5. 块内任何一行格式错误时，读完整个块后记录日志并返回false
// 说明：文件在块中间结束时返回已解析的部分
func (r *Reader) Next(ctx context.Context) (*Cycle, bool) {
	_, span := tracer.Start(ctx, "scats.next_cycle", trace.WithAttributes(
		attribute.String("scats.file", r.name),
		attribute.String("scats.intersection", r.intersection),
		attribute.String("scats.layout", r.layout.Name),
	))
	defer span.End()

	if r.eof {
		return nil, false
	}
	header, ok := r.readLine()
	for ok && strings.TrimSpace(header) == "" {
		header, ok = r.readLine()
	}
	if !ok {
		return nil, false
	}
	if _, ok := r.readLine(); !ok { // 列标题
		log.Warnf("%s: cycle header without columns at end of file", r.name)
		return nil, false
	}
	cycle := newCycle(r.cycles, header)
	r.cycles++

	var blockErr error
	vehicles := 0
	for {
		line, ok := r.readLine()
		if !ok {
			break
		}
		id := r.layout.Intersection.Slice(line)
		if _, err := strconv.Atoi(id); err != nil {
			break
		}
		if id != r.intersection {
			continue
		}
		if err := r.parseApproach(cycle, line, &vehicles); err != nil && blockErr == nil {
			blockErr = err
		}
	}

	if blockErr != nil {
		log.Warnf("%s: skip cycle %d: %v", r.name, cycle.Index, blockErr)
		span.RecordError(blockErr)
		metrics.FeedErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("scats.file", r.name)))
		return nil, false
	}
	r.vehicles += vehicles
	r.last = cycle
	span.SetAttributes(
		attribute.Int("scats.cycle.index", cycle.Index),
		attribute.Int("scats.cycle.duration", cycle.Duration),
		attribute.Int("scats.cycle.vehicles", vehicles),
	)
	metrics.FeedCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("scats.file", r.name)))
	log.Debugf("%s: cycle %d duration=%d phases=%v", r.name, cycle.Index, cycle.Duration, cycle.PhaseDurations)
	for _, fn := range r.listeners {
		fn(cycle)
	}
	return cycle, true
}

// parseApproach 解析目标路口的一行进口道数据
// 说明：计数字段缺失或不是整数时按0处理
func (r *Reader) parseApproach(cycle *Cycle, line string, vehicles *int) error {
	phase := r.layout.Phase.Slice(line)
	greenField := r.layout.Green.Slice(line)
	green, err := strconv.Atoi(greenField)
	if err != nil || phase == "" {
		return fmt.Errorf("%w: phase=%q green=%q", ErrMalformedLine, phase, greenField)
	}
	if green > 0 {
		cycle.setPhase(phase, green)
	}
	count := 0
	for _, col := range r.layout.Counts {
		if n, err := strconv.Atoi(col.Slice(line)); err == nil {
			count += n
		}
	}
	*vehicles += count
	cycle.addApproach(r.layout.Approach.Slice(line), count)
	return nil
}
