package container

import "container/heap"

// item 优先队列中的元素
type item[T any] struct {
	value    T
	priority float64 // 越小越优先
	seq      int     // 入队序号，优先级相同时先入队者优先
}

type itemHeap[T any] []*item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) { *h = append(*h, x.(*item[T])) }

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// PriorityQueue 小顶堆优先队列
// 功能：按优先级从小到大弹出元素，优先级相同时按入队顺序弹出
// 说明：用于在候选相位中选取费用最高者（以负费用入队）
type PriorityQueue[T any] struct {
	heap itemHeap[T]
	seq  int
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{heap: make(itemHeap[T], 0)}
}

func (q *PriorityQueue[T]) Len() int {
	return len(q.heap)
}

// Push 加入元素但不维护堆，批量加入后需调用Heapify
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	q.heap = append(q.heap, &item[T]{value: value, priority: priority, seq: q.seq})
	q.seq++
}

// Heapify 重建堆
func (q *PriorityQueue[T]) Heapify() {
	heap.Init(&q.heap)
}

// HeapPush 加入元素并维护堆
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.heap, &item[T]{value: value, priority: priority, seq: q.seq})
	q.seq++
}

// HeapPop 弹出优先级数值最小的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	it := heap.Pop(&q.heap).(*item[T])
	return it.value, it.priority
}

// First 查看堆顶元素，队列为空时ok为false
func (q *PriorityQueue[T]) First() (value T, priority float64, ok bool) {
	if len(q.heap) == 0 {
		return value, 0, false
	}
	return q.heap[0].value, q.heap[0].priority, true
}
