package container

import (
	"fmt"
)

// IBody 链表元素需要提供的车辆外形信息
type IBody interface {
	V() float64      // 速度
	Length() float64 // 车长
}

// ListNode 按位置S升序排列的双向链表节点
// 说明：S为车头到进口道起点的距离，后继节点即前车
type ListNode[T IBody] struct {
	parent     *List[T]
	prev, next *ListNode[T]
	S          float64
	Value      T
}

func (n *ListNode[T]) String() string {
	return fmt.Sprintf("Node{S:%v, Value:%+v}", n.S, n.Value)
}

// Prev 后车（S更小）
func (n *ListNode[T]) Prev() *ListNode[T] {
	return n.prev
}

// Next 前车（S更大）
func (n *ListNode[T]) Next() *ListNode[T] {
	return n.next
}

func (n *ListNode[T]) Parent() *List[T] {
	return n.parent
}

// Gap 本车车头到前车车尾的净距，无前车时ok为false
func (n *ListNode[T]) Gap() (gap float64, ok bool) {
	if n.next == nil {
		return 0, false
	}
	return n.next.S - n.next.Value.Length() - n.S, true
}

// List 按位置升序排列的双向链表
type List[T IBody] struct {
	ID         string
	head, tail *ListNode[T]
	length     int
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v, Len:%d}", l.ID, l.length)
}

func (l *List[T]) Len() int {
	return l.length
}

// First 位置最小的节点（队尾车辆）
func (l *List[T]) First() *ListNode[T] {
	return l.head
}

// Last 位置最大的节点（最靠近停车线的车辆）
func (l *List[T]) Last() *ListNode[T] {
	return l.tail
}

// Keys 所有节点的位置（升序）
func (l *List[T]) Keys() []float64 {
	keys := make([]float64, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		keys = append(keys, node.S)
	}
	return keys
}

// Values 所有节点的值（按位置升序）
func (l *List[T]) Values() []T {
	values := make([]T, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		values = append(values, node.Value)
	}
	return values
}

// Insert 按位置有序插入节点
// 算法说明：从头部向后找到第一个位置不小于add.S的节点并插入其前方，否则追加到尾部
func (l *List[T]) Insert(add *ListNode[T]) {
	if add.parent != nil {
		log.Panicf("insert node %v which is already in list %v", add, add.parent)
	}
	node := l.head
	for node != nil && node.S < add.S {
		node = node.next
	}
	add.parent = l
	l.length++
	if node == nil {
		add.prev = l.tail
		add.next = nil
		if l.tail != nil {
			l.tail.next = add
		} else {
			l.head = add
		}
		l.tail = add
		return
	}
	add.next = node
	add.prev = node.prev
	if node.prev != nil {
		node.prev.next = add
	} else {
		l.head = add
	}
	node.prev = add
}

// Remove 从链表中移除节点
func (l *List[T]) Remove(node *ListNode[T]) {
	if node.parent != l {
		log.Panicf("remove node %v from wrong list %v", node, l)
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// PopUnsorted 移除位置小于其前驱的节点，配合Insert恢复有序
func (l *List[T]) PopUnsorted() (unsorted []*ListNode[T]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}
