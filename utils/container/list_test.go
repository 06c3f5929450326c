package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

type body struct {
	length float64
}

func (b body) V() float64 {
	return 0
}

func (b body) Length() float64 {
	return b.length
}

func node(s float64) *container.ListNode[body] {
	return &container.ListNode[body]{S: s, Value: body{length: 5}}
}

func TestListInit(t *testing.T) {
	l := &container.List[body]{}
	assert.Nil(t, l.First())
	assert.Nil(t, l.Last())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Keys())
}

func TestListInsertKeepsOrder(t *testing.T) {
	l := &container.List[body]{ID: "north"}
	n30, n10, n50, n20 := node(30), node(10), node(50), node(20)
	l.Insert(n30)
	l.Insert(n10)
	l.Insert(n50)
	l.Insert(n20)
	assert.Equal(t, []float64{10, 20, 30, 50}, l.Keys())
	assert.Equal(t, n10, l.First())
	assert.Equal(t, n50, l.Last())
	assert.Equal(t, n20, n10.Next())
	assert.Equal(t, n10, n20.Prev())
	assert.Equal(t, l, n30.Parent())

	gap, ok := n30.Gap()
	assert.True(t, ok)
	assert.Equal(t, 15., gap)
	_, ok = n50.Gap()
	assert.False(t, ok)
}

func TestListRemoveAndResort(t *testing.T) {
	l := &container.List[body]{}
	nodes := []*container.ListNode[body]{node(1), node(2), node(3), node(4)}
	for _, n := range nodes {
		l.Insert(n)
	}
	l.Remove(nodes[3])
	assert.Equal(t, nodes[2], l.Last())
	assert.Equal(t, 3, l.Len())
	l.Remove(nodes[0])
	assert.Equal(t, nodes[1], l.First())
	assert.Nil(t, nodes[0].Parent())

	// 位置更新后出现逆序
	nodes[1].S = 10
	unsorted := l.PopUnsorted()
	assert.Equal(t, []*container.ListNode[body]{nodes[2]}, unsorted)
	for _, n := range unsorted {
		l.Insert(n)
	}
	assert.Equal(t, []float64{3, 10}, l.Keys())
	assert.Len(t, l.Values(), 2)
}

func TestListInsertTwicePanics(t *testing.T) {
	l := &container.List[body]{}
	n := node(1)
	l.Insert(n)
	assert.Panics(t, func() { l.Insert(n) })
}
