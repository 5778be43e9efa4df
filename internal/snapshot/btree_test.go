package snapshot

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkNodeBounds 递归校验节点的键数约束和子树结构
func checkNodeBounds(t *testing.T, idx *Index, n *bnode, isRoot bool) {
	t.Helper()

	maxKeys := idx.order - 1
	minKeys := (idx.order+1)/2 - 1
	require.LessOrEqual(t, len(n.keys), maxKeys, "节点键数超过 m-1")
	if !isRoot {
		require.GreaterOrEqual(t, len(n.keys), minKeys, "非根节点键数低于 ceil(m/2)-1")
	}
	require.Equal(t, len(n.keys), len(n.payloads))

	// 节点内键升序
	assert.True(t, sort.StringsAreSorted(n.keys))

	if n.leaf() {
		return
	}
	require.Equal(t, len(n.keys)+1, len(n.children), "内部节点孩子数应为键数+1")
	for _, c := range n.children {
		checkNodeBounds(t, idx, c, false)
	}
}

func TestPutAndGet(t *testing.T) {
	idx := NewIndex(4)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("snap-%03d", i)
		assert.True(t, idx.Put(key, []byte(key)))
	}

	checkNodeBounds(t, idx, idx.root, true)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("snap-%03d", i)
		payload, ok := idx.Get(key)
		require.True(t, ok, "键 %s 应能查到", key)
		assert.Equal(t, []byte(key), payload)
	}

	_, ok := idx.Get("missing")
	assert.False(t, ok)

	s := idx.Stats()
	assert.Equal(t, 50, s.Keys)
	assert.Greater(t, s.Height, 1, "50个键在阶数4下应发生根分裂")
	assert.Greater(t, s.Splits, 0)
	assert.InDelta(t, float64(s.Keys)/float64(s.Nodes), s.AvgFill, 1e-9)
}

func TestOverwriteKeepsStructure(t *testing.T) {
	idx := NewIndex(4)

	for i := 0; i < 20; i++ {
		idx.Put(fmt.Sprintf("key-%02d", i), []byte("v1"))
	}
	before := idx.Stats()

	// 覆盖写：键数和树形都不变，负载被替换
	for i := 0; i < 20; i++ {
		assert.False(t, idx.Put(fmt.Sprintf("key-%02d", i), []byte("v2")))
	}
	assert.Equal(t, before, idx.Stats())

	payload, ok := idx.Get("key-07")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), payload)
}

func TestAllOrdered(t *testing.T) {
	idx := NewIndex(3)

	// 乱序写入
	keys := []string{"delta", "alpha", "echo", "charlie", "bravo", "golf", "foxtrot"}
	for _, k := range keys {
		idx.Put(k, []byte(k))
	}

	var got []string
	for k, v := range idx.All() {
		got = append(got, k)
		assert.Equal(t, []byte(k), v)
	}
	require.Len(t, got, len(keys))
	assert.True(t, sort.StringsAreSorted(got), "遍历应按键升序")

	// 序列可以重复迭代
	count := 0
	for range idx.All() {
		count++
	}
	assert.Equal(t, len(keys), count)

	// 提前中断不影响后续迭代
	for range idx.All() {
		break
	}
	count = 0
	for range idx.All() {
		count++
	}
	assert.Equal(t, len(keys), count)
}

func TestSmallOrderFallsBack(t *testing.T) {
	idx := NewIndex(2)
	assert.Equal(t, DefaultOrder, idx.Stats().Order)

	idx = NewIndex(0)
	assert.Equal(t, DefaultOrder, idx.Stats().Order)
}

func TestBoundsForVariousOrders(t *testing.T) {
	for _, order := range []int{3, 4, 5, 7} {
		t.Run(fmt.Sprintf("order-%d", order), func(t *testing.T) {
			idx := NewIndex(order)
			for i := 0; i < 100; i++ {
				idx.Put(fmt.Sprintf("k%04d", i*7%100), []byte("x"))
			}
			checkNodeBounds(t, idx, idx.root, true)
			assert.Equal(t, 100, idx.Stats().Keys)
		})
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := NewIndex(4)

	_, ok := idx.Get("any")
	assert.False(t, ok)

	count := 0
	for range idx.All() {
		count++
	}
	assert.Equal(t, 0, count)

	s := idx.Stats()
	assert.Equal(t, 0, s.Keys)
	assert.Equal(t, 1, s.Height)
	assert.Equal(t, 1, s.Nodes)
}
