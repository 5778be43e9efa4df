package routing

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lan-sim/internal/netaddr"
)

func mustIP(t *testing.T, s string) uint32 {
	t.Helper()
	addr, err := netaddr.ParseIPv4(s)
	require.NoError(t, err)
	return addr
}

// checkBalance 递归校验AVL平衡因子
func checkBalance(t *testing.T, n *node) int {
	t.Helper()
	if n == nil {
		return 0
	}
	lh := checkBalance(t, n.left)
	rh := checkBalance(t, n.right)
	diff := lh - rh
	if diff < -1 || diff > 1 {
		t.Fatalf("节点 %s/%d 失衡: 左高=%d 右高=%d",
			netaddr.FormatIPv4(n.entry.Prefix), n.entry.MaskLen, lh, rh)
	}
	h := 1 + max(lh, rh)
	require.Equal(t, h, n.height, "节点缓存的高度不正确")
	return h
}

func TestInsertAndLookup(t *testing.T) {
	table := NewTable()

	// 插入不同掩码长度的重叠前缀
	table.Insert(mustIP(t, "10.0.0.0"), 16, mustIP(t, "192.168.0.1"), 1)
	table.Insert(mustIP(t, "10.0.1.0"), 24, mustIP(t, "192.168.0.2"), 1)
	table.Insert(mustIP(t, "0.0.0.0"), 0, mustIP(t, "192.168.0.254"), 10)

	// 最长前缀优先：/24 覆盖时胜过 /16 和默认路由
	entry, ok := table.LookupLongestMatch(mustIP(t, "10.0.1.99"))
	require.True(t, ok)
	assert.Equal(t, 24, entry.MaskLen)
	assert.Equal(t, mustIP(t, "192.168.0.2"), entry.NextHop)

	// 只有 /16 覆盖时选 /16
	entry, ok = table.LookupLongestMatch(mustIP(t, "10.0.2.1"))
	require.True(t, ok)
	assert.Equal(t, 16, entry.MaskLen)

	// 所有具体前缀都不覆盖时落到默认路由
	entry, ok = table.LookupLongestMatch(mustIP(t, "172.16.0.1"))
	require.True(t, ok)
	assert.Equal(t, 0, entry.MaskLen)
	assert.Equal(t, mustIP(t, "192.168.0.254"), entry.NextHop)
}

func TestLookupMiss(t *testing.T) {
	table := NewTable()
	table.Insert(mustIP(t, "10.0.0.0"), 24, mustIP(t, "10.0.0.2"), 1)

	_, ok := table.LookupLongestMatch(mustIP(t, "192.168.1.1"))
	assert.False(t, ok)

	// 空表查找
	empty := NewTable()
	_, ok = empty.LookupLongestMatch(mustIP(t, "10.0.0.1"))
	assert.False(t, ok)
}

func TestInsertUpdateInPlace(t *testing.T) {
	table := NewTable()

	result := table.Insert(mustIP(t, "10.0.0.0"), 24, mustIP(t, "10.0.0.2"), 1)
	assert.Equal(t, RouteInserted, result)

	// 相同键重复插入：原地更新，节点数不变
	result = table.Insert(mustIP(t, "10.0.0.0"), 24, mustIP(t, "10.0.0.3"), 5)
	assert.Equal(t, RouteUpdated, result)
	assert.Equal(t, 1, table.Stats().Nodes)

	entry, ok := table.LookupLongestMatch(mustIP(t, "10.0.0.1"))
	require.True(t, ok)
	assert.Equal(t, mustIP(t, "10.0.0.3"), entry.NextHop)
	assert.Equal(t, 5, entry.Metric)

	// 前缀相同但掩码不同是不同的键
	result = table.Insert(mustIP(t, "10.0.0.0"), 25, mustIP(t, "10.0.0.4"), 1)
	assert.Equal(t, RouteInserted, result)
	assert.Equal(t, 2, table.Stats().Nodes)
}

func TestDeleteMiss(t *testing.T) {
	table := NewTable()
	table.Insert(mustIP(t, "10.0.0.0"), 24, mustIP(t, "10.0.0.2"), 1)

	before := table.Stats()
	assert.False(t, table.Delete(mustIP(t, "10.0.1.0"), 24))
	assert.False(t, table.Delete(mustIP(t, "10.0.0.0"), 16))
	assert.Equal(t, before, table.Stats())

	assert.True(t, table.Delete(mustIP(t, "10.0.0.0"), 24))
	assert.Equal(t, 0, table.Stats().Nodes)
}

func TestBalanceAfterSequentialInsert(t *testing.T) {
	table := NewTable()

	// 按升序插入会持续触发RR旋转
	for i := 0; i < 32; i++ {
		prefix := mustIP(t, "10.0.0.0") | uint32(i)<<8
		table.Insert(prefix, 24, mustIP(t, "10.0.0.2"), 1)
	}

	checkBalance(t, table.root)

	s := table.Stats()
	assert.Equal(t, 32, s.Nodes)
	assert.LessOrEqual(t, s.Height, 6, "32个节点的AVL树高度不应超过6")
	assert.Greater(t, s.RR, 0, "升序插入应触发RR旋转")
	assert.Greater(t, s.Rotations(), 0)
}

func TestBalanceAfterDelete(t *testing.T) {
	table := NewTable()

	for i := 0; i < 16; i++ {
		prefix := mustIP(t, "10.0.0.0") | uint32(i)<<8
		table.Insert(prefix, 24, mustIP(t, "10.0.0.2"), 1)
	}

	// 删掉一半后树依然平衡
	for i := 0; i < 8; i++ {
		prefix := mustIP(t, "10.0.0.0") | uint32(i*2)<<8
		require.True(t, table.Delete(prefix, 24))
	}

	checkBalance(t, table.root)
	assert.Equal(t, 8, table.Stats().Nodes)
}

func TestInOrderSorted(t *testing.T) {
	table := NewTable()

	// 乱序插入
	prefixes := []string{"10.0.5.0", "10.0.1.0", "10.0.9.0", "10.0.3.0", "10.0.7.0"}
	for _, p := range prefixes {
		table.Insert(mustIP(t, p), 24, mustIP(t, "10.0.0.2"), 1)
	}

	entries := table.InOrder()
	require.Len(t, entries, len(prefixes))
	sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].Prefix != entries[j].Prefix {
			return entries[i].Prefix < entries[j].Prefix
		}
		return entries[i].MaskLen < entries[j].MaskLen
	})
	assert.True(t, sorted, "中序遍历应按键升序")
}

func TestEntryString(t *testing.T) {
	e := Entry{
		Prefix:  mustIP(t, "10.0.1.0"),
		MaskLen: 24,
		NextHop: mustIP(t, "10.0.0.2"),
		Metric:  3,
	}
	assert.Equal(t, "10.0.1.0/255.255.255.0 via 10.0.0.2 metric 3", e.String())
}

func TestRenderTree(t *testing.T) {
	table := NewTable()
	assert.Contains(t, table.RenderTree(), "空树")

	table.Insert(mustIP(t, "10.0.1.0"), 24, mustIP(t, "10.0.0.2"), 1)
	table.Insert(mustIP(t, "10.0.0.0"), 24, mustIP(t, "10.0.0.2"), 1)
	table.Insert(mustIP(t, "10.0.2.0"), 24, mustIP(t, "10.0.0.2"), 1)

	out := table.RenderTree()
	assert.Contains(t, out, "[10.0.1.0/24]")
	assert.Contains(t, out, "├── [10.0.0.0/24]")
	assert.Contains(t, out, "└── [10.0.2.0/24]")
}
