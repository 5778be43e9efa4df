package policy

import (
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

func TestLongestPrefixWins(t *testing.T) {
	trie := NewTrie()

	// /16 阻断，/24 放行但要求最小TTL
	trie.SetPolicy(mustIP(t, "10.1.0.0"), 16, Policy{Kind: KindBlock})
	trie.SetPolicy(mustIP(t, "10.1.2.0"), 24, Policy{Kind: KindTTLMin, TTLMin: 3})

	// /24 覆盖的地址取更深的策略
	pol, ok := trie.Resolve(mustIP(t, "10.1.2.99"))
	require.True(t, ok)
	assert.Equal(t, KindTTLMin, pol.Kind)
	assert.Equal(t, 3, pol.TTLMin)

	// 只被 /16 覆盖的地址取阻断策略
	pol, ok = trie.Resolve(mustIP(t, "10.1.3.1"))
	require.True(t, ok)
	assert.Equal(t, KindBlock, pol.Kind)

	// 不被任何前缀覆盖
	_, ok = trie.Resolve(mustIP(t, "192.168.1.1"))
	assert.False(t, ok)
}

func TestRootPolicyMatchesEverything(t *testing.T) {
	trie := NewTrie()
	trie.SetPolicy(0, 0, Policy{Kind: KindTTLMin, TTLMin: 2})

	pol, ok := trie.Resolve(mustIP(t, "1.2.3.4"))
	require.True(t, ok)
	assert.Equal(t, KindTTLMin, pol.Kind)

	// 更深的策略覆盖默认策略
	trie.SetPolicy(mustIP(t, "1.2.3.0"), 24, Policy{Kind: KindBlock})
	pol, ok = trie.Resolve(mustIP(t, "1.2.3.4"))
	require.True(t, ok)
	assert.Equal(t, KindBlock, pol.Kind)
}

func TestSetOverwrite(t *testing.T) {
	trie := NewTrie()

	trie.SetPolicy(mustIP(t, "10.0.0.0"), 24, Policy{Kind: KindBlock})
	trie.SetPolicy(mustIP(t, "10.0.0.0"), 24, Policy{Kind: KindTTLMin, TTLMin: 5})

	entries := trie.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, KindTTLMin, entries[0].Policy.Kind)
}

func TestUnsetMiss(t *testing.T) {
	trie := NewTrie()
	trie.SetPolicy(mustIP(t, "10.0.0.0"), 24, Policy{Kind: KindBlock})

	// 路径不存在
	assert.False(t, trie.UnsetPolicy(mustIP(t, "192.168.0.0"), 24))
	// 路径存在但该深度没有策略
	assert.False(t, trie.UnsetPolicy(mustIP(t, "10.0.0.0"), 16))
	assert.Len(t, trie.Entries(), 1)
}

func TestUnsetPrunes(t *testing.T) {
	trie := NewTrie()
	trie.SetPolicy(mustIP(t, "10.0.0.0"), 24, Policy{Kind: KindBlock})

	require.True(t, trie.UnsetPolicy(mustIP(t, "10.0.0.0"), 24))
	assert.Empty(t, trie.Entries())
	_, ok := trie.Resolve(mustIP(t, "10.0.0.1"))
	assert.False(t, ok)

	// 修剪后根节点不再有子节点
	assert.Nil(t, trie.root.children[0])
	assert.Nil(t, trie.root.children[1])
}

func TestUnsetKeepsDeeperPolicy(t *testing.T) {
	trie := NewTrie()
	trie.SetPolicy(mustIP(t, "10.0.0.0"), 16, Policy{Kind: KindBlock})
	trie.SetPolicy(mustIP(t, "10.0.1.0"), 24, Policy{Kind: KindTTLMin, TTLMin: 2})

	// 清除浅层策略不影响深层策略
	require.True(t, trie.UnsetPolicy(mustIP(t, "10.0.0.0"), 16))
	entries := trie.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 24, entries[0].MaskLen)

	pol, ok := trie.Resolve(mustIP(t, "10.0.1.5"))
	require.True(t, ok)
	assert.Equal(t, KindTTLMin, pol.Kind)
}

func TestEntriesSorted(t *testing.T) {
	trie := NewTrie()
	trie.SetPolicy(mustIP(t, "192.168.0.0"), 16, Policy{Kind: KindBlock})
	trie.SetPolicy(mustIP(t, "10.0.0.0"), 8, Policy{Kind: KindBlock})
	trie.SetPolicy(mustIP(t, "172.16.0.0"), 12, Policy{Kind: KindTTLMin, TTLMin: 4})

	entries := trie.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, mustIP(t, "10.0.0.0"), entries[0].Prefix)
	assert.Equal(t, mustIP(t, "172.16.0.0"), entries[1].Prefix)
	assert.Equal(t, mustIP(t, "192.168.0.0"), entries[2].Prefix)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "block", Policy{Kind: KindBlock}.String())
	assert.Equal(t, "ttl-min=4", Policy{Kind: KindTTLMin, TTLMin: 4}.String())
}

func TestRender(t *testing.T) {
	trie := NewTrie()
	assert.Contains(t, trie.Render(), "无策略")

	trie.SetPolicy(mustIP(t, "10.0.0.0"), 24, Policy{Kind: KindBlock})
	out := trie.Render()
	assert.Contains(t, out, "10.0.0.0/255.255.255.0")
	assert.Contains(t, out, "{block}")
}
