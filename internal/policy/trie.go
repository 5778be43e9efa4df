package policy

import (
	"fmt"
	"sort"
	"strings"

	"lan-sim/internal/netaddr"
)

// 前缀策略Trie
// 按地址比特从高位到低位构成二叉Trie，策略挂在前缀对应的终端节点上，
// 查询时沿地址比特路径下降，路径上最深的策略生效（最长前缀优先）

// Kind 策略类型
type Kind int

const (
	// KindBlock 阻断策略，匹配的数据包直接丢弃
	KindBlock Kind = iota

	// KindTTLMin 最小TTL策略，TTL低于阈值的数据包被丢弃
	KindTTLMin
)

// Policy 挂在前缀上的转发策略
type Policy struct {
	Kind Kind

	// TTLMin 仅在Kind为KindTTLMin时有效
	TTLMin int
}

// String 返回策略的可读表示
func (p Policy) String() string {
	if p.Kind == KindBlock {
		return "block"
	}
	return fmt.Sprintf("ttl-min=%d", p.TTLMin)
}

// node Trie节点
// 不变量：每个带策略的前缀在树中都有完整的比特路径；
// 无策略且无子节点的节点会在删除时被修剪掉
type node struct {
	children [2]*node
	policy   *Policy
}

// Trie 前缀策略Trie
type Trie struct {
	root *node
}

// NewTrie 创建空的策略Trie
func NewTrie() *Trie {
	return &Trie{root: &node{}}
}

// SetPolicy 在 prefix/maskLen 上设置策略
// 路径上缺失的节点按需创建，终端节点已有策略时直接覆盖
func (t *Trie) SetPolicy(prefix uint32, maskLen int, p Policy) {
	n := t.root
	for i := 0; i < maskLen; i++ {
		bit := netaddr.Bit(prefix, i)
		if n.children[bit] == nil {
			n.children[bit] = &node{}
		}
		n = n.children[bit]
	}
	n.policy = &p
}

// UnsetPolicy 清除 prefix/maskLen 上的策略
// 返回false表示该前缀上没有策略；清除后自底向上修剪
// 不再有子节点也不带策略的节点链
func (t *Trie) UnsetPolicy(prefix uint32, maskLen int) bool {
	// 记录下降路径，便于回溯修剪
	path := make([]*node, 0, maskLen+1)
	n := t.root
	path = append(path, n)
	for i := 0; i < maskLen; i++ {
		bit := netaddr.Bit(prefix, i)
		if n.children[bit] == nil {
			return false
		}
		n = n.children[bit]
		path = append(path, n)
	}
	if n.policy == nil {
		return false
	}
	n.policy = nil

	// 从终端节点往根方向修剪空节点
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		if cur.policy != nil || cur.children[0] != nil || cur.children[1] != nil {
			break
		}
		parent := path[i-1]
		bit := netaddr.Bit(prefix, i-1)
		parent.children[bit] = nil
	}
	return true
}

// Resolve 查询覆盖addr的最长前缀所携带的策略
// 沿地址比特下降直到路径中断，途中最深的策略胜出
func (t *Trie) Resolve(addr uint32) (Policy, bool) {
	var result Policy
	found := false

	n := t.root
	if n.policy != nil {
		// 掩码长度为0的默认策略
		result = *n.policy
		found = true
	}
	for i := 0; i < 32; i++ {
		n = n.children[netaddr.Bit(addr, i)]
		if n == nil {
			break
		}
		if n.policy != nil {
			result = *n.policy
			found = true
		}
	}
	return result, found
}

// Entries 返回全部已设置策略的 (前缀, 掩码长度, 策略) 列表，按前缀升序
func (t *Trie) Entries() []EntryView {
	var result []EntryView
	var walk func(n *node, prefix uint32, depth int)
	walk = func(n *node, prefix uint32, depth int) {
		if n.policy != nil {
			result = append(result, EntryView{Prefix: prefix, MaskLen: depth, Policy: *n.policy})
		}
		if n.children[0] != nil {
			walk(n.children[0], prefix, depth+1)
		}
		if n.children[1] != nil {
			walk(n.children[1], prefix|1<<(31-depth), depth+1)
		}
	}
	walk(t.root, 0, 0)

	sort.Slice(result, func(i, j int) bool {
		if result[i].Prefix != result[j].Prefix {
			return result[i].Prefix < result[j].Prefix
		}
		return result[i].MaskLen < result[j].MaskLen
	})
	return result
}

// EntryView 策略条目的只读视图
type EntryView struct {
	Prefix  uint32
	MaskLen int
	Policy  Policy
}

// Render 渲染全部策略条目，用于 show ip prefix-tree
func (t *Trie) Render() string {
	entries := t.Entries()
	if len(entries) == 0 {
		return "(无策略)\n"
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s/%s   {%s}\n",
			netaddr.FormatIPv4(e.Prefix), netaddr.FormatMask(e.MaskLen), e.Policy)
	}
	return b.String()
}
