package routing

import (
	"fmt"
	"strings"

	"lan-sim/internal/netaddr"
)

// 基于AVL树的路由表
// 每台路由器持有一个实例，路由条目以 (前缀值, 掩码长度) 为键组织成
// 自平衡二叉搜索树，插入和删除沿途通过四种标准旋转保持平衡，
// 最长前缀匹配在查找时对无法覆盖目标地址的子树进行剪枝

// Entry 路由条目
// 键是 (Prefix, MaskLen)，同一键最多存在一个条目
type Entry struct {
	// Prefix 网络前缀（网络地址）
	Prefix uint32

	// MaskLen 掩码长度，0-32
	MaskLen int

	// NextHop 下一跳地址
	NextHop uint32

	// Metric 路由度量值，非负
	Metric int
}

// String 返回条目的可读表示，例如 10.0.0.0/255.255.255.0 via 10.0.0.2 metric 1
func (e Entry) String() string {
	return fmt.Sprintf("%s/%s via %s metric %d",
		netaddr.FormatIPv4(e.Prefix), netaddr.FormatMask(e.MaskLen),
		netaddr.FormatIPv4(e.NextHop), e.Metric)
}

// InsertResult 插入操作的结果类型
// 区分新增和原地更新，供显示层提示用
type InsertResult int

const (
	// RouteInserted 新条目已插入
	RouteInserted InsertResult = iota

	// RouteUpdated 键已存在，下一跳和度量值被原地更新
	RouteUpdated
)

// Rotation 旋转类型，对应AVL的四种失衡情况
type Rotation int

const (
	RotationLL Rotation = iota
	RotationLR
	RotationRL
	RotationRR
)

// Stats 路由表结构统计
type Stats struct {
	// Nodes 节点总数
	Nodes int

	// Height 树高度，空树为0
	Height int

	// LL/LR/RL/RR 自创建以来各类旋转的累计次数
	LL int
	LR int
	RL int
	RR int
}

// Rotations 返回累计旋转总次数
func (s Stats) Rotations() int {
	return s.LL + s.LR + s.RL + s.RR
}

// node AVL树节点
type node struct {
	entry  Entry
	left   *node
	right  *node
	height int
}

// Table AVL路由表
type Table struct {
	root  *node
	stats Stats
}

// NewTable 创建空路由表
func NewTable() *Table {
	return &Table{}
}

// compareKey 按 (前缀值, 掩码长度) 升序比较两个键
func compareKey(prefix uint32, maskLen int, e Entry) int {
	switch {
	case prefix < e.Prefix:
		return -1
	case prefix > e.Prefix:
		return 1
	case maskLen < e.MaskLen:
		return -1
	case maskLen > e.MaskLen:
		return 1
	default:
		return 0
	}
}

// Insert 插入或更新路由
// 键已存在时原地更新下一跳和度量值，不产生新节点也不需要再平衡；
// 否则按标准AVL流程插入并沿插入路径回溯再平衡
func (t *Table) Insert(prefix uint32, maskLen int, nextHop uint32, metric int) InsertResult {
	entry := Entry{Prefix: prefix, MaskLen: maskLen, NextHop: nextHop, Metric: metric}

	var result InsertResult
	t.root = t.insert(t.root, entry, &result)
	t.stats.Nodes = countNodes(t.root)
	t.stats.Height = height(t.root)
	return result
}

func (t *Table) insert(n *node, entry Entry, result *InsertResult) *node {
	if n == nil {
		*result = RouteInserted
		return &node{entry: entry, height: 1}
	}

	switch cmp := compareKey(entry.Prefix, entry.MaskLen, n.entry); {
	case cmp < 0:
		n.left = t.insert(n.left, entry, result)
	case cmp > 0:
		n.right = t.insert(n.right, entry, result)
	default:
		// 键完全相同：原地更新，树形不变
		n.entry.NextHop = entry.NextHop
		n.entry.Metric = entry.Metric
		*result = RouteUpdated
		return n
	}

	return t.rebalance(n)
}

// Delete 删除路由
// 返回false表示键不存在，此时树保持不变
func (t *Table) Delete(prefix uint32, maskLen int) bool {
	var deleted bool
	t.root = t.delete(t.root, prefix, maskLen, &deleted)
	if deleted {
		t.stats.Nodes = countNodes(t.root)
		t.stats.Height = height(t.root)
	}
	return deleted
}

func (t *Table) delete(n *node, prefix uint32, maskLen int, deleted *bool) *node {
	if n == nil {
		return nil
	}

	switch cmp := compareKey(prefix, maskLen, n.entry); {
	case cmp < 0:
		n.left = t.delete(n.left, prefix, maskLen, deleted)
	case cmp > 0:
		n.right = t.delete(n.right, prefix, maskLen, deleted)
	default:
		*deleted = true
		// 标准BST删除：叶子直接摘除，单子树上提，
		// 双子树用中序后继的内容顶替再删除后继
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.entry = succ.entry
		var dummy bool
		n.right = t.delete(n.right, succ.entry.Prefix, succ.entry.MaskLen, &dummy)
	}

	return t.rebalance(n)
}

// rebalance 更新高度并在失衡时执行对应旋转
func (t *Table) rebalance(n *node) *node {
	n.height = 1 + max(height(n.left), height(n.right))

	balance := height(n.left) - height(n.right)
	if balance > 1 {
		if height(n.left.left) >= height(n.left.right) {
			t.countRotation(RotationLL)
			return rotateRight(n)
		}
		t.countRotation(RotationLR)
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	}
	if balance < -1 {
		if height(n.right.right) >= height(n.right.left) {
			t.countRotation(RotationRR)
			return rotateLeft(n)
		}
		t.countRotation(RotationRL)
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func (t *Table) countRotation(r Rotation) {
	switch r {
	case RotationLL:
		t.stats.LL++
	case RotationLR:
		t.stats.LR++
	case RotationRL:
		t.stats.RL++
	case RotationRR:
		t.stats.RR++
	}
}

// rotateRight 右旋，处理左侧过高
func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	y.height = 1 + max(height(y.left), height(y.right))
	x.height = 1 + max(height(x.left), height(x.right))
	return x
}

// rotateLeft 左旋，处理右侧过高
func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	x.height = 1 + max(height(x.left), height(x.right))
	y.height = 1 + max(height(y.left), height(y.right))
	return y
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func countNodes(n *node) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.left) + countNodes(n.right)
}

// LookupLongestMatch 最长前缀匹配查找
// 返回掩码最长且覆盖addr的条目（addr & mask == prefix）
//
// 覆盖addr的前缀值必然满足 prefix <= addr，因此当某节点的前缀值
// 大于addr时其右子树（键更大）不可能包含匹配项，整棵右子树被剪掉
func (t *Table) LookupLongestMatch(addr uint32) (Entry, bool) {
	var best Entry
	found := false

	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.entry.Prefix > addr {
			walk(n.left)
			return
		}
		if netaddr.Contains(n.entry.Prefix, n.entry.MaskLen, addr) {
			if !found || n.entry.MaskLen > best.MaskLen {
				best = n.entry
				found = true
			}
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)

	return best, found
}

// InOrder 返回按键升序排列的全部条目
func (t *Table) InOrder() []Entry {
	var result []Entry
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		result = append(result, n.entry)
		walk(n.right)
	}
	walk(t.root)
	return result
}

// Stats 返回结构统计的副本
func (t *Table) Stats() Stats {
	return t.stats
}

// RenderTree 渲染树的层级结构，用于 show ip route-tree
//
// 输出形如：
//
//	[10.0.1.0/24]
//	|   ├── [10.0.0.0/24]
//	|   └── [10.0.2.0/24]
func (t *Table) RenderTree() string {
	if t.root == nil {
		return "(空树)\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s/%d]\n", netaddr.FormatIPv4(t.root.entry.Prefix), t.root.entry.MaskLen)

	var render func(n *node, prefix string, isLeft bool)
	render = func(n *node, prefix string, isLeft bool) {
		if n == nil {
			return
		}
		connector := "└── "
		if isLeft {
			connector = "├── "
		}
		fmt.Fprintf(&b, "%s%s[%s/%d]\n",
			prefix, connector, netaddr.FormatIPv4(n.entry.Prefix), n.entry.MaskLen)

		extension := "    "
		if isLeft && (n.left != nil || n.right != nil) {
			extension = "|   "
		}
		childPrefix := prefix + extension
		if n.left != nil {
			render(n.left, childPrefix, true)
		}
		if n.right != nil {
			render(n.right, childPrefix, false)
		}
	}

	childPrefix := "    "
	if t.root.left != nil || t.root.right != nil {
		childPrefix = "|   "
	}
	if t.root.left != nil {
		render(t.root.left, childPrefix, true)
	}
	if t.root.right != nil {
		render(t.root.right, childPrefix, false)
	}

	return b.String()
}
