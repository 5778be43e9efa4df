package snapshot

import (
	"iter"
)

// B树快照索引
// 以快照键（字符串）映射到序列化的拓扑负载，阶数m在构造时固定：
// 除根外每个节点的键数落在 [ceil(m/2)-1, m-1] 区间
// 契约只有插入/覆盖和查询，不提供删除（快照只增不删）

// DefaultOrder 默认B树阶数
const DefaultOrder = 4

// bnode B树节点
// 叶子节点children为nil；内部节点满足 len(children) == len(keys)+1
type bnode struct {
	keys     []string
	payloads [][]byte
	children []*bnode
}

func (n *bnode) leaf() bool {
	return n.children == nil
}

// Index B树快照索引
type Index struct {
	root   *bnode
	order  int
	height int
	nodes  int
	keys   int
	splits int
}

// NewIndex 创建指定阶数的空索引
// 阶数小于3时退回默认值
func NewIndex(order int) *Index {
	if order < 3 {
		order = DefaultOrder
	}
	return &Index{
		root:   &bnode{},
		order:  order,
		height: 1,
		nodes:  1,
	}
}

// Put 写入快照
// 键已存在时只覆盖负载，树形不变，返回false；
// 否则插入新键并在节点溢出（达到m个键）时沿插入路径向上分裂，
// 根分裂时树增高一层，返回true
func (idx *Index) Put(key string, payload []byte) bool {
	inserted := idx.insert(idx.root, key, payload)
	if !inserted {
		return false
	}
	idx.keys++

	// 根溢出：创建新根并分裂旧根
	if len(idx.root.keys) >= idx.order {
		newRoot := &bnode{children: []*bnode{idx.root}}
		idx.splitChild(newRoot, 0)
		idx.root = newRoot
		idx.height++
		idx.nodes++
	}
	return true
}

// insert 向以n为根的子树插入，返回是否产生了新键
// 返回后n可能临时持有m个键，由上层负责分裂
func (idx *Index) insert(n *bnode, key string, payload []byte) bool {
	i := idx.searchPos(n, key)
	if i < len(n.keys) && n.keys[i] == key {
		// 覆盖写：负载原地替换
		n.payloads[i] = payload
		return false
	}

	if n.leaf() {
		n.keys = append(n.keys, "")
		n.payloads = append(n.payloads, nil)
		copy(n.keys[i+1:], n.keys[i:])
		copy(n.payloads[i+1:], n.payloads[i:])
		n.keys[i] = key
		n.payloads[i] = payload
		return true
	}

	inserted := idx.insert(n.children[i], key, payload)
	if inserted && len(n.children[i].keys) >= idx.order {
		idx.splitChild(n, i)
	}
	return inserted
}

// splitChild 把parent的第i个孩子在中位处分裂
// 中位键上提到parent，左右两半各成一个节点
func (idx *Index) splitChild(parent *bnode, i int) {
	child := parent.children[i]
	mid := len(child.keys) / 2

	right := &bnode{
		keys:     append([]string(nil), child.keys[mid+1:]...),
		payloads: append([][]byte(nil), child.payloads[mid+1:]...),
	}
	if !child.leaf() {
		right.children = append([]*bnode(nil), child.children[mid+1:]...)
	}

	midKey := child.keys[mid]
	midPayload := child.payloads[mid]

	child.keys = child.keys[:mid]
	child.payloads = child.payloads[:mid]
	if !child.leaf() {
		child.children = child.children[:mid+1]
	}

	parent.keys = append(parent.keys, "")
	parent.payloads = append(parent.payloads, nil)
	copy(parent.keys[i+1:], parent.keys[i:])
	copy(parent.payloads[i+1:], parent.payloads[i:])
	parent.keys[i] = midKey
	parent.payloads[i] = midPayload

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right

	idx.nodes++
	idx.splits++
}

// searchPos 返回key在节点内的插入位置（第一个不小于key的下标）
func (idx *Index) searchPos(n *bnode, key string) int {
	i := 0
	for i < len(n.keys) && key > n.keys[i] {
		i++
	}
	return i
}

// Get 查询快照负载
func (idx *Index) Get(key string) ([]byte, bool) {
	n := idx.root
	for {
		i := idx.searchPos(n, key)
		if i < len(n.keys) && n.keys[i] == key {
			return n.payloads[i], true
		}
		if n.leaf() {
			return nil, false
		}
		n = n.children[i]
	}
}

// All 按键升序惰性遍历全部 (键, 负载) 对
// 返回的序列可以多次重新开始迭代
func (idx *Index) All() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		idx.walk(idx.root, yield)
	}
}

func (idx *Index) walk(n *bnode, yield func(string, []byte) bool) bool {
	for i := range n.keys {
		if !n.leaf() {
			if !idx.walk(n.children[i], yield) {
				return false
			}
		}
		if !yield(n.keys[i], n.payloads[i]) {
			return false
		}
	}
	if !n.leaf() {
		return idx.walk(n.children[len(n.keys)], yield)
	}
	return true
}

// Stats B树结构统计
type Stats struct {
	// Order 阶数m
	Order int

	// Keys 键总数
	Keys int

	// Height 树高度
	Height int

	// Nodes 节点总数（内部+叶子）
	Nodes int

	// Splits 累计分裂次数
	Splits int

	// AvgFill 平均填充率：键总数除以节点总数
	AvgFill float64
}

// Stats 返回结构统计
func (idx *Index) Stats() Stats {
	avg := 0.0
	if idx.nodes > 0 {
		avg = float64(idx.keys) / float64(idx.nodes)
	}
	return Stats{
		Order:   idx.order,
		Keys:    idx.keys,
		Height:  idx.height,
		Nodes:   idx.nodes,
		Splits:  idx.splits,
		AvgFill: avg,
	}
}
