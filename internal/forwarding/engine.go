package forwarding

import (
	"fmt"

	"lan-sim/internal/errlog"
	"lan-sim/internal/logging"
	"lan-sim/internal/netaddr"
	"lan-sim/internal/policy"
	"lan-sim/internal/topology"
)

// 转发引擎
// 驱动离散时间模拟：send把数据包追加到全局FIFO队列，
// tick弹出队首数据包推进一跳，期间查询持有设备的路由表和策略Trie，
// 并维护每设备历史、全局统计和错误日志
//
// 整个引擎运行在单一控制流上：一次tick从头到尾执行完毕才接受下一条命令，
// 相同的命令序列产生完全相同的队列、历史和统计

// DropReason 丢弃原因
type DropReason int

const (
	// DropTTLExpired TTL减到0且未到达目的设备
	DropTTLExpired DropReason = iota

	// DropNoRoute 持有设备上没有覆盖目的地址的路由
	DropNoRoute

	// DropPolicyBlock 命中阻断策略或TTL低于策略阈值
	DropPolicyBlock

	// DropInterfaceDown 出链路任一端接口关闭或设备离线
	DropInterfaceDown
)

// String 返回丢弃原因的显示文本
func (r DropReason) String() string {
	switch r {
	case DropTTLExpired:
		return "ttl-expired"
	case DropNoRoute:
		return "no-route"
	case DropPolicyBlock:
		return "policy-block"
	case DropInterfaceDown:
		return "interface-down"
	default:
		return "unknown"
	}
}

// Outcome 数据包在一次tick中的处理结果
type Outcome int

const (
	// OutcomeForwarded 已转移到下一跳设备，回到队列等待
	OutcomeForwarded Outcome = iota

	// OutcomeDelivered 到达目的设备，终态
	OutcomeDelivered

	// OutcomeDropped 被丢弃，终态
	OutcomeDropped
)

// Packet 在网数据包
// 由send创建，每次tick至多变化一次，终态后只存在于历史记录中
type Packet struct {
	// Seq 入队序号，全局FIFO顺序的依据
	Seq uint64

	// SourceIP 源地址
	SourceIP string

	// DestIP 目的地址
	DestIP string

	// destAddr 目的地址的数值缓存
	destAddr uint32

	// Message 消息内容
	Message string

	// TTL 剩余跳数预算
	TTL int

	// Holder 当前持有数据包的设备名
	Holder string
}

// Summary 返回数据包的单行摘要
func (p *Packet) Summary() string {
	return fmt.Sprintf("#%d %s -> %s %q TTL=%d", p.Seq, p.SourceIP, p.DestIP, p.Message, p.TTL)
}

// HistoryRecord 设备历史中的一条记录
// 追加后不可变
type HistoryRecord struct {
	// PacketSeq 数据包的入队序号
	PacketSeq uint64

	// Summary 记录时刻的数据包摘要
	Summary string

	// Outcome 处理结果
	Outcome Outcome

	// Reason 丢弃原因，仅Outcome为OutcomeDropped时有效
	Reason DropReason

	// NextDevice 下一跳设备名，仅Outcome为OutcomeForwarded时有效
	NextDevice string
}

// OutcomeText 返回结果的显示文本，如 delivered、dropped(no-route)
func (h HistoryRecord) OutcomeText() string {
	switch h.Outcome {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeForwarded:
		return "forwarded -> " + h.NextDevice
	default:
		return fmt.Sprintf("dropped(%s)", h.Reason)
	}
}

// Stats 全局统计计数器，只增不减
// 不变量：Sent == Delivered + 各类Dropped之和 + 队列中的数据包数
type Stats struct {
	Sent             uint64
	Delivered        uint64
	DroppedTTL       uint64
	DroppedPolicy    uint64
	DroppedNoRoute   uint64
	DroppedIfaceDown uint64
	ForwardedHops    uint64
}

// DroppedTotal 各类丢弃的总和
func (s Stats) DroppedTotal() uint64 {
	return s.DroppedTTL + s.DroppedPolicy + s.DroppedNoRoute + s.DroppedIfaceDown
}

// Engine 转发引擎
type Engine struct {
	topo    *topology.Topology
	errors  *errlog.Log
	logger  *logging.Logger
	queue   []*Packet
	nextSeq uint64
	stats   Stats
	history map[string][]HistoryRecord
}

// NewEngine 创建转发引擎
// 错误日志由调用方创建并共享，引擎只负责追加
func NewEngine(topo *topology.Topology, errors *errlog.Log, logger *logging.Logger) *Engine {
	return &Engine{
		topo:    topo,
		errors:  errors,
		logger:  logger,
		nextSeq: 1,
		history: make(map[string][]HistoryRecord),
	}
}

// Send 构造数据包并追加到全局队列
// 失败时返回错误并记入错误日志：源地址不属于任何设备（NoSuchHost）、
// TTL非正、地址格式不合法
func (e *Engine) Send(srcIP, dstIP, message string, ttl int, command string) (*Packet, error) {
	if _, err := netaddr.ParseIPv4(srcIP); err != nil {
		e.errors.Append(errlog.KindValidation, err.Error(), command)
		return nil, err
	}
	destAddr, err := netaddr.ParseIPv4(dstIP)
	if err != nil {
		e.errors.Append(errlog.KindValidation, err.Error(), command)
		return nil, err
	}
	if ttl <= 0 {
		err := fmt.Errorf("TTL必须为正数: %d", ttl)
		e.errors.Append(errlog.KindValidation, err.Error(), command)
		return nil, err
	}

	srcAddr, _ := netaddr.ParseIPv4(srcIP)
	src, _, ok := e.topo.DeviceByAddr(srcAddr)
	if !ok {
		err := fmt.Errorf("没有设备持有源地址 %s", srcIP)
		e.errors.Append(errlog.KindNotFound, err.Error(), command)
		return nil, err
	}

	p := &Packet{
		Seq:      e.nextSeq,
		SourceIP: srcIP,
		DestIP:   dstIP,
		destAddr: destAddr,
		Message:  message,
		TTL:      ttl,
		Holder:   src.Name,
	}
	e.nextSeq++
	e.queue = append(e.queue, p)
	e.stats.Sent++

	e.logger.Info("数据包 #%d 入队: %s -> %s TTL=%d 持有者=%s", p.Seq, srcIP, dstIP, ttl, src.Name)
	return p, nil
}

// TickResult 一次tick的结果，供显示层输出
type TickResult struct {
	// Packet tick处理的包（处理后的状态快照）
	Packet Packet

	// Device 本次tick处理该数据包的设备
	Device string

	// Outcome 处理结果
	Outcome Outcome

	// Reason 丢弃原因，仅丢弃时有效
	Reason DropReason

	// NextDevice 下一跳设备名，仅转发时有效
	NextDevice string
}

// Tick 推进一个时钟周期
// 弹出全局队列队首的数据包并推进一跳；队列为空时返回false且无副作用
//
// 处理顺序（持有设备为D）：
//  1. TTL减1，若为0且D不是目的设备则按ttl-expired丢弃
//  2. D为路由器时解析目的地址的前缀策略，block或ttl-min不满足则丢弃
//  3. D持有目的地址则交付
//  4. 否则按设备类型选出链路：路由器查最长前缀匹配并经链路图解析下一跳，
//     非路由器沿第一条可用链路转发
func (e *Engine) Tick() (TickResult, bool) {
	if len(e.queue) == 0 {
		return TickResult{}, false
	}

	p := e.queue[0]
	e.queue = e.queue[1:]

	d, ok := e.topo.Device(p.Holder)
	if !ok {
		// 拓扑被重新加载后持有设备可能已不存在
		return e.drop(nil, p, DropNoRoute), true
	}
	if !d.Online {
		return e.drop(d, p, DropInterfaceDown), true
	}

	isDest := d.OwnsAddr(p.destAddr)

	// 步骤1：TTL递减
	p.TTL--
	if p.TTL <= 0 && !isDest {
		return e.drop(d, p, DropTTLExpired), true
	}

	// 步骤2：前缀策略（仅路由器）
	if d.Type.AppliesPolicy() && d.PolicyTrie != nil {
		if pol, ok := d.PolicyTrie.Resolve(p.destAddr); ok {
			if pol.Kind == policy.KindBlock {
				return e.drop(d, p, DropPolicyBlock), true
			}
			if pol.Kind == policy.KindTTLMin && p.TTL < pol.TTLMin {
				return e.drop(d, p, DropPolicyBlock), true
			}
		}
	}

	// 步骤3：本地交付
	if isDest {
		e.stats.Delivered++
		e.appendHistory(d.Name, p, HistoryRecord{Outcome: OutcomeDelivered})
		e.logger.Info("数据包 #%d 在 %s 交付", p.Seq, d.Name)
		return TickResult{Packet: *p, Device: d.Name, Outcome: OutcomeDelivered}, true
	}

	// 步骤4：选出链路转发
	if d.Type.HasRoutingTable() {
		return e.routerForward(d, p), true
	}
	return e.hostForward(d, p), true
}

// routerForward 路由器转发
// 目的地址在直连链路对端时视作直连路由，不需要显式路由条目；
// 否则按最长前缀匹配查表，并经链路图把下一跳地址解析成出链路
func (e *Engine) routerForward(d *topology.Device, p *Packet) TickResult {
	target := p.destAddr
	egress, peerDev, peerIface := findLink(d, target)

	if egress == nil {
		entry, ok := d.RouteTable.LookupLongestMatch(p.destAddr)
		if !ok {
			return e.drop(d, p, DropNoRoute)
		}
		egress, peerDev, peerIface = findLink(d, entry.NextHop)
		if egress == nil {
			// 路由存在但下一跳不在任何相邻链路上
			return e.drop(d, p, DropNoRoute)
		}
	}

	if !egress.Up || !peerIface.Up || !peerDev.Online {
		return e.drop(d, p, DropInterfaceDown)
	}

	return e.forward(d, p, peerDev)
}

// findLink 在设备的链路中寻找对端持有指定地址的那一条
// 按接口创建顺序检查，结果确定
func findLink(d *topology.Device, addr uint32) (*topology.Interface, *topology.Device, *topology.Interface) {
	for _, iface := range d.Interfaces {
		pd, pi := iface.Peer()
		if pd == nil {
			continue
		}
		if pd.OwnsAddr(addr) {
			return iface, pd, pi
		}
	}
	return nil, nil, nil
}

// hostForward 非路由设备沿第一条有链路的接口转发
func (e *Engine) hostForward(d *topology.Device, p *Packet) TickResult {
	for _, iface := range d.Interfaces {
		peerDev, peerIface := iface.Peer()
		if peerDev == nil {
			continue
		}
		if !iface.Up || !peerIface.Up || !peerDev.Online {
			return e.drop(d, p, DropInterfaceDown)
		}
		return e.forward(d, p, peerDev)
	}
	return e.drop(d, p, DropNoRoute)
}

// forward 把数据包转移到下一跳设备
// 下一跳设备正好持有目的地址时，这一跳即完成交付；
// 否则数据包回到全局队列尾部，等待后续tick继续推进
func (e *Engine) forward(d *topology.Device, p *Packet, next *topology.Device) TickResult {
	p.Holder = next.Name
	e.stats.ForwardedHops++
	e.appendHistory(d.Name, p, HistoryRecord{Outcome: OutcomeForwarded, NextDevice: next.Name})

	if next.OwnsAddr(p.destAddr) {
		e.stats.Delivered++
		e.appendHistory(next.Name, p, HistoryRecord{Outcome: OutcomeDelivered})
		e.logger.Info("数据包 #%d 经 %s 到达 %s 并交付", p.Seq, d.Name, next.Name)
		return TickResult{Packet: *p, Device: next.Name, Outcome: OutcomeDelivered}
	}

	e.queue = append(e.queue, p)
	e.logger.Info("数据包 #%d 由 %s 转发至 %s TTL=%d", p.Seq, d.Name, next.Name, p.TTL)
	return TickResult{Packet: *p, Device: d.Name, Outcome: OutcomeForwarded, NextDevice: next.Name}
}

// drop 按原因丢弃数据包并记账
func (e *Engine) drop(d *topology.Device, p *Packet, reason DropReason) TickResult {
	switch reason {
	case DropTTLExpired:
		e.stats.DroppedTTL++
	case DropPolicyBlock:
		e.stats.DroppedPolicy++
	case DropNoRoute:
		e.stats.DroppedNoRoute++
	case DropInterfaceDown:
		e.stats.DroppedIfaceDown++
	}

	deviceName := "?"
	if d != nil {
		deviceName = d.Name
		e.appendHistory(d.Name, p, HistoryRecord{Outcome: OutcomeDropped, Reason: reason})
	}
	e.logger.Info("数据包 #%d 在 %s 丢弃: %s", p.Seq, deviceName, reason)
	return TickResult{Packet: *p, Device: deviceName, Outcome: OutcomeDropped, Reason: reason}
}

// appendHistory 向设备历史追加一条记录
func (e *Engine) appendHistory(device string, p *Packet, rec HistoryRecord) {
	rec.PacketSeq = p.Seq
	rec.Summary = p.Summary()
	e.history[device] = append(e.history[device], rec)
}

// Queue 返回全局队列的快照，按FIFO顺序
func (e *Engine) Queue() []Packet {
	out := make([]Packet, len(e.queue))
	for i, p := range e.queue {
		out[i] = *p
	}
	return out
}

// QueueFor 返回当前停留在指定设备上的数据包快照
func (e *Engine) QueueFor(device string) []Packet {
	var out []Packet
	for _, p := range e.queue {
		if p.Holder == device {
			out = append(out, *p)
		}
	}
	return out
}

// History 返回设备历史的副本
func (e *Engine) History(device string) []HistoryRecord {
	records := e.history[device]
	out := make([]HistoryRecord, len(records))
	copy(out, records)
	return out
}

// Stats 返回统计计数器的副本
func (e *Engine) Stats() Stats {
	return e.stats
}
