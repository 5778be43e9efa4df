package topology

import (
	"fmt"

	"lan-sim/internal/netaddr"
	"lan-sim/internal/policy"
	"lan-sim/internal/routing"
)

// DeviceType 设备类型枚举
// 转发行为按类型分派：只有路由器持有AVL路由表并应用前缀策略，
// 其余类型收到数据包后仅做本地交付或沿唯一链路转发
type DeviceType int

const (
	// DeviceRouter 路由器
	DeviceRouter DeviceType = iota

	// DeviceSwitch 交换机
	DeviceSwitch

	// DeviceHost 主机
	DeviceHost

	// DeviceFirewall 防火墙
	DeviceFirewall
)

// String 返回设备类型的配置文件表示
func (dt DeviceType) String() string {
	switch dt {
	case DeviceRouter:
		return "router"
	case DeviceSwitch:
		return "switch"
	case DeviceHost:
		return "host"
	case DeviceFirewall:
		return "firewall"
	default:
		return "unknown"
	}
}

// ParseDeviceType 解析设备类型字符串
func ParseDeviceType(s string) (DeviceType, error) {
	switch s {
	case "router":
		return DeviceRouter, nil
	case "switch":
		return DeviceSwitch, nil
	case "host":
		return DeviceHost, nil
	case "firewall":
		return DeviceFirewall, nil
	default:
		return 0, fmt.Errorf("未知的设备类型: %s", s)
	}
}

// HasRoutingTable 该类型是否持有路由表
func (dt DeviceType) HasRoutingTable() bool {
	return dt == DeviceRouter
}

// AppliesPolicy 该类型在转发时是否应用前缀策略
func (dt DeviceType) AppliesPolicy() bool {
	return dt == DeviceRouter
}

// Interface 设备的网络接口
type Interface struct {
	// Name 接口名，设备内唯一
	Name string

	// IPAddress 点分十进制IP，未分配时为空串
	IPAddress string

	// addr 解析后的地址缓存，IPAddress非空时有效
	addr uint32

	// Up 接口启用状态
	Up bool

	// peer 对端接口，nil表示未连接
	// 不变量：任意时刻一个接口至多有一条链路
	peer *Interface

	// owner 所属设备，建立链路时用于定位对端设备
	owner *Device
}

// SetIP 分配IP地址并缓存解析结果
func (i *Interface) SetIP(ip string) error {
	addr, err := netaddr.ParseIPv4(ip)
	if err != nil {
		return err
	}
	i.IPAddress = ip
	i.addr = addr
	return nil
}

// Addr 返回接口地址的数值形式，false表示未分配
func (i *Interface) Addr() (uint32, bool) {
	if i.IPAddress == "" {
		return 0, false
	}
	return i.addr, true
}

// Peer 返回链路对端的设备和接口，无链路时返回nil
func (i *Interface) Peer() (*Device, *Interface) {
	if i.peer == nil {
		return nil, nil
	}
	return i.peer.owner, i.peer
}

// Linked 接口是否已有链路
func (i *Interface) Linked() bool {
	return i.peer != nil
}

// Device 网络设备
type Device struct {
	// Name 设备名，全网唯一
	Name string

	// Type 设备类型
	Type DeviceType

	// Online 设备在线状态
	Online bool

	// Interfaces 接口列表，按创建顺序排列
	Interfaces []*Interface

	// RouteTable AVL路由表，仅路由器类型持有
	RouteTable *routing.Table

	// PolicyTrie 前缀策略Trie，仅路由器类型持有
	PolicyTrie *policy.Trie
}

// NewDevice 创建设备
// 路由器类型自动携带路由表和策略Trie
func NewDevice(name string, dt DeviceType) *Device {
	d := &Device{
		Name:   name,
		Type:   dt,
		Online: true,
	}
	if dt.HasRoutingTable() {
		d.RouteTable = routing.NewTable()
	}
	if dt.AppliesPolicy() {
		d.PolicyTrie = policy.NewTrie()
	}
	return d
}

// AddInterface 添加接口，同名接口已存在时报错
func (d *Device) AddInterface(name string) (*Interface, error) {
	if d.Interface(name) != nil {
		return nil, fmt.Errorf("设备 %s 上已存在接口 %s", d.Name, name)
	}
	iface := &Interface{Name: name, owner: d}
	d.Interfaces = append(d.Interfaces, iface)
	return iface, nil
}

// Interface 按名称查找接口，不存在返回nil
func (d *Device) Interface(name string) *Interface {
	for _, iface := range d.Interfaces {
		if iface.Name == name {
			return iface
		}
	}
	return nil
}

// OwnsAddr 设备的某个接口是否持有该地址
func (d *Device) OwnsAddr(addr uint32) bool {
	for _, iface := range d.Interfaces {
		if a, ok := iface.Addr(); ok && a == addr {
			return true
		}
	}
	return false
}
