package topology

import (
	"fmt"
)

// Topology 网络拓扑存储
// 持有全部设备、接口和链路，是纯数据层：配置命令直接修改它，
// 转发引擎只读地查询它
type Topology struct {
	devices []*Device
	byName  map[string]*Device
}

// New 创建空拓扑
func New() *Topology {
	return &Topology{byName: make(map[string]*Device)}
}

// AddDevice 添加设备，设备名已存在时报错
func (t *Topology) AddDevice(name string, dt DeviceType) (*Device, error) {
	if _, ok := t.byName[name]; ok {
		return nil, fmt.Errorf("设备 %s 已存在", name)
	}
	d := NewDevice(name, dt)
	t.devices = append(t.devices, d)
	t.byName[name] = d
	return d, nil
}

// Device 按名称查找设备
func (t *Topology) Device(name string) (*Device, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// Devices 返回全部设备，按创建顺序排列
func (t *Topology) Devices() []*Device {
	return t.devices
}

// DeviceByAddr 查找持有该地址的设备及其接口
// 遍历顺序与创建顺序一致，保证结果确定
func (t *Topology) DeviceByAddr(addr uint32) (*Device, *Interface, bool) {
	for _, d := range t.devices {
		for _, iface := range d.Interfaces {
			if a, ok := iface.Addr(); ok && a == addr {
				return d, iface, true
			}
		}
	}
	return nil, nil, false
}

// interfaceOf 定位设备上的接口，任意一级不存在都报错
func (t *Topology) interfaceOf(deviceName, ifaceName string) (*Interface, error) {
	d, ok := t.byName[deviceName]
	if !ok {
		return nil, fmt.Errorf("设备 %s 不存在", deviceName)
	}
	iface := d.Interface(ifaceName)
	if iface == nil {
		return nil, fmt.Errorf("设备 %s 上不存在接口 %s", deviceName, ifaceName)
	}
	return iface, nil
}

// Connect 在两个接口之间建立无向链路
// 任一接口已有链路时返回冲突错误，拓扑保持不变
func (t *Topology) Connect(dev1, iface1, dev2, iface2 string) error {
	a, err := t.interfaceOf(dev1, iface1)
	if err != nil {
		return err
	}
	b, err := t.interfaceOf(dev2, iface2)
	if err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("接口不能与自身相连")
	}
	if a.Linked() {
		return fmt.Errorf("接口 %s/%s 已有链路", dev1, iface1)
	}
	if b.Linked() {
		return fmt.Errorf("接口 %s/%s 已有链路", dev2, iface2)
	}

	a.peer = b
	b.peer = a
	return nil
}

// Disconnect 拆除两个接口之间的链路
// 两个接口之间没有链路时报错
func (t *Topology) Disconnect(dev1, iface1, dev2, iface2 string) error {
	a, err := t.interfaceOf(dev1, iface1)
	if err != nil {
		return err
	}
	b, err := t.interfaceOf(dev2, iface2)
	if err != nil {
		return err
	}
	if a.peer != b {
		return fmt.Errorf("接口 %s/%s 与 %s/%s 之间没有链路", dev1, iface1, dev2, iface2)
	}

	a.peer = nil
	b.peer = nil
	return nil
}

// SetDeviceStatus 设置设备在线状态
func (t *Topology) SetDeviceStatus(name string, online bool) error {
	d, ok := t.byName[name]
	if !ok {
		return fmt.Errorf("设备 %s 不存在", name)
	}
	d.Online = online
	return nil
}
