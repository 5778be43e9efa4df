package topology

import (
	"encoding/json"
	"fmt"
)

// 拓扑的JSON序列化
// 格式与持久化配置文件一致，快照负载也是同一结构：
//
//	{ "devices": [...], "connections": [[dev1, iface1, dev2, iface2], ...] }

// interfaceJSON 接口的序列化形式
type interfaceJSON struct {
	Name      string  `json:"name"`
	IPAddress *string `json:"ip_address"`
	Status    string  `json:"status"`
}

// deviceJSON 设备的序列化形式
type deviceJSON struct {
	Name       string          `json:"name"`
	DeviceType string          `json:"device_type"`
	Online     bool            `json:"online"`
	Interfaces []interfaceJSON `json:"interfaces"`
}

// topologyJSON 整个拓扑的序列化形式
type topologyJSON struct {
	Devices     []deviceJSON `json:"devices"`
	Connections [][4]string  `json:"connections"`
}

// Marshal 把当前拓扑序列化为JSON
// 链路无向，每条只输出一次（按首次遇到的方向）
func (t *Topology) Marshal() ([]byte, error) {
	out := topologyJSON{
		Devices:     make([]deviceJSON, 0, len(t.devices)),
		Connections: [][4]string{},
	}

	for _, d := range t.devices {
		dj := deviceJSON{
			Name:       d.Name,
			DeviceType: d.Type.String(),
			Online:     d.Online,
			Interfaces: make([]interfaceJSON, 0, len(d.Interfaces)),
		}
		for _, iface := range d.Interfaces {
			ij := interfaceJSON{Name: iface.Name, Status: "down"}
			if iface.Up {
				ij.Status = "up"
			}
			if iface.IPAddress != "" {
				ip := iface.IPAddress
				ij.IPAddress = &ip
			}
			dj.Interfaces = append(dj.Interfaces, ij)
		}
		out.Devices = append(out.Devices, dj)
	}

	seen := make(map[[4]string]bool)
	for _, d := range t.devices {
		for _, iface := range d.Interfaces {
			peerDev, peerIface := iface.Peer()
			if peerDev == nil {
				continue
			}
			conn := [4]string{d.Name, iface.Name, peerDev.Name, peerIface.Name}
			rev := [4]string{peerDev.Name, peerIface.Name, d.Name, iface.Name}
			if seen[conn] || seen[rev] {
				continue
			}
			seen[conn] = true
			out.Connections = append(out.Connections, conn)
		}
	}

	return json.MarshalIndent(out, "", "    ")
}

// Restore 从JSON重建拓扑，原有设备和链路全部丢弃
// 路由表和策略在该格式中不持久化，恢复出的路由器携带空表
func (t *Topology) Restore(data []byte) error {
	var in topologyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("解析拓扑JSON失败: %w", err)
	}

	fresh := New()
	for _, dj := range in.Devices {
		dt, err := ParseDeviceType(dj.DeviceType)
		if err != nil {
			return err
		}
		d, err := fresh.AddDevice(dj.Name, dt)
		if err != nil {
			return err
		}
		d.Online = dj.Online
		for _, ij := range dj.Interfaces {
			iface, err := d.AddInterface(ij.Name)
			if err != nil {
				return err
			}
			if ij.IPAddress != nil && *ij.IPAddress != "" {
				if err := iface.SetIP(*ij.IPAddress); err != nil {
					return err
				}
			}
			iface.Up = ij.Status == "up"
		}
	}
	for _, conn := range in.Connections {
		if err := fresh.Connect(conn[0], conn[1], conn[2], conn[3]); err != nil {
			return err
		}
	}

	t.devices = fresh.devices
	t.byName = fresh.byName
	return nil
}
