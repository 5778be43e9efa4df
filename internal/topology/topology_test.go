package topology

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

func TestAddDevice(t *testing.T) {
	topo := New()

	d, err := topo.AddDevice("R1", DeviceRouter)
	require.NoError(t, err)
	assert.True(t, d.Online)
	assert.NotNil(t, d.RouteTable, "路由器应携带路由表")
	assert.NotNil(t, d.PolicyTrie, "路由器应携带策略Trie")

	h, err := topo.AddDevice("PC1", DeviceHost)
	require.NoError(t, err)
	assert.Nil(t, h.RouteTable, "主机不携带路由表")
	assert.Nil(t, h.PolicyTrie)

	// 重名设备
	_, err = topo.AddDevice("R1", DeviceSwitch)
	assert.Error(t, err)
	assert.Len(t, topo.Devices(), 2)
}

func TestAddInterface(t *testing.T) {
	topo := New()
	d, _ := topo.AddDevice("R1", DeviceRouter)

	iface, err := d.AddInterface("eth0")
	require.NoError(t, err)
	assert.False(t, iface.Up, "新接口默认关闭")
	assert.False(t, iface.Linked())

	_, err = d.AddInterface("eth0")
	assert.Error(t, err, "同名接口应报错")

	require.NoError(t, iface.SetIP("10.0.0.1"))
	addr, ok := iface.Addr()
	require.True(t, ok)
	assert.Equal(t, mustIP(t, "10.0.0.1"), addr)
	assert.True(t, d.OwnsAddr(addr))

	assert.Error(t, iface.SetIP("999.0.0.1"))
}

func TestConnectAndDisconnect(t *testing.T) {
	topo := New()
	r1, _ := topo.AddDevice("R1", DeviceRouter)
	r2, _ := topo.AddDevice("R2", DeviceRouter)
	a, _ := r1.AddInterface("eth0")
	b, _ := r2.AddInterface("eth0")
	c, _ := r2.AddInterface("eth1")

	require.NoError(t, topo.Connect("R1", "eth0", "R2", "eth0"))
	pd, pi := a.Peer()
	require.NotNil(t, pd)
	assert.Equal(t, "R2", pd.Name)
	assert.Equal(t, "eth0", pi.Name)
	assert.True(t, b.Linked())

	// 已占用的接口不能再建链路
	err := topo.Connect("R1", "eth0", "R2", "eth1")
	assert.Error(t, err)
	assert.False(t, c.Linked())

	// 接口不能与自身相连
	assert.Error(t, topo.Connect("R2", "eth1", "R2", "eth1"))

	// 不存在的设备或接口
	assert.Error(t, topo.Connect("R9", "eth0", "R2", "eth1"))
	assert.Error(t, topo.Connect("R1", "eth9", "R2", "eth1"))

	require.NoError(t, topo.Disconnect("R1", "eth0", "R2", "eth0"))
	assert.False(t, a.Linked())
	assert.False(t, b.Linked())

	// 没有链路时拆除报错
	assert.Error(t, topo.Disconnect("R1", "eth0", "R2", "eth0"))
}

func TestDeviceByAddr(t *testing.T) {
	topo := New()
	r1, _ := topo.AddDevice("R1", DeviceRouter)
	r2, _ := topo.AddDevice("R2", DeviceRouter)
	a, _ := r1.AddInterface("eth0")
	b, _ := r2.AddInterface("eth0")
	_ = a.SetIP("10.0.0.1")
	_ = b.SetIP("10.0.0.2")

	d, iface, ok := topo.DeviceByAddr(mustIP(t, "10.0.0.2"))
	require.True(t, ok)
	assert.Equal(t, "R2", d.Name)
	assert.Equal(t, "eth0", iface.Name)

	_, _, ok = topo.DeviceByAddr(mustIP(t, "10.0.0.9"))
	assert.False(t, ok)
}

func TestSetDeviceStatus(t *testing.T) {
	topo := New()
	d, _ := topo.AddDevice("R1", DeviceRouter)

	require.NoError(t, topo.SetDeviceStatus("R1", false))
	assert.False(t, d.Online)
	require.NoError(t, topo.SetDeviceStatus("R1", true))
	assert.True(t, d.Online)

	assert.Error(t, topo.SetDeviceStatus("R9", true))
}

func TestParseDeviceType(t *testing.T) {
	for _, s := range []string{"router", "switch", "host", "firewall"} {
		dt, err := ParseDeviceType(s)
		require.NoError(t, err)
		assert.Equal(t, s, dt.String())
	}
	_, err := ParseDeviceType("toaster")
	assert.Error(t, err)
}
