package netaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIPv4(t *testing.T) {
	addr, err := ParseIPv4("10.0.1.2")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A000102), addr)
	assert.Equal(t, "10.0.1.2", FormatIPv4(addr))

	// 边界值
	addr, err = ParseIPv4("0.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), addr)

	addr, err = ParseIPv4("255.255.255.255")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), addr)

	// 非法输入
	for _, s := range []string{"", "10.0.1", "10.0.1.2.3", "256.0.0.1", "a.b.c.d", "10.0.1.-1"} {
		_, err := ParseIPv4(s)
		assert.Error(t, err, "应拒绝 %q", s)
	}
}

func TestParseMaskLen(t *testing.T) {
	// 点分十进制掩码
	n, err := ParseMaskLen("255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = ParseMaskLen("255.255.0.0")
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	n, err = ParseMaskLen("0.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = ParseMaskLen("255.255.255.255")
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	// 纯数字形式
	n, err = ParseMaskLen("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	// 非连续掩码和越界值
	for _, s := range []string{"255.0.255.0", "0.255.0.0", "33", "-1", "mask"} {
		_, err := ParseMaskLen(s)
		assert.Error(t, err, "应拒绝 %q", s)
	}
}

func TestMaskRoundTrip(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFF00), MaskFromLen(24))
	assert.Equal(t, uint32(0), MaskFromLen(0))
	assert.Equal(t, uint32(0xFFFFFFFF), MaskFromLen(32))
	assert.Equal(t, "255.255.255.0", FormatMask(24))
	assert.Equal(t, "0.0.0.0", FormatMask(0))
}

func TestContains(t *testing.T) {
	prefix, _ := ParseIPv4("10.0.1.0")
	in, _ := ParseIPv4("10.0.1.200")
	out, _ := ParseIPv4("10.0.2.1")

	assert.True(t, Contains(prefix, 24, in))
	assert.False(t, Contains(prefix, 24, out))
	// 掩码长度0覆盖一切
	assert.True(t, Contains(0, 0, out))
}

func TestBit(t *testing.T) {
	addr, _ := ParseIPv4("128.0.0.1")
	assert.Equal(t, 1, Bit(addr, 0), "最高位")
	assert.Equal(t, 0, Bit(addr, 1))
	assert.Equal(t, 1, Bit(addr, 31), "最低位")
}
