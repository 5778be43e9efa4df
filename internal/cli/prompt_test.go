package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptModeLadder(t *testing.T) {
	p := NewPrompt()
	require.NoError(t, p.SetDeviceName("R1"))

	assert.Equal(t, ModeUser, p.Mode())
	assert.Equal(t, "R1> ", p.String())

	p.Elevate()
	assert.Equal(t, ModePrivileged, p.Mode())
	assert.Equal(t, "R1# ", p.String())

	p.EnterGlobalConfig()
	assert.Equal(t, "R1(config)# ", p.String())

	require.NoError(t, p.EnterInterfaceConfig("eth0"))
	assert.Equal(t, "R1(config-if)# ", p.String())
	assert.Equal(t, "eth0", p.Interface())

	// 逐级退出
	p.ExitMode()
	assert.Equal(t, ModeGlobalConfig, p.Mode())
	assert.Equal(t, "", p.Interface())
	p.ExitMode()
	assert.Equal(t, ModePrivileged, p.Mode())
	p.ExitMode()
	assert.Equal(t, ModeUser, p.Mode())
	// 用户模式下exit不再下降
	p.ExitMode()
	assert.Equal(t, ModeUser, p.Mode())
}

func TestPromptReset(t *testing.T) {
	p := NewPrompt()
	require.NoError(t, p.SetDeviceName("R1"))
	p.Elevate()
	p.EnterGlobalConfig()
	require.NoError(t, p.EnterInterfaceConfig("eth0"))

	p.Reset()
	assert.Equal(t, ModeUser, p.Mode())
	assert.Equal(t, "", p.Interface())
	assert.Equal(t, "R1", p.DeviceName(), "重置不改变设备名")
}

func TestSetDeviceNameValidation(t *testing.T) {
	p := NewPrompt()
	assert.Error(t, p.SetDeviceName(""))
	assert.Error(t, p.SetDeviceName("  "))
	assert.Error(t, p.SetDeviceName("a b"))
	require.NoError(t, p.SetDeviceName(" R2 "))
	assert.Equal(t, "R2", p.DeviceName())
}

func TestEnterInterfaceConfigValidation(t *testing.T) {
	p := NewPrompt()
	assert.Error(t, p.EnterInterfaceConfig(""))
	assert.Error(t, p.EnterInterfaceConfig("   "))
}
