package cli

import (
	"fmt"
	"strings"
)

// Mode 提示符模式
// 沿用路由器控制台的模式阶梯：用户模式、特权模式、全局配置、接口配置
type Mode int

const (
	ModeUser Mode = iota
	ModePrivileged
	ModeGlobalConfig
	ModeInterfaceConfig
)

// Prompt 提示符状态机
// 跟踪当前选中的设备、接口和模式，并渲染对应的提示符
type Prompt struct {
	deviceName string
	mode       Mode
	iface      string
}

// NewPrompt 创建提示符状态机，初始为用户模式
func NewPrompt() *Prompt {
	return &Prompt{deviceName: "Device", mode: ModeUser}
}

// SetDeviceName 更新提示符中的设备名
func (p *Prompt) SetDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("设备名不能为空")
	}
	if strings.Contains(name, " ") {
		return fmt.Errorf("设备名不能包含空格")
	}
	p.deviceName = name
	return nil
}

// DeviceName 返回当前选中的设备名
func (p *Prompt) DeviceName() string {
	return p.deviceName
}

// Mode 返回当前模式
func (p *Prompt) Mode() Mode {
	return p.mode
}

// Interface 返回当前选中的接口名，非接口配置模式下为空串
func (p *Prompt) Interface() string {
	return p.iface
}

// String 渲染当前提示符
func (p *Prompt) String() string {
	switch p.mode {
	case ModePrivileged:
		return p.deviceName + "# "
	case ModeGlobalConfig:
		return p.deviceName + "(config)# "
	case ModeInterfaceConfig:
		return p.deviceName + "(config-if)# "
	default:
		return p.deviceName + "> "
	}
}

// Elevate 进入特权模式
func (p *Prompt) Elevate() {
	p.mode = ModePrivileged
	p.iface = ""
}

// EnterGlobalConfig 进入全局配置模式
func (p *Prompt) EnterGlobalConfig() {
	p.mode = ModeGlobalConfig
	p.iface = ""
}

// EnterInterfaceConfig 进入接口配置模式
func (p *Prompt) EnterInterfaceConfig(iface string) error {
	iface = strings.TrimSpace(iface)
	if iface == "" {
		return fmt.Errorf("接口名不能为空")
	}
	p.mode = ModeInterfaceConfig
	p.iface = iface
	return nil
}

// ExitMode 退回上一级模式
func (p *Prompt) ExitMode() {
	switch p.mode {
	case ModeInterfaceConfig:
		p.mode = ModeGlobalConfig
		p.iface = ""
	case ModeGlobalConfig:
		p.mode = ModePrivileged
	case ModePrivileged:
		p.mode = ModeUser
	}
}

// Reset 重置回用户模式
func (p *Prompt) Reset() {
	p.mode = ModeUser
	p.iface = ""
}
