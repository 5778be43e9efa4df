package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lan-sim/internal/config"
	"lan-sim/internal/errlog"
	"lan-sim/internal/forwarding"
	"lan-sim/internal/logging"
	"lan-sim/internal/netaddr"
	"lan-sim/internal/policy"
	"lan-sim/internal/routing"
	"lan-sim/internal/snapshot"
	"lan-sim/internal/topology"

	"github.com/chzyer/readline"
)

// CLI 命令行控制台
// 提示符沿用路由器控制台的模式阶梯，配置命令修改拓扑和路由表，
// send/tick驱动转发引擎，show系列查询各数据结构的状态
type CLI struct {
	topo          *topology.Topology
	engine        *forwarding.Engine
	errors        *errlog.Log
	index         *snapshot.Index
	store         *snapshot.Store
	configManager *config.Manager
	logger        *logging.Logger
	prompt        *Prompt
	running       bool
	exitChan      chan bool
	rl            *readline.Instance
	historyFile   string
}

// NewCLI 创建CLI实例
// store为nil表示快照只保存在内存索引中，不写数据库
func NewCLI(
	topo *topology.Topology,
	engine *forwarding.Engine,
	errs *errlog.Log,
	index *snapshot.Index,
	store *snapshot.Store,
	cm *config.Manager,
	logger *logging.Logger,
) *CLI {
	historyFile := cm.Config().HistoryFile
	if historyFile == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "/tmp"
		}
		historyFile = filepath.Join(homeDir, ".lan-sim_history")
	}

	return &CLI{
		topo:          topo,
		engine:        engine,
		errors:        errs,
		index:         index,
		store:         store,
		configManager: cm,
		logger:        logger,
		prompt:        NewPrompt(),
		running:       false,
		exitChan:      make(chan bool, 1),
		historyFile:   historyFile,
	}
}

// Start 启动CLI
func (cli *CLI) Start() {
	cli.running = true
	fmt.Println("LAN模拟器控制台已启动")
	fmt.Println("输入 'help' 查看可用命令")
	fmt.Println("使用上下方向键浏览命令历史，Tab键自动补全")

	// 创建自动补全器
	completer := cli.createCompleter()

	// 配置readline
	cfg := &readline.Config{
		Prompt:          cli.prompt.String(),
		HistoryFile:     cli.historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}

	var err error
	cli.rl, err = readline.NewEx(cfg)
	if err != nil {
		fmt.Printf("初始化CLI失败: %v\n", err)
		return
	}
	defer func() {
		_ = cli.rl.Close()
	}()

	for cli.running {
		cli.rl.SetPrompt(cli.prompt.String())
		line, err := cli.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if err == io.EOF {
				break
			}
			fmt.Printf("读取输入失败: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cli.processCommand(line)
	}
}

// Stop 停止CLI
func (cli *CLI) Stop() {
	cli.running = false
	select {
	case cli.exitChan <- true:
	default:
	}
}

// GetExitChan 获取退出信号channel
func (cli *CLI) GetExitChan() <-chan bool {
	return cli.exitChan
}

// processCommand 处理命令
func (cli *CLI) processCommand(line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "help":
		cli.showHelp()
	case "enable":
		cli.prompt.Elevate()
	case "disable":
		cli.prompt.Reset()
	case "configure":
		cli.handleConfigure(args, line)
	case "exit":
		if cli.prompt.Mode() == ModeUser {
			cli.Stop()
		} else {
			cli.prompt.ExitMode()
		}
	case "end":
		if cli.prompt.Mode() != ModeUser {
			cli.prompt.Elevate()
		}
	case "quit":
		cli.Stop()
	case "hostname":
		cli.handleHostname(args, line)
	case "interface":
		cli.handleInterface(args, line)
	case "ip":
		cli.handleIP(args, line)
	case "no":
		cli.handleNo(args, line)
	case "shutdown":
		cli.handleShutdown(line, false)
	case "device":
		cli.handleDevice(args, line)
	case "connect":
		cli.handleConnect(args, line)
	case "disconnect":
		cli.handleDisconnect(args, line)
	case "list_devices":
		cli.showDevices()
	case "set_device_status":
		cli.handleSetDeviceStatus(args, line)
	case "show":
		cli.handleShow(args, line)
	case "send":
		cli.handleSend(args, line)
	case "tick", "process":
		cli.handleTick(line)
	case "save":
		cli.handleSave(args, line)
	case "load":
		cli.handleLoad(args, line)
	case "policy":
		cli.handlePolicy(args, line)
	case "btree":
		cli.handleBTree(args)
	default:
		cli.commandError(fmt.Sprintf("未知命令: %s", command), line)
		fmt.Println("输入 'help' 查看可用命令")
	}
}

// commandError 打印并记录一条命令错误
func (cli *CLI) commandError(message, line string) {
	fmt.Println(message)
	cli.errors.Append(errlog.KindCommand, message, line)
}

// requireMode 检查当前模式，不满足时打印提示并记录错误
func (cli *CLI) requireMode(mode Mode, usage, line string) bool {
	if cli.prompt.Mode() == mode {
		return true
	}
	cli.commandError("该命令在当前模式下不可用: "+usage, line)
	return false
}

// requirePrivileged 检查是否已进入特权模式（含配置模式）
func (cli *CLI) requirePrivileged(usage, line string) bool {
	if cli.prompt.Mode() != ModeUser {
		return true
	}
	cli.commandError("该命令需要特权模式，请先执行 enable: "+usage, line)
	return false
}

// currentDevice 返回提示符当前选中的设备
func (cli *CLI) currentDevice(line string) *topology.Device {
	d, ok := cli.topo.Device(cli.prompt.DeviceName())
	if !ok {
		msg := fmt.Sprintf("设备 %s 不存在，请先用 hostname 或 device add 创建", cli.prompt.DeviceName())
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return nil
	}
	return d
}

// currentRouter 返回当前选中的设备并要求它是路由器
func (cli *CLI) currentRouter(line string) *topology.Device {
	d := cli.currentDevice(line)
	if d == nil {
		return nil
	}
	if !d.Type.HasRoutingTable() {
		msg := fmt.Sprintf("设备 %s 不是路由器，没有路由表", d.Name)
		fmt.Println(msg)
		cli.errors.Append(errlog.KindStateConflict, msg, line)
		return nil
	}
	return d
}

// handleConfigure 处理configure terminal
func (cli *CLI) handleConfigure(args []string, line string) {
	if len(args) != 1 || args[0] != "terminal" {
		cli.commandError("用法: configure terminal", line)
		return
	}
	if !cli.requireMode(ModePrivileged, "configure terminal", line) {
		return
	}
	cli.prompt.EnterGlobalConfig()
}

// handleHostname 处理hostname命令
// 设备不存在时按路由器类型创建，存在时仅切换提示符选中的设备
func (cli *CLI) handleHostname(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: hostname <设备名>", line)
		return
	}
	if !cli.requireMode(ModeGlobalConfig, "hostname <设备名>", line) {
		return
	}

	name := args[0]
	if err := cli.prompt.SetDeviceName(name); err != nil {
		fmt.Printf("设置设备名失败: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}

	if _, ok := cli.topo.Device(name); !ok {
		if _, err := cli.topo.AddDevice(name, topology.DeviceRouter); err != nil {
			fmt.Printf("创建设备失败: %v\n", err)
			return
		}
		fmt.Printf("设备 %s 不存在，已创建为路由器\n", name)
	}
}

// handleInterface 处理interface命令，进入接口配置模式
// 接口不存在时自动创建
func (cli *CLI) handleInterface(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: interface <接口名>", line)
		return
	}
	if !cli.requireMode(ModeGlobalConfig, "interface <接口名>", line) {
		return
	}

	d := cli.currentDevice(line)
	if d == nil {
		return
	}

	name := args[0]
	if d.Interface(name) == nil {
		if _, err := d.AddInterface(name); err != nil {
			fmt.Printf("创建接口失败: %v\n", err)
			return
		}
		fmt.Printf("接口 %s 已创建\n", name)
	}
	if err := cli.prompt.EnterInterfaceConfig(name); err != nil {
		fmt.Printf("进入接口配置失败: %v\n", err)
	}
}

// currentInterface 返回接口配置模式下选中的接口
func (cli *CLI) currentInterface(line string) *topology.Interface {
	d := cli.currentDevice(line)
	if d == nil {
		return nil
	}
	iface := d.Interface(cli.prompt.Interface())
	if iface == nil {
		msg := fmt.Sprintf("设备 %s 上不存在接口 %s", d.Name, cli.prompt.Interface())
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return nil
	}
	return iface
}

// handleNo 处理no shutdown
func (cli *CLI) handleNo(args []string, line string) {
	if len(args) != 1 || args[0] != "shutdown" {
		cli.commandError("用法: no shutdown", line)
		return
	}
	cli.handleShutdown(line, true)
}

// handleShutdown 切换当前接口的启用状态
func (cli *CLI) handleShutdown(line string, up bool) {
	usage := "shutdown"
	if up {
		usage = "no shutdown"
	}
	if !cli.requireMode(ModeInterfaceConfig, usage, line) {
		return
	}

	iface := cli.currentInterface(line)
	if iface == nil {
		return
	}
	iface.Up = up
	if up {
		fmt.Printf("接口 %s 已启用\n", iface.Name)
	} else {
		fmt.Printf("接口 %s 已关闭\n", iface.Name)
	}
}

// handleIP 处理ip系列命令：ip address、ip route add/del
func (cli *CLI) handleIP(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: ip <address|route> ...", line)
		return
	}

	switch args[0] {
	case "address":
		cli.handleIPAddress(args[1:], line)
	case "route":
		cli.handleIPRoute(args[1:], line)
	default:
		cli.commandError(fmt.Sprintf("未知的ip子命令: %s", args[0]), line)
	}
}

// handleIPAddress 为当前接口分配IP地址
func (cli *CLI) handleIPAddress(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: ip address <IP地址>", line)
		return
	}
	if !cli.requireMode(ModeInterfaceConfig, "ip address <IP地址>", line) {
		return
	}

	iface := cli.currentInterface(line)
	if iface == nil {
		return
	}
	if err := iface.SetIP(args[0]); err != nil {
		fmt.Printf("分配IP地址失败: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	fmt.Printf("接口 %s 的IP地址已设置为 %s\n", iface.Name, args[0])
}

// handleIPRoute 处理静态路由的添加和删除
func (cli *CLI) handleIPRoute(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: ip route <add|del> ...", line)
		return
	}
	if !cli.requireMode(ModeGlobalConfig, "ip route ...", line) {
		return
	}

	d := cli.currentRouter(line)
	if d == nil {
		return
	}

	switch args[0] {
	case "add":
		cli.handleIPRouteAdd(d, args[1:], line)
	case "del":
		cli.handleIPRouteDel(d, args[1:], line)
	default:
		cli.commandError(fmt.Sprintf("未知的ip route子命令: %s", args[0]), line)
	}
}

// handleIPRouteAdd 添加静态路由
// 前缀按掩码规整为网络地址后入表
func (cli *CLI) handleIPRouteAdd(d *topology.Device, args []string, line string) {
	usage := "ip route add <前缀> <掩码> via <下一跳> [metric N]"
	if len(args) != 4 && len(args) != 6 {
		cli.commandError("用法: "+usage, line)
		return
	}
	if args[2] != "via" {
		cli.commandError("用法: "+usage, line)
		return
	}

	prefix, err := netaddr.ParseIPv4(args[0])
	if err != nil {
		fmt.Printf("无效的前缀: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	maskLen, err := netaddr.ParseMaskLen(args[1])
	if err != nil {
		fmt.Printf("无效的掩码: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	nextHop, err := netaddr.ParseIPv4(args[3])
	if err != nil {
		fmt.Printf("无效的下一跳: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}

	metric := 1
	if len(args) == 6 {
		if args[4] != "metric" {
			cli.commandError("用法: "+usage, line)
			return
		}
		metric, err = strconv.Atoi(args[5])
		if err != nil || metric < 0 {
			msg := fmt.Sprintf("无效的度量值: %s", args[5])
			fmt.Println(msg)
			cli.errors.Append(errlog.KindValidation, msg, line)
			return
		}
	}

	prefix &= netaddr.MaskFromLen(maskLen)
	result := d.RouteTable.Insert(prefix, maskLen, nextHop, metric)
	entry := routing.Entry{Prefix: prefix, MaskLen: maskLen, NextHop: nextHop, Metric: metric}
	if result == routing.RouteUpdated {
		fmt.Printf("路由已更新: %s\n", entry)
	} else {
		fmt.Printf("路由已添加: %s\n", entry)
	}
}

// handleIPRouteDel 删除静态路由
func (cli *CLI) handleIPRouteDel(d *topology.Device, args []string, line string) {
	if len(args) != 2 {
		cli.commandError("用法: ip route del <前缀> <掩码>", line)
		return
	}

	prefix, err := netaddr.ParseIPv4(args[0])
	if err != nil {
		fmt.Printf("无效的前缀: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	maskLen, err := netaddr.ParseMaskLen(args[1])
	if err != nil {
		fmt.Printf("无效的掩码: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}

	prefix &= netaddr.MaskFromLen(maskLen)
	if !d.RouteTable.Delete(prefix, maskLen) {
		msg := fmt.Sprintf("路由 %s/%s 不存在", netaddr.FormatIPv4(prefix), netaddr.FormatMask(maskLen))
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return
	}
	fmt.Printf("路由 %s/%s 已删除\n", netaddr.FormatIPv4(prefix), netaddr.FormatMask(maskLen))
}

// handlePolicy 处理前缀策略的设置和清除
func (cli *CLI) handlePolicy(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: policy <set|unset> ...", line)
		return
	}
	if !cli.requireMode(ModeGlobalConfig, "policy ...", line) {
		return
	}

	d := cli.currentRouter(line)
	if d == nil {
		return
	}

	switch args[0] {
	case "set":
		cli.handlePolicySet(d, args[1:], line)
	case "unset":
		cli.handlePolicyUnset(d, args[1:], line)
	default:
		cli.commandError(fmt.Sprintf("未知的policy子命令: %s", args[0]), line)
	}
}

// handlePolicySet 在前缀上设置策略
func (cli *CLI) handlePolicySet(d *topology.Device, args []string, line string) {
	usage := "policy set <前缀> <掩码> {block | ttl-min <N>}"
	if len(args) < 3 {
		cli.commandError("用法: "+usage, line)
		return
	}

	prefix, err := netaddr.ParseIPv4(args[0])
	if err != nil {
		fmt.Printf("无效的前缀: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	maskLen, err := netaddr.ParseMaskLen(args[1])
	if err != nil {
		fmt.Printf("无效的掩码: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	prefix &= netaddr.MaskFromLen(maskLen)

	var pol policy.Policy
	switch args[2] {
	case "block":
		if len(args) != 3 {
			cli.commandError("用法: "+usage, line)
			return
		}
		pol = policy.Policy{Kind: policy.KindBlock}
	case "ttl-min":
		if len(args) != 4 {
			cli.commandError("用法: "+usage, line)
			return
		}
		n, err := strconv.Atoi(args[3])
		if err != nil || n <= 0 {
			msg := fmt.Sprintf("无效的TTL阈值: %s", args[3])
			fmt.Println(msg)
			cli.errors.Append(errlog.KindValidation, msg, line)
			return
		}
		pol = policy.Policy{Kind: policy.KindTTLMin, TTLMin: n}
	default:
		cli.commandError(fmt.Sprintf("未知的策略类型: %s", args[2]), line)
		return
	}

	d.PolicyTrie.SetPolicy(prefix, maskLen, pol)
	fmt.Printf("策略已设置: %s/%s {%s}\n",
		netaddr.FormatIPv4(prefix), netaddr.FormatMask(maskLen), pol)
}

// handlePolicyUnset 清除前缀上的策略
func (cli *CLI) handlePolicyUnset(d *topology.Device, args []string, line string) {
	if len(args) != 2 {
		cli.commandError("用法: policy unset <前缀> <掩码>", line)
		return
	}

	prefix, err := netaddr.ParseIPv4(args[0])
	if err != nil {
		fmt.Printf("无效的前缀: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	maskLen, err := netaddr.ParseMaskLen(args[1])
	if err != nil {
		fmt.Printf("无效的掩码: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	prefix &= netaddr.MaskFromLen(maskLen)

	if !d.PolicyTrie.UnsetPolicy(prefix, maskLen) {
		msg := fmt.Sprintf("前缀 %s/%s 上没有策略", netaddr.FormatIPv4(prefix), netaddr.FormatMask(maskLen))
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return
	}
	fmt.Printf("策略已清除: %s/%s\n", netaddr.FormatIPv4(prefix), netaddr.FormatMask(maskLen))
}

// handleDevice 处理device命令
func (cli *CLI) handleDevice(args []string, line string) {
	if len(args) != 3 || args[0] != "add" {
		cli.commandError("用法: device add <设备名> <router|switch|host|firewall>", line)
		return
	}
	if !cli.requirePrivileged("device add ...", line) {
		return
	}

	dt, err := topology.ParseDeviceType(args[2])
	if err != nil {
		fmt.Printf("添加设备失败: %v\n", err)
		cli.errors.Append(errlog.KindValidation, err.Error(), line)
		return
	}
	if _, err := cli.topo.AddDevice(args[1], dt); err != nil {
		fmt.Printf("添加设备失败: %v\n", err)
		cli.errors.Append(errlog.KindStateConflict, err.Error(), line)
		return
	}
	fmt.Printf("设备 %s (%s) 已添加\n", args[1], dt)
}

// handleConnect 在两个接口之间建立链路
func (cli *CLI) handleConnect(args []string, line string) {
	if len(args) != 4 {
		cli.commandError("用法: connect <设备1> <接口1> <设备2> <接口2>", line)
		return
	}
	if !cli.requirePrivileged("connect ...", line) {
		return
	}

	if err := cli.topo.Connect(args[0], args[1], args[2], args[3]); err != nil {
		fmt.Printf("建立链路失败: %v\n", err)
		cli.errors.Append(errlog.KindStateConflict, err.Error(), line)
		return
	}
	fmt.Printf("链路已建立: %s/%s <-> %s/%s\n", args[0], args[1], args[2], args[3])
}

// handleDisconnect 拆除两个接口之间的链路
func (cli *CLI) handleDisconnect(args []string, line string) {
	if len(args) != 4 {
		cli.commandError("用法: disconnect <设备1> <接口1> <设备2> <接口2>", line)
		return
	}
	if !cli.requirePrivileged("disconnect ...", line) {
		return
	}

	if err := cli.topo.Disconnect(args[0], args[1], args[2], args[3]); err != nil {
		fmt.Printf("拆除链路失败: %v\n", err)
		cli.errors.Append(errlog.KindNotFound, err.Error(), line)
		return
	}
	fmt.Printf("链路已拆除: %s/%s <-> %s/%s\n", args[0], args[1], args[2], args[3])
}

// handleSetDeviceStatus 设置设备在线状态
func (cli *CLI) handleSetDeviceStatus(args []string, line string) {
	if len(args) != 2 || (args[1] != "online" && args[1] != "offline") {
		cli.commandError("用法: set_device_status <设备名> <online|offline>", line)
		return
	}
	if !cli.requirePrivileged("set_device_status ...", line) {
		return
	}

	if err := cli.topo.SetDeviceStatus(args[0], args[1] == "online"); err != nil {
		fmt.Printf("设置设备状态失败: %v\n", err)
		cli.errors.Append(errlog.KindNotFound, err.Error(), line)
		return
	}
	fmt.Printf("设备 %s 已设为 %s\n", args[0], args[1])
}

// showDevices 显示全部设备
func (cli *CLI) showDevices() {
	devices := cli.topo.Devices()
	if len(devices) == 0 {
		fmt.Println("拓扑中没有设备")
		return
	}

	fmt.Printf("%-15s %-10s %-8s %s\n", "设备名", "类型", "状态", "接口数")
	fmt.Println(strings.Repeat("-", 50))
	for _, d := range devices {
		status := "offline"
		if d.Online {
			status = "online"
		}
		fmt.Printf("%-15s %-10s %-8s %d\n", d.Name, d.Type, status, len(d.Interfaces))
	}
}

// handleShow 处理show系列命令
func (cli *CLI) handleShow(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: show <interfaces|connections|queue|history|statistics|error-log|snapshots|ip|route|devices>", line)
		return
	}
	if !cli.requirePrivileged("show ...", line) {
		return
	}

	switch args[0] {
	case "interfaces":
		cli.showInterfaces(args[1:], line)
	case "connections":
		cli.showConnections(args[1:], line)
	case "queue":
		cli.showQueue(args[1:])
	case "history":
		cli.showHistory(args[1:], line)
	case "statistics":
		cli.showStatistics()
	case "error-log":
		cli.showErrorLog(args[1:], line)
	case "snapshots":
		cli.showSnapshots()
	case "devices":
		cli.showDevices()
	case "ip":
		cli.showIP(args[1:], line)
	case "route":
		cli.showRoute(args[1:], line)
	default:
		cli.commandError(fmt.Sprintf("未知的show子命令: %s", args[0]), line)
	}
}

// showIP 处理show ip系列命令
func (cli *CLI) showIP(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: show ip <route|route-tree|prefix-tree>", line)
		return
	}

	d := cli.currentRouter(line)
	if d == nil {
		return
	}

	switch args[0] {
	case "route":
		entries := d.RouteTable.InOrder()
		if len(entries) == 0 {
			fmt.Printf("%s 的路由表为空\n", d.Name)
			return
		}
		fmt.Printf("%s 的路由表 (%d 条):\n", d.Name, len(entries))
		for _, e := range entries {
			fmt.Printf("  %s\n", e)
		}
	case "route-tree":
		fmt.Print(d.RouteTable.RenderTree())
	case "prefix-tree":
		fmt.Print(d.PolicyTrie.Render())
	default:
		cli.commandError(fmt.Sprintf("未知的show ip子命令: %s", args[0]), line)
	}
}

// showRoute 处理show route avl-stats
func (cli *CLI) showRoute(args []string, line string) {
	if len(args) != 1 || args[0] != "avl-stats" {
		cli.commandError("用法: show route avl-stats", line)
		return
	}

	d := cli.currentRouter(line)
	if d == nil {
		return
	}

	s := d.RouteTable.Stats()
	fmt.Printf("%s 的路由表结构统计:\n", d.Name)
	fmt.Printf("  节点数: %d\n", s.Nodes)
	fmt.Printf("  树高度: %d\n", s.Height)
	fmt.Printf("  旋转次数: LL=%d LR=%d RL=%d RR=%d 总计=%d\n",
		s.LL, s.LR, s.RL, s.RR, s.Rotations())
}

// showInterfaces 显示设备的接口信息
func (cli *CLI) showInterfaces(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: show interfaces <设备名>", line)
		return
	}

	d, ok := cli.topo.Device(args[0])
	if !ok {
		msg := fmt.Sprintf("设备 %s 不存在", args[0])
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return
	}
	if len(d.Interfaces) == 0 {
		fmt.Printf("设备 %s 没有接口\n", d.Name)
		return
	}

	fmt.Printf("%-12s %-15s %-6s %s\n", "接口", "IP地址", "状态", "对端")
	fmt.Println(strings.Repeat("-", 55))
	for _, iface := range d.Interfaces {
		ipAddr := "未配置"
		if iface.IPAddress != "" {
			ipAddr = iface.IPAddress
		}
		status := "down"
		if iface.Up {
			status = "up"
		}
		peer := "-"
		if pd, pi := iface.Peer(); pd != nil {
			peer = pd.Name + "/" + pi.Name
		}
		fmt.Printf("%-12s %-15s %-6s %s\n", iface.Name, ipAddr, status, peer)
	}
}

// showConnections 显示设备的全部链路
func (cli *CLI) showConnections(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: show connections <设备名>", line)
		return
	}

	d, ok := cli.topo.Device(args[0])
	if !ok {
		msg := fmt.Sprintf("设备 %s 不存在", args[0])
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return
	}

	count := 0
	for _, iface := range d.Interfaces {
		if pd, pi := iface.Peer(); pd != nil {
			fmt.Printf("%s/%s <-> %s/%s\n", d.Name, iface.Name, pd.Name, pi.Name)
			count++
		}
	}
	if count == 0 {
		fmt.Printf("设备 %s 没有链路\n", d.Name)
	}
}

// showQueue 显示在网数据包队列
// 不带参数时显示全局队列，带设备名时只显示停留在该设备上的包
func (cli *CLI) showQueue(args []string) {
	var packets []forwarding.Packet
	if len(args) == 0 {
		packets = cli.engine.Queue()
	} else {
		packets = cli.engine.QueueFor(args[0])
	}

	if len(packets) == 0 {
		fmt.Println("队列为空")
		return
	}
	fmt.Printf("队列中有 %d 个数据包:\n", len(packets))
	for _, p := range packets {
		fmt.Printf("  %s 持有者=%s\n", p.Summary(), p.Holder)
	}
}

// showHistory 显示设备的数据包历史
func (cli *CLI) showHistory(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: show history <设备名>", line)
		return
	}

	if _, ok := cli.topo.Device(args[0]); !ok {
		msg := fmt.Sprintf("设备 %s 不存在", args[0])
		fmt.Println(msg)
		cli.errors.Append(errlog.KindNotFound, msg, line)
		return
	}

	records := cli.engine.History(args[0])
	if len(records) == 0 {
		fmt.Printf("设备 %s 没有历史记录\n", args[0])
		return
	}
	fmt.Printf("设备 %s 的历史记录 (%d 条):\n", args[0], len(records))
	for _, rec := range records {
		fmt.Printf("  %s  %s\n", rec.Summary, rec.OutcomeText())
	}
}

// showStatistics 显示全局转发统计
func (cli *CLI) showStatistics() {
	s := cli.engine.Stats()
	queued := len(cli.engine.Queue())

	fmt.Println("转发统计:")
	fmt.Printf("  已发送: %d\n", s.Sent)
	fmt.Printf("  已交付: %d\n", s.Delivered)
	fmt.Printf("  丢弃(TTL耗尽): %d\n", s.DroppedTTL)
	fmt.Printf("  丢弃(策略阻断): %d\n", s.DroppedPolicy)
	fmt.Printf("  丢弃(无路由): %d\n", s.DroppedNoRoute)
	fmt.Printf("  丢弃(接口关闭): %d\n", s.DroppedIfaceDown)
	fmt.Printf("  转发跳数: %d\n", s.ForwardedHops)
	fmt.Printf("  队列中: %d\n", queued)
}

// showErrorLog 显示最近的错误记录
func (cli *CLI) showErrorLog(args []string, line string) {
	n := 0
	if len(args) == 1 {
		var err error
		n, err = strconv.Atoi(args[0])
		if err != nil || n < 0 {
			cli.commandError(fmt.Sprintf("无效的条数: %s", args[0]), line)
			return
		}
	} else if len(args) > 1 {
		cli.commandError("用法: show error-log [条数]", line)
		return
	}

	entries := cli.errors.Last(n)
	if len(entries) == 0 {
		fmt.Println("无错误记录")
		return
	}
	for _, e := range entries {
		fmt.Println(e)
	}
}

// showSnapshots 按键升序显示快照索引中的全部快照
func (cli *CLI) showSnapshots() {
	count := 0
	for key, payload := range cli.index.All() {
		fmt.Printf("  %s  (%d 字节)\n", key, len(payload))
		count++
	}
	if count == 0 {
		fmt.Println("没有已保存的快照")
		return
	}
	fmt.Printf("共 %d 个快照\n", count)
}

// handleBTree 处理btree stats
func (cli *CLI) handleBTree(args []string) {
	if len(args) != 1 || args[0] != "stats" {
		fmt.Println("用法: btree stats")
		return
	}

	s := cli.index.Stats()
	fmt.Println("快照索引结构统计:")
	fmt.Printf("  阶数: %d\n", s.Order)
	fmt.Printf("  键总数: %d\n", s.Keys)
	fmt.Printf("  树高度: %d\n", s.Height)
	fmt.Printf("  节点数: %d\n", s.Nodes)
	fmt.Printf("  分裂次数: %d\n", s.Splits)
	fmt.Printf("  平均填充: %.2f\n", s.AvgFill)
}

// handleSend 处理send命令，构造数据包并入队
// 消息内容允许包含空格，最后一个参数是TTL
func (cli *CLI) handleSend(args []string, line string) {
	if len(args) < 4 {
		cli.commandError("用法: send <源IP> <目的IP> <消息> <TTL>", line)
		return
	}
	if !cli.requirePrivileged("send ...", line) {
		return
	}

	ttl, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		msg := fmt.Sprintf("无效的TTL: %s", args[len(args)-1])
		fmt.Println(msg)
		cli.errors.Append(errlog.KindValidation, msg, line)
		return
	}
	message := strings.Join(args[2:len(args)-1], " ")

	p, err := cli.engine.Send(args[0], args[1], message, ttl, line)
	if err != nil {
		fmt.Printf("发送失败: %v\n", err)
		return
	}
	fmt.Printf("数据包 #%d 已入队: %s -> %s TTL=%d 持有者=%s\n",
		p.Seq, p.SourceIP, p.DestIP, p.TTL, p.Holder)
}

// handleTick 推进一个时钟周期
func (cli *CLI) handleTick(line string) {
	if !cli.requirePrivileged("tick", line) {
		return
	}

	res, ok := cli.engine.Tick()
	if !ok {
		msg := "队列为空，没有数据包可处理"
		fmt.Println(msg)
		cli.errors.Append(errlog.KindQueueEmpty, msg, line)
		return
	}

	switch res.Outcome {
	case forwarding.OutcomeDelivered:
		fmt.Printf("[Tick] 数据包 #%d 在 %s 交付: %q\n",
			res.Packet.Seq, res.Device, res.Packet.Message)
	case forwarding.OutcomeForwarded:
		fmt.Printf("[Tick] 数据包 #%d 由 %s 转发至 %s (TTL=%d)\n",
			res.Packet.Seq, res.Device, res.NextDevice, res.Packet.TTL)
	case forwarding.OutcomeDropped:
		fmt.Printf("[Tick] 数据包 #%d 在 %s 丢弃: %s\n",
			res.Packet.Seq, res.Device, res.Reason)
	}
}

// handleSave 处理save snapshot和save running-config
func (cli *CLI) handleSave(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: save <snapshot <键> | running-config [文件]>", line)
		return
	}
	if !cli.requirePrivileged("save ...", line) {
		return
	}

	switch args[0] {
	case "snapshot":
		cli.handleSaveSnapshot(args[1:], line)
	case "running-config":
		cli.handleSaveRunningConfig(args[1:], line)
	default:
		cli.commandError(fmt.Sprintf("未知的save子命令: %s", args[0]), line)
	}
}

// handleSaveSnapshot 把当前拓扑存入快照索引并写穿到数据库
// 数据库不可用或写入失败时快照仍保留在内存索引中
func (cli *CLI) handleSaveSnapshot(args []string, line string) {
	if len(args) != 1 {
		cli.commandError("用法: save snapshot <键>", line)
		return
	}
	key := args[0]

	payload, err := cli.topo.Marshal()
	if err != nil {
		fmt.Printf("序列化拓扑失败: %v\n", err)
		return
	}

	inserted := cli.index.Put(key, payload)
	if cli.store != nil {
		if err := cli.store.Save(key, payload); err != nil {
			fmt.Printf("快照已写入内存索引，但数据库写入失败: %v\n", err)
			cli.logger.Warn("快照 %s 数据库写入失败: %v", key, err)
		}
	}

	if inserted {
		fmt.Printf("快照 %s 已保存 (%d 字节)\n", key, len(payload))
	} else {
		fmt.Printf("快照 %s 已覆盖 (%d 字节)\n", key, len(payload))
	}
}

// handleSaveRunningConfig 把当前拓扑写到运行配置文件
func (cli *CLI) handleSaveRunningConfig(args []string, line string) {
	path := cli.configManager.Config().RunningConfig
	if len(args) == 1 {
		path = args[0]
	} else if len(args) > 1 {
		cli.commandError("用法: save running-config [文件]", line)
		return
	}

	payload, err := cli.topo.Marshal()
	if err != nil {
		fmt.Printf("序列化拓扑失败: %v\n", err)
		return
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		fmt.Printf("写入配置文件失败: %v\n", err)
		return
	}
	fmt.Printf("运行配置已保存到 %s\n", path)
}

// handleLoad 处理load config和load running-config
// 恢复拓扑后队列中的数据包可能失去持有设备，后续tick会按无路由丢弃
func (cli *CLI) handleLoad(args []string, line string) {
	if len(args) == 0 {
		cli.commandError("用法: load <config <键> | running-config [文件]>", line)
		return
	}
	if !cli.requirePrivileged("load ...", line) {
		return
	}

	switch args[0] {
	case "config":
		if len(args) != 2 {
			cli.commandError("用法: load config <键>", line)
			return
		}
		payload, ok := cli.index.Get(args[1])
		if !ok {
			msg := fmt.Sprintf("快照 %s 不存在", args[1])
			fmt.Println(msg)
			cli.errors.Append(errlog.KindNotFound, msg, line)
			return
		}
		if err := cli.topo.Restore(payload); err != nil {
			fmt.Printf("恢复拓扑失败: %v\n", err)
			cli.errors.Append(errlog.KindValidation, err.Error(), line)
			return
		}
		fmt.Printf("拓扑已从快照 %s 恢复 (%d 台设备)\n", args[1], len(cli.topo.Devices()))

	case "running-config":
		path := cli.configManager.Config().RunningConfig
		if len(args) == 2 {
			path = args[1]
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("读取配置文件失败: %v\n", err)
			cli.errors.Append(errlog.KindNotFound, err.Error(), line)
			return
		}
		if err := cli.topo.Restore(payload); err != nil {
			fmt.Printf("恢复拓扑失败: %v\n", err)
			cli.errors.Append(errlog.KindValidation, err.Error(), line)
			return
		}
		fmt.Printf("拓扑已从 %s 恢复 (%d 台设备)\n", path, len(cli.topo.Devices()))

	default:
		cli.commandError(fmt.Sprintf("未知的load子命令: %s", args[0]), line)
	}
}

// showHelp 显示帮助信息
func (cli *CLI) showHelp() {
	fmt.Println("可用命令:")
	fmt.Println("  help                        - 显示帮助信息")
	fmt.Println("  enable / disable            - 进入/退出特权模式")
	fmt.Println("  configure terminal          - 进入全局配置模式")
	fmt.Println("  hostname <名>               - 选中设备（不存在时创建为路由器）")
	fmt.Println("  interface <名>              - 进入接口配置模式（不存在时创建）")
	fmt.Println("  ip address <IP>             - 为当前接口分配IP地址")
	fmt.Println("  no shutdown / shutdown      - 启用/关闭当前接口")
	fmt.Println("  exit / end                  - 退回上一级模式 / 回到特权模式")
	fmt.Println("  device add <名> <类型>      - 添加设备 (router|switch|host|firewall)")
	fmt.Println("  connect <设1> <口1> <设2> <口2>    - 建立链路")
	fmt.Println("  disconnect <设1> <口1> <设2> <口2> - 拆除链路")
	fmt.Println("  list_devices                - 列出全部设备")
	fmt.Println("  set_device_status <名> <online|offline> - 设置设备状态")
	fmt.Println("  ip route add <前缀> <掩码> via <下一跳> [metric N] - 添加路由")
	fmt.Println("  ip route del <前缀> <掩码>  - 删除路由")
	fmt.Println("  policy set <前缀> <掩码> {block | ttl-min <N>} - 设置策略")
	fmt.Println("  policy unset <前缀> <掩码>  - 清除策略")
	fmt.Println("  send <源IP> <目的IP> <消息> <TTL> - 发送数据包")
	fmt.Println("  tick / process              - 推进一个时钟周期")
	fmt.Println("  show interfaces <设备>      - 显示接口信息")
	fmt.Println("  show connections <设备>     - 显示链路")
	fmt.Println("  show queue [设备]           - 显示数据包队列")
	fmt.Println("  show history <设备>         - 显示数据包历史")
	fmt.Println("  show statistics             - 显示转发统计")
	fmt.Println("  show error-log [条数]       - 显示错误日志")
	fmt.Println("  show ip route               - 显示当前路由器的路由表")
	fmt.Println("  show ip route-tree          - 显示路由表的树形结构")
	fmt.Println("  show ip prefix-tree         - 显示前缀策略")
	fmt.Println("  show route avl-stats        - 显示路由表结构统计")
	fmt.Println("  show snapshots              - 列出全部快照")
	fmt.Println("  btree stats                 - 显示快照索引结构统计")
	fmt.Println("  save snapshot <键>          - 保存拓扑快照")
	fmt.Println("  save running-config [文件]  - 保存运行配置")
	fmt.Println("  load config <键>            - 从快照恢复拓扑")
	fmt.Println("  load running-config [文件]  - 从配置文件恢复拓扑")
	fmt.Println("  exit/quit                   - 退出控制台")
}

// createCompleter 创建自动补全器
func (cli *CLI) createCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("enable"),
		readline.PcItem("disable"),
		readline.PcItem("configure",
			readline.PcItem("terminal"),
		),
		readline.PcItem("hostname"),
		readline.PcItem("interface"),
		readline.PcItem("ip",
			readline.PcItem("address"),
			readline.PcItem("route",
				readline.PcItem("add"),
				readline.PcItem("del"),
			),
		),
		readline.PcItem("no",
			readline.PcItem("shutdown"),
		),
		readline.PcItem("shutdown"),
		readline.PcItem("device",
			readline.PcItem("add"),
		),
		readline.PcItem("connect"),
		readline.PcItem("disconnect"),
		readline.PcItem("list_devices"),
		readline.PcItem("set_device_status"),
		readline.PcItem("show",
			readline.PcItem("interfaces"),
			readline.PcItem("connections"),
			readline.PcItem("queue"),
			readline.PcItem("history"),
			readline.PcItem("statistics"),
			readline.PcItem("error-log"),
			readline.PcItem("snapshots"),
			readline.PcItem("devices"),
			readline.PcItem("ip",
				readline.PcItem("route"),
				readline.PcItem("route-tree"),
				readline.PcItem("prefix-tree"),
			),
			readline.PcItem("route",
				readline.PcItem("avl-stats"),
			),
		),
		readline.PcItem("send"),
		readline.PcItem("tick"),
		readline.PcItem("process"),
		readline.PcItem("policy",
			readline.PcItem("set"),
			readline.PcItem("unset"),
		),
		readline.PcItem("btree",
			readline.PcItem("stats"),
		),
		readline.PcItem("save",
			readline.PcItem("snapshot"),
			readline.PcItem("running-config"),
		),
		readline.PcItem("load",
			readline.PcItem("config"),
			readline.PcItem("running-config"),
		),
		readline.PcItem("end"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
