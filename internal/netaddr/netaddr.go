package netaddr

import (
	"fmt"
	"strconv"
	"strings"
)

// 本包提供IPv4地址与掩码的解析和格式化工具
// 模拟器内部统一使用uint32表示地址，前缀匹配通过位运算完成

// ParseIPv4 解析点分十进制IPv4地址为uint32
// 例如 "10.0.0.1" -> 0x0A000001
func ParseIPv4(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("无效的IPv4地址: %s", s)
	}

	var addr uint32
	for _, part := range parts {
		// 拒绝空段和带符号的写法，例如 "10..0.1" 或 "10.+1.0.1"
		if part == "" || part[0] == '+' || part[0] == '-' {
			return 0, fmt.Errorf("无效的IPv4地址: %s", s)
		}
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || v > 255 {
			return 0, fmt.Errorf("无效的IPv4地址: %s", s)
		}
		addr = addr<<8 | uint32(v)
	}
	return addr, nil
}

// FormatIPv4 将uint32地址格式化为点分十进制
func FormatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		addr>>24&0xFF, addr>>16&0xFF, addr>>8&0xFF, addr&0xFF)
}

// ParseMaskLen 解析掩码为前缀长度
// 同时支持两种写法：点分十进制掩码（255.255.255.0）和纯长度（24）
// 点分写法要求掩码位连续，例如 255.0.255.0 会被拒绝
func ParseMaskLen(s string) (int, error) {
	if !strings.Contains(s, ".") {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 32 {
			return 0, fmt.Errorf("无效的掩码长度: %s", s)
		}
		return n, nil
	}

	mask, err := ParseIPv4(s)
	if err != nil {
		return 0, fmt.Errorf("无效的掩码: %s", s)
	}

	// 连续性检查：掩码取反加一必须是2的幂
	inv := ^mask
	if inv&(inv+1) != 0 {
		return 0, fmt.Errorf("掩码位不连续: %s", s)
	}

	length := 0
	for m := mask; m&0x80000000 != 0; m <<= 1 {
		length++
	}
	return length, nil
}

// MaskFromLen 根据前缀长度生成掩码值
func MaskFromLen(length int) uint32 {
	if length <= 0 {
		return 0
	}
	if length >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << (32 - length)
}

// FormatMask 将前缀长度格式化为点分十进制掩码
func FormatMask(length int) string {
	return FormatIPv4(MaskFromLen(length))
}

// Contains 判断地址是否落在 prefix/length 网络内
func Contains(prefix uint32, length int, addr uint32) bool {
	mask := MaskFromLen(length)
	return addr&mask == prefix&mask
}

// Bit 返回地址从最高位数起第i位（i从0开始）的比特值
// 前缀Trie按此顺序逐位下降
func Bit(addr uint32, i int) int {
	return int(addr >> (31 - i) & 1)
}
