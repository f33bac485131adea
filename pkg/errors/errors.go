// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrNoDriver 未配置任何存储驱动，编排器构造时致命
	ErrNoDriver = errors.New("no storage driver configured")
	// ErrSlotOccupied 目标槽位已被其他记录占用，由换位算法内部消化
	ErrSlotOccupied = errors.New("slot occupied")
	// ErrFetchFailed 远程 URI 抓取失败
	ErrFetchFailed = errors.New("fetch failed")
	// ErrAborted 处理器流水线返回 Abort，仅内部流转，门面层以零值结果表达
	ErrAborted = errors.New("pipeline aborted")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 转发 errors.Is，方便调用方只引入本包
func Is(err, target error) bool {
	return errors.Is(err, target)
}
