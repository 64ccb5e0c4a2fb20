package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork 传输层失败，包括超时
	ErrNetwork = errors.New("network failure")
	// ErrBusy 该行已有请求在进行中
	ErrBusy = errors.New("a request for this comment is already in flight")
	// ErrNotConfirmed 删除未获得确认，没有发出请求
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrFragmentUnavailable 变更已被服务端接受，但取回渲染片段失败。
	// 页面在下次完整加载前不会显示这次变更
	ErrFragmentUnavailable = errors.New("change saved but the comment could not be displayed, reload the page")
)

// ServerError 服务端返回的失败，Reason 原样展示给用户
type ServerError struct {
	Status int
	Reason string
}

func (e *ServerError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Reason
}

// StatusOf 返回服务端错误的状态码，非服务端错误返回0
func StatusOf(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
