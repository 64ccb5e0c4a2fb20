package dto

import (
	"bytes"
	"fmt"
	"strconv"
)

// ID 雪花ID。JSON中以字符串输出，输入时字符串和数字都接受
type ID int64

// Int64 转换为 int64
func (id ID) Int64() int64 {
	return int64(id)
}

// Ptr 可空ID转换为 *int64
func (id *ID) Ptr() *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := int64(*id)
	return &v
}

// MarshalJSON 输出为字符串，避免前端丢失精度
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(id), 10) + `"`), nil
}

// UnmarshalJSON 接受 "123" 或 123
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	return id.UnmarshalParam(string(b))
}

// UnmarshalParam 表单与查询参数绑定
func (id *ID) UnmarshalParam(s string) error {
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*id = ID(v)
	return nil
}

// ParseID 解析路径参数中的ID
func ParseID(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
