// Package utils 通用小工具
package utils

import "strconv"

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Pagination 分页信息
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int64 `json:"pages"`
}

// NewPagination 创建分页信息，越界参数回落到默认值
func NewPagination(page, pageSize int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

// ParsePagination 解析 page/page_size 查询参数，非法值按默认处理
func ParsePagination(page, pageSize string) *Pagination {
	p, _ := strconv.Atoi(page)
	s, _ := strconv.Atoi(pageSize)
	return NewPagination(p, s)
}

// SetTotal 设置总数并计算页数
func (p *Pagination) SetTotal(total int64) {
	p.Total = total
	p.Pages = (total + int64(p.PageSize) - 1) / int64(p.PageSize)
}

// Offset 获取数据库查询偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit 获取数据库查询限制
func (p *Pagination) Limit() int {
	return p.PageSize
}
