package tenant

import (
	"context"
	"errors"
)

// Context 当前请求的租户上下文
// 由认证中间件在请求开始时写入 context.Context，随调用链隐式传递，
// 请求结束后即失效，绝不跨请求共享
type Context struct {
	SchoolID   string // 当前学校ID（租户标识）
	SuperAdmin bool   // 平台超级管理员标记
}

// 配置类错误：租户上下文缺失或不完整，对当前操作是致命的，不自动重试
var (
	ErrNoTenantContext = errors.New("tenant: 当前操作缺少租户上下文")
	ErrNoSchoolID      = errors.New("tenant: 当前上下文未绑定学校ID")
)

type ctxKey struct{}

// WithContext 将租户上下文挂到 ctx 上，内层调用会覆盖外层，返回后外层不受影响
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// WithSchool 以指定学校的普通租户身份建立上下文
func WithSchool(ctx context.Context, schoolID string) context.Context {
	return WithContext(ctx, Context{SchoolID: schoolID})
}

// WithSystem 以平台全局身份建立上下文（不限定学校），仅供备份/恢复等运维操作使用
func WithSystem(ctx context.Context) context.Context {
	return WithContext(ctx, Context{SuperAdmin: true})
}

// FromContext 取出当前租户上下文，不存在时返回 false
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// RequireSchoolID 取出当前上下文绑定的学校ID
// 无上下文、或超级管理员未指定具体学校时返回错误（要求具体租户的调用必须失败）
func RequireSchoolID(ctx context.Context) (string, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoTenantContext
	}
	if tc.SchoolID == "" {
		return "", ErrNoSchoolID
	}
	return tc.SchoolID, nil
}

// Scoped 当前上下文是否限定到某个具体学校
// 超级管理员未指定学校时为 false（全局访问，查询不注入过滤条件）
func (tc Context) Scoped() bool {
	return tc.SchoolID != ""
}
