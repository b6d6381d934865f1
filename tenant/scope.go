package tenant

import (
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// 租户字段的数据库列名，所有租户隔离实体统一使用该列
const TenantColumn = "school_id"

// ScopePlugin 多租户查询拦截插件
// 在每个数据访问操作执行前改写语句：查询/更新/删除自动合并 school_id 过滤条件，
// 创建自动注入 school_id 字段。调用方自带的 school_id 一律被当前上下文覆盖，
// 防止通过客户端参数伪造租户身份造成数据串租
//
// 注意：
// - 仅拦截 gorm 语句，Raw SQL 需要自行带上 school_id 条件
// - 超级管理员（未绑定学校）上下文直接放行，用于平台级运维操作
// - 租户表上没有任何上下文时直接报错拒绝，不做无过滤的兜底查询
// - 普通身份没绑定学校ID同样报错拒绝，全局访问只认超级管理员上下文
type ScopePlugin struct {
	tables map[string]bool // 租户隔离表的显式清单（启动时固定，进程内不可变）
}

// NewScopePlugin 创建插件，tables 为需要租户隔离的表名清单
// 清单是手工维护的显式列表而不是反射推导，避免推导遗漏直接变成数据泄露
func NewScopePlugin(tables ...string) *ScopePlugin {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return &ScopePlugin{tables: set}
}

func (p *ScopePlugin) Name() string { return "tenant_scope" }

// Initialize 注册回调，覆盖全部操作类别：
// Query/Row 对应各类读操作，Update/Delete 对应写删，
// Create 同时覆盖单条创建、批量创建以及 OnConflict upsert 的载荷注入
func (p *ScopePlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_scope:query", p.scopeWhere); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_scope:row", p.scopeWhere); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_scope:update", p.scopeUpdate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_scope:delete", p.scopeWhere); err != nil {
		return err
	}
	if err := db.Callback().Create().Before("gorm:create").Register("tenant_scope:create", p.scopeCreate); err != nil {
		return err
	}
	return nil
}

// resolve 判断当前语句是否需要注入，返回要注入的学校ID
func (p *ScopePlugin) resolve(db *gorm.DB) (string, bool) {
	stmt := db.Statement
	if stmt == nil || !p.tables[stmt.Table] {
		return "", false
	}
	tc, ok := FromContext(stmt.Context)
	if !ok {
		// 租户表上没有上下文：拒绝执行而不是无过滤放行
		_ = db.AddError(ErrNoTenantContext)
		return "", false
	}
	if !tc.Scoped() {
		// 全局访问只允许超级管理员上下文；
		// 普通身份却没绑定学校属于构造错误，同样拒绝执行
		if !tc.SuperAdmin {
			_ = db.AddError(ErrNoSchoolID)
			return "", false
		}
		return "", false
	}
	return tc.SchoolID, true
}

// scopeWhere 改写过滤条件：先剔除调用方自带的 school_id 条件，再合并当前租户的
func (p *ScopePlugin) scopeWhere(db *gorm.DB) {
	schoolID, ok := p.resolve(db)
	if !ok {
		return
	}
	stmt := db.Statement

	if c, has := stmt.Clauses["WHERE"]; has {
		if w, isWhere := c.Expression.(clause.Where); isWhere {
			w.Exprs = stripTenantExprs(w.Exprs)
			c.Expression = w
			stmt.Clauses["WHERE"] = c
		}
	}

	stmt.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: stmt.Table, Name: TenantColumn},
				Value:  schoolID,
			},
		},
	})
}

// scopeUpdate 除过滤条件外，还要覆盖 SET 载荷里的 school_id，
// 防止通过更新把记录挪到其他租户名下
func (p *ScopePlugin) scopeUpdate(db *gorm.DB) {
	schoolID, ok := p.resolve(db)
	if !ok {
		return
	}
	stmt := db.Statement

	switch dest := stmt.Dest.(type) {
	case map[string]interface{}:
		for k := range dest {
			if strings.EqualFold(k, TenantColumn) || strings.EqualFold(k, "SchoolID") {
				dest[k] = schoolID
			}
		}
	default:
		p.overrideStructField(db, schoolID)
	}

	p.scopeWhere(db)
}

// scopeCreate 把当前租户的 school_id 强制写进每一条待创建记录
func (p *ScopePlugin) scopeCreate(db *gorm.DB) {
	schoolID, ok := p.resolve(db)
	if !ok {
		return
	}
	stmt := db.Statement

	switch dest := stmt.Dest.(type) {
	case map[string]interface{}:
		dest[TenantColumn] = schoolID
		return
	case []map[string]interface{}:
		for i := range dest {
			dest[i][TenantColumn] = schoolID
		}
		return
	}

	p.overrideStructField(db, schoolID)
}

// overrideStructField 通过模型元数据把目标结构体（或切片里每个元素）的租户字段设为 schoolID
func (p *ScopePlugin) overrideStructField(db *gorm.DB, schoolID string) {
	stmt := db.Statement
	if stmt.Schema == nil {
		return
	}
	field := lookupTenantField(stmt.Schema)
	if field == nil {
		return
	}

	rv := stmt.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			_ = field.Set(stmt.Context, rv.Index(i), schoolID)
		}
	default:
		_ = field.Set(stmt.Context, rv, schoolID)
	}
}

func lookupTenantField(s *schema.Schema) *schema.Field {
	for _, f := range s.Fields {
		if strings.EqualFold(f.DBName, TenantColumn) {
			return f
		}
	}
	return nil
}

// stripTenantExprs 剔除引用 school_id 的条件表达式，保留其余条件
func stripTenantExprs(exprs []clause.Expression) []clause.Expression {
	kept := exprs[:0]
	for _, e := range exprs {
		if !exprHasTenantColumn(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

func exprHasTenantColumn(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsTenant(v.Column)
	case clause.Neq:
		return colIsTenant(v.Column)
	case clause.Gt:
		return colIsTenant(v.Column)
	case clause.Gte:
		return colIsTenant(v.Column)
	case clause.Lt:
		return colIsTenant(v.Column)
	case clause.Lte:
		return colIsTenant(v.Column)
	case clause.IN:
		return colIsTenant(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTenantColumn(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasTenantColumn(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return rawIsTenantOnly(v.SQL)
	default:
		return false
	}
}

// rawIsTenantOnly 判断原生 SQL 片段是否只是一个针对租户列的比较。
// 混合了其他条件的片段（如 name = ? OR school_id = ?）整体保留，
// 注入的租户条件以 AND 合并，隔离不受影响，调用方的其余条件也不丢
func rawIsTenantOnly(sql string) bool {
	s := strings.ToLower(sql)
	idx := strings.Index(s, TenantColumn)
	if idx < 0 {
		return false
	}
	if strings.Contains(s, " or ") || strings.Contains(s, " and ") {
		return false
	}
	prefix := strings.TrimSpace(s[:idx])
	return prefix == "" || strings.HasSuffix(prefix, ".") || strings.HasSuffix(prefix, "(")
}

func colIsTenant(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, TenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, TenantColumn)
	default:
		return false
	}
}
