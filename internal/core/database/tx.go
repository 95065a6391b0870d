package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

type txState struct {
	tx            *gorm.DB
	afterHooks    []func()
	rollbackHooks []func()
}

// WithTx 把事务句柄放进 ctx；仓储通过 Conn 取用
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, &txState{tx: tx})
}

// Conn 返回 ctx 中的事务，否则退回 db；两种情况都绑定 ctx
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.tx != nil {
		return st.tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// InTx 报告 ctx 是否处于事务中
func InTx(ctx context.Context) bool {
	st, ok := ctx.Value(txKey{}).(*txState)
	return ok && st.tx != nil
}

// AfterCommit 注册提交成功后的回调；不在事务中时立即执行
func AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.tx != nil {
		st.afterHooks = append(st.afterHooks, fn)
		return
	}
	fn()
}

// AfterRollback 注册事务回滚（含提交失败）后的回调；不在事务中时忽略
func AfterRollback(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.tx != nil {
		st.rollbackHooks = append(st.rollbackHooks, fn)
	}
}

// Transaction 在一个事务里执行 fn，成功提交后按注册顺序跑 AfterCommit 回调
func Transaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	var st *txState
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := WithTx(ctx, tx)
		st = txCtx.Value(txKey{}).(*txState)
		return fn(txCtx)
	})
	if err != nil {
		if st != nil {
			for _, h := range st.rollbackHooks {
				h()
			}
		}
		return err
	}
	for _, h := range st.afterHooks {
		h()
	}
	return nil
}
