package router

import (
	"sort"

	httpez "go-gin-gorm-cms/internal/transport/http/ez"
)

// Groups 三种访问级别的分组，模块按需挂载
type Groups struct {
	Public httpez.EZ // 无需登录
	User   httpez.EZ // 已登录（任意角色）
	Admin  httpez.EZ // 仅 admin
}

// APIModule 一组相关接口
type APIModule interface{ MountAPI(g Groups) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

// mountAll 按优先级依次挂载
func mountAll(g Groups, mods ...APIModule) {
	sorted := append([]APIModule(nil), mods...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityOf(sorted[i]) < priorityOf(sorted[j])
	})
	for _, m := range sorted {
		m.MountAPI(g)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
