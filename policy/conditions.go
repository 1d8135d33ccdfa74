package policy

import (
	"fmt"
	"time"

	"github.com/houzhh15/zt-core/trust"
)

// evalCondition 评估单个条件
// 返回错误的条件按不匹配处理（由引擎记录日志）
func evalCondition(cond *Condition, ctx *trust.Context, res *Resource, now time.Time) (bool, error) {
	switch cond.Type {
	case CondScoreThreshold:
		return evalScoreThreshold(cond, ctx)
	case CondRoleNetwork:
		return evalRoleNetwork(cond, ctx), nil
	case CondTimeWindow:
		return evalTimeWindow(cond, now)
	case CondAllOf:
		for _, c := range cond.Conditions {
			ok, err := evalCondition(c, ctx, res, now)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case CondAnyOf:
		for _, c := range cond.Conditions {
			ok, err := evalCondition(c, ctx, res, now)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported condition type: %s", cond.Type)
	}
}

// evalScoreThreshold 比较上下文信任分与阈值
func evalScoreThreshold(cond *Condition, ctx *trust.Context) (bool, error) {
	switch cond.Operator {
	case OpGTE, "":
		return ctx.TrustScore >= cond.Threshold, nil
	case OpLT:
		return ctx.TrustScore < cond.Threshold, nil
	default:
		return false, fmt.Errorf("unsupported operator for score_threshold: %s", cond.Operator)
	}
}

// evalRoleNetwork 角色匹配且（按需）位于内网
func evalRoleNetwork(cond *Condition, ctx *trust.Context) bool {
	if ctx.User.Role != cond.Role {
		return false
	}
	if cond.RequireInternal {
		return ctx.Geo != nil && ctx.Geo.IsInternal
	}
	return true
}

// evalTimeWindow 当前小时落在 [StartHour, EndHour) 内
func evalTimeWindow(cond *Condition, now time.Time) (bool, error) {
	if cond.StartHour < 0 || cond.StartHour > 23 || cond.EndHour < 0 || cond.EndHour > 24 {
		return false, fmt.Errorf("invalid time window: [%d, %d)", cond.StartHour, cond.EndHour)
	}
	hour := (now.UTC().Hour() + cond.UTCOffset) % 24
	if hour < 0 {
		hour += 24
	}
	return cond.StartHour <= hour && hour < cond.EndHour, nil
}
