package policy

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/trust"
)

// Engine 策略规则引擎
// 按优先级排序的谓词规则列表，首条命中即返回；
// 全部未命中时回落到 default-deny，该不变量不可被隐式覆盖
type Engine struct {
	mu     sync.RWMutex
	rules  []*Rule
	names  map[string]struct{}
	logger logging.Logger
	now    func() time.Time // 测试注入
}

// Config 引擎配置
type Config struct {
	Logger logging.Logger
}

// NewEngine 创建策略引擎
func NewEngine(cfg *Config) *Engine {
	e := &Engine{
		names: make(map[string]struct{}),
		now:   time.Now,
	}
	if cfg != nil && cfg.Logger != nil {
		e.logger = cfg.Logger
	} else {
		e.logger = logging.Nop()
	}
	return e
}

// AddRule 加入规则并保持优先级排序
// 稳定排序保证同优先级按加入顺序评估
func (e *Engine) AddRule(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if rule.Condition == nil && rule.Predicate == nil {
		return fmt.Errorf("rule %s: condition or predicate is required", rule.Name)
	}
	switch rule.Action {
	case ActionAllow, ActionDeny, ActionChallenge, ActionQuarantine:
	default:
		return fmt.Errorf("rule %s: invalid action %q", rule.Name, rule.Action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.names[rule.Name]; exists {
		return fmt.Errorf("rule %s already registered", rule.Name)
	}
	e.names[rule.Name] = struct{}{}
	e.rules = append(e.rules, rule)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority < e.rules[j].Priority
	})

	e.logger.Debug("Policy rule added",
		"rule", rule.Name,
		"priority", rule.Priority,
		"action", string(rule.Action),
	)

	return nil
}

// RemoveRule 移除规则
func (e *Engine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.names[name]; !exists {
		return false
	}
	delete(e.names, name)
	for i, r := range e.rules {
		if r.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			break
		}
	}
	return true
}

// Rules 返回当前规则快照（按评估顺序）
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate 按序评估规则，返回首条命中的动作
// 未命中任何规则时默认拒绝（零信任）
func (e *Engine) Evaluate(ctx *trust.Context, res *Resource) *Result {
	e.mu.RLock()
	rules := make([]*Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	now := e.now()

	for _, r := range rules {
		if e.applies(r, ctx, res, now) {
			e.logger.Info("Policy rule matched",
				"rule", r.Name,
				"action", string(r.Action),
			)
			return &Result{
				Action:       r.Action,
				Rule:         r.Name,
				ContextScore: ctx.TrustScore,
			}
		}
	}

	e.logger.Info("No policy rule matched, default deny")
	return &Result{
		Action:       ActionDeny,
		Rule:         DefaultDenyRule,
		ContextScore: ctx.TrustScore,
	}
}

// applies 判定单条规则是否命中
// 条件评估错误或谓词 panic 都按不匹配处理，单条坏规则不能
// 中断评估、更不能绕过 default-deny
func (e *Engine) applies(r *Rule, ctx *trust.Context, res *Resource, now time.Time) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("Policy rule predicate panicked",
				"rule", r.Name,
				"panic", fmt.Sprintf("%v", rec),
			)
			matched = false
		}
	}()

	if r.Condition != nil {
		ok, err := evalCondition(r.Condition, ctx, res, now)
		if err != nil {
			e.logger.Error("Policy rule condition failed",
				"rule", r.Name,
				"error", err.Error(),
			)
			return false
		}
		if !ok {
			return false
		}
	}

	if r.Predicate != nil {
		return r.Predicate(ctx, res)
	}

	return true
}

// BaselineConfig 基线规则集配置
// 四条基线规则各自独立可调优先级，部署方可重排或删减
type BaselineConfig struct {
	LowTrustThreshold  float64 // 低于此分直接拒绝，默认 0.3
	HighTrustThreshold float64 // 不低于此分直接放行，默认 0.8
	WorkdayStartHour   int     // 工作时段起始（含），默认 7
	WorkdayEndHour     int     // 工作时段结束（不含），默认 20
	UTCOffset          int
}

// RegisterBaselineRules 注册基线规则集
func RegisterBaselineRules(e *Engine, cfg *BaselineConfig) error {
	if cfg == nil {
		cfg = &BaselineConfig{}
	}
	if cfg.LowTrustThreshold == 0 {
		cfg.LowTrustThreshold = 0.3
	}
	if cfg.HighTrustThreshold == 0 {
		cfg.HighTrustThreshold = 0.8
	}
	if cfg.WorkdayStartHour == 0 {
		cfg.WorkdayStartHour = 7
	}
	if cfg.WorkdayEndHour == 0 {
		cfg.WorkdayEndHour = 20
	}

	rules := []*Rule{
		{
			Name:     "block_low_trust",
			Priority: 10,
			Action:   ActionDeny,
			Condition: &Condition{
				Type:      CondScoreThreshold,
				Operator:  OpLT,
				Threshold: cfg.LowTrustThreshold,
			},
		},
		{
			Name:     "admin_internal",
			Priority: 15,
			Action:   ActionAllow,
			Condition: &Condition{
				Type:            CondRoleNetwork,
				Role:            "admin",
				RequireInternal: true,
			},
		},
		{
			Name:     "allow_high_trust",
			Priority: 20,
			Action:   ActionAllow,
			Condition: &Condition{
				Type:      CondScoreThreshold,
				Operator:  OpGTE,
				Threshold: cfg.HighTrustThreshold,
			},
		},
		{
			Name:     "working_hours_allow",
			Priority: 50,
			Action:   ActionAllow,
			Condition: &Condition{
				Type:      CondTimeWindow,
				StartHour: cfg.WorkdayStartHour,
				EndHour:   cfg.WorkdayEndHour,
				UTCOffset: cfg.UTCOffset,
			},
		},
	}

	for _, r := range rules {
		if err := e.AddRule(r); err != nil {
			return fmt.Errorf("register baseline rule %s: %w", r.Name, err)
		}
	}
	return nil
}
