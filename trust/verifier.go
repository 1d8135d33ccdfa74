package trust

import (
	"fmt"
	"time"

	"github.com/houzhh15/zt-core/logging"
)

// 评分阈值
const (
	deviceOKThreshold = 0.6
	userOKThreshold   = 0.6
	contextAllowScore = 0.65
	deviceScoreWeight = 0.6
	userScoreWeight   = 0.4
	geoBlockedPenalty = 0.4
)

// Verifier 信任评估器
// 纯计算组件：畸形输入通过扣分降级处理，从不中断决策流程
type Verifier struct {
	tokens TokenValidator
	logger logging.Logger
	now    func() time.Time // 测试注入
}

// Config 评估器配置
type Config struct {
	TokenValidator TokenValidator
	Logger         logging.Logger
}

// NewVerifier 创建信任评估器
func NewVerifier(cfg *Config) *Verifier {
	v := &Verifier{now: time.Now}
	if cfg != nil {
		v.tokens = cfg.TokenValidator
		v.logger = cfg.Logger
	}
	if v.logger == nil {
		v.logger = logging.Nop()
	}
	return v
}

// VerifyDevice 评估设备断言
// 从中性分 0.5 出发，按设备姿态逐项加减分，最终收敛到 [0,1]
func (v *Verifier) VerifyDevice(d *DeviceAssertion) *Verdict {
	reasons := make([]string, 0, 5)
	score := 0.5

	if d.SignedByMDM {
		reasons = append(reasons, "MDM signed")
		score += 0.3
	} else {
		reasons = append(reasons, "No MDM signature")
		score -= 0.2
	}

	if d.Antivirus == AntivirusUpToDate {
		reasons = append(reasons, "AV up-to-date")
		score += 0.1
	} else {
		reasons = append(reasons, "AV outdated or missing")
		score -= 0.1
	}

	if d.PatchLevel != "" {
		if patchTime, err := time.Parse("2006-01-02", d.PatchLevel); err != nil {
			reasons = append(reasons, "Patch date parse failed")
			score -= 0.05
		} else {
			ageDays := v.now().Sub(patchTime).Hours() / 24
			switch {
			case ageDays < 30:
				reasons = append(reasons, "Patch recent")
				score += 0.1
			case ageDays < 90:
				reasons = append(reasons, "Patch moderately recent")
			default:
				reasons = append(reasons, "Patch old")
				score -= 0.15
			}
		}
	}

	if d.Token != "" {
		if v.tokens != nil && v.tokens.Validate(d.DeviceID, d.Token) {
			reasons = append(reasons, "Device token valid")
			score += 0.2
		} else {
			reasons = append(reasons, "Device token present but not validated")
		}
	} else {
		reasons = append(reasons, "No device token presented")
		score -= 0.1
	}

	score = clamp(score)
	verdict := &Verdict{
		OK:      score >= deviceOKThreshold,
		Score:   score,
		Reasons: reasons,
	}

	v.logger.Info("Device verification",
		"device_id", d.DeviceID,
		"ok", verdict.OK,
		"score", fmt.Sprintf("%.2f", score),
	)

	return verdict
}

// VerifyUser 评估用户断言
func (v *Verifier) VerifyUser(u *UserAssertion) *Verdict {
	reasons := make([]string, 0, 4)
	score := 0.5

	switch {
	case u.AuthMethod == AuthMFA || u.MFASatisfied:
		reasons = append(reasons, "MFA verified")
		score += 0.3
	case u.AuthMethod == AuthSSO:
		reasons = append(reasons, "SSO auth")
		score += 0.15
	default:
		reasons = append(reasons, "Password-only or unknown auth")
		score -= 0.2
	}

	// 管理员角色适用更严格的门槛
	if u.Role == "admin" {
		reasons = append(reasons, "Admin role requires stricter checks")
		score -= 0.1
	}

	if u.LastAuthTime != "" {
		if authTime, ok := parseAuthTime(u.LastAuthTime); !ok {
			reasons = append(reasons, "Could not parse last_auth_time")
			score -= 0.05
		} else {
			ageDays := v.now().Sub(authTime).Hours() / 24
			if ageDays < 1 {
				reasons = append(reasons, "Recent authentication")
				score += 0.1
			} else if ageDays > 30 {
				reasons = append(reasons, "Stale authentication")
				score -= 0.1
			}
		}
	}

	score = clamp(score)
	verdict := &Verdict{
		OK:      score >= userOKThreshold,
		Score:   score,
		Reasons: reasons,
	}

	v.logger.Info("User verification",
		"user_id", u.UserID,
		"ok", verdict.OK,
		"score", fmt.Sprintf("%.2f", score),
	)

	return verdict
}

// VerifyContext 综合设备与用户信号，产出上下文信任结论
// 综合分 = 0.6*设备分 + 0.4*用户分，命中封禁国家再扣 0.4
// 结论同时写回 ctx.TrustScore 供策略引擎与包过滤器使用
func (v *Verifier) VerifyContext(ctx *Context) *ContextVerdict {
	dres := v.VerifyDevice(&ctx.Device)
	ures := v.VerifyUser(&ctx.User)

	combined := deviceScoreWeight*dres.Score + userScoreWeight*ures.Score

	reasons := make([]string, 0, len(dres.Reasons)+len(ures.Reasons)+1)
	reasons = append(reasons, dres.Reasons...)
	reasons = append(reasons, ures.Reasons...)

	if ctx.Geo != nil && countryBlocked(ctx.Geo.Country, ctx.BlockedCountries) {
		combined -= geoBlockedPenalty
		reasons = append(reasons, fmt.Sprintf("geo: %s blocked", ctx.Geo.Country))
	}

	combined = clamp(combined)
	ctx.TrustScore = combined

	verdict := &ContextVerdict{
		Allow:   combined >= contextAllowScore,
		Score:   combined,
		Reasons: reasons,
	}

	v.logger.Info("Context verification",
		"allow", verdict.Allow,
		"score", fmt.Sprintf("%.2f", combined),
	)

	return verdict
}

// parseAuthTime 宽容解析认证时间：优先 RFC3339，退回日期前缀
func parseAuthTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func countryBlocked(country string, blocked []string) bool {
	for _, c := range blocked {
		if c == country {
			return true
		}
	}
	return false
}
