package trust

// AntivirusStatus 防病毒软件状态
type AntivirusStatus string

const (
	AntivirusUpToDate AntivirusStatus = "up_to_date"
	AntivirusOutdated AntivirusStatus = "outdated"
	AntivirusUnknown  AntivirusStatus = "unknown"
)

// AuthMethod 用户认证方式
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthMFA      AuthMethod = "mfa"
	AuthSSO      AuthMethod = "sso"
)

// DeviceAssertion 设备断言，由外部身份源按次提供，调用期间不可变
type DeviceAssertion struct {
	DeviceID    string          `json:"device_id"`
	OS          string          `json:"os,omitempty"`
	SignedByMDM bool            `json:"signed_by_mdm"`
	Antivirus   AntivirusStatus `json:"antivirus"`
	PatchLevel  string          `json:"patch_level,omitempty"` // YYYY-MM-DD
	Token       string          `json:"device_presented_token,omitempty"`
}

// UserAssertion 用户断言
type UserAssertion struct {
	UserID       string     `json:"user_id"`
	AuthMethod   AuthMethod `json:"auth_method"`
	MFASatisfied bool       `json:"mfa_ok"`
	Role         string     `json:"user_role"`
	LastAuthTime string     `json:"last_auth_time,omitempty"` // RFC3339 或 YYYY-MM-DD 前缀
}

// Geo 地理属性
type Geo struct {
	Country    string `json:"country"`
	IsInternal bool   `json:"is_internal"`
}

// Context 一次访问决策请求的完整上下文
// 由调用方构造并持有；TrustScore 由 VerifyContext 填充
type Context struct {
	Device           DeviceAssertion `json:"device_assertion"`
	User             UserAssertion   `json:"user_assertion"`
	Geo              *Geo            `json:"geo,omitempty"`
	BlockedCountries []string        `json:"blocked_countries,omitempty"`
	TrustScore       float64         `json:"trust_score"`
}

// Verdict 单项信任评估结论，构造后不再修改
type Verdict struct {
	OK      bool     `json:"ok"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ContextVerdict 上下文综合评估结论
type ContextVerdict struct {
	Allow   bool     `json:"allow"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// clamp 将分数收敛到 [0,1]
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
