package trust

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// TokenValidator 设备令牌校验接口
// 校验逻辑是可插拔的外部能力，评分器只关心三种结果：
// 令牌缺失、令牌存在但未通过校验、令牌通过校验
type TokenValidator interface {
	Validate(deviceID, token string) bool
}

// CredentialStore 设备凭证存储接口
// 按设备 ID 返回登记的凭证哈希；未登记返回 false
type CredentialStore interface {
	CredentialHash(deviceID string) (string, bool)
}

// BcryptTokenValidator 基于 bcrypt 哈希比对的令牌校验器
type BcryptTokenValidator struct {
	store CredentialStore
}

// NewBcryptTokenValidator 创建 bcrypt 令牌校验器
func NewBcryptTokenValidator(store CredentialStore) *BcryptTokenValidator {
	return &BcryptTokenValidator{store: store}
}

// Validate 将呈现的令牌与登记的 bcrypt 哈希比对
func (v *BcryptTokenValidator) Validate(deviceID, token string) bool {
	if v.store == nil || token == "" {
		return false
	}
	hash, ok := v.store.CredentialHash(deviceID)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// MemoryCredentialStore 内存凭证存储，用于测试与示例
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	hashes map[string]string
}

// NewMemoryCredentialStore 创建内存凭证存储
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{hashes: make(map[string]string)}
}

// Register 登记设备令牌，内部存储 bcrypt 哈希
func (s *MemoryCredentialStore) Register(deviceID, token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.hashes[deviceID] = string(hash)
	s.mu.Unlock()
	return nil
}

// CredentialHash 返回设备的凭证哈希
func (s *MemoryCredentialStore) CredentialHash(deviceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.hashes[deviceID]
	return hash, ok
}
