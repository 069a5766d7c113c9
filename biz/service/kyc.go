package service

import (
	"context"
	"sync"
)

// KYCGate 外部认证等级：0 未认证，1 已提交，2 已通过
type KYCGate interface {
	VerificationTier(ctx context.Context, userID string) (int, error)
}

// StaticKYC 进程内等级表，未登记的用户取默认等级
type StaticKYC struct {
	mu          sync.RWMutex
	defaultTier int
	tiers       map[string]int
}

func NewStaticKYC(defaultTier int) *StaticKYC {
	return &StaticKYC{defaultTier: defaultTier, tiers: make(map[string]int)}
}

func (k *StaticKYC) VerificationTier(_ context.Context, userID string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if t, ok := k.tiers[userID]; ok {
		return t, nil
	}
	return k.defaultTier, nil
}

// SetTier 由认证流程回调
func (k *StaticKYC) SetTier(userID string, tier int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tiers[userID] = tier
}
