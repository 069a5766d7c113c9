package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"
)

var (
	sonyFlake *sonyflake.Sonyflake
	once      sync.Once
)

// InitSonyFlake 初始化 Snowflake 实例，machineID 为 0 时按本机私网 IP 推导
func InitSonyFlake(machineID uint16) {
	once.Do(func() {
		st := sonyflake.Settings{}
		if machineID != 0 {
			st.MachineID = func() (uint16, error) { return machineID, nil }
		}
		sonyFlake = sonyflake.NewSonyflake(st)
		if sonyFlake == nil {
			// 无私网 IP 的环境（容器、CI）退回固定节点号
			sonyFlake = sonyflake.NewSonyflake(sonyflake.Settings{
				MachineID: func() (uint16, error) { return 1, nil },
			})
		}
	})
}

// NextID 生成全局唯一实体 ID
func NextID() (uint64, error) {
	InitSonyFlake(0)
	return sonyFlake.NextID()
}

// SwapTxHash 模拟链上交易哈希
func SwapTxHash(id uint64) string {
	sum := sha256.Sum256([]byte(strconv.FormatUint(id, 10) + ":" + uuid.NewString()))
	return "0x" + hex.EncodeToString(sum[:])
}
