package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TimePtr returns a pointer to a time.Time object
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CalculateTextsMD5 计算多段文本的联合MD5，各段之间以 \x00 分隔，避免拼接歧义
func CalculateTextsMD5(texts ...string) string {
	hasher := md5.New()
	for i, t := range texts {
		if i > 0 {
			hasher.Write([]byte{0})
		}
		hasher.Write([]byte(t))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// ConvertArrayToJSON 辅助函数: 将字符串数组转换为JSON
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}
