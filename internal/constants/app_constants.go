package constants

import "time"

const (
	// ScoringVersion 评分算法版本，写入事件和缓存，算法变化时递增
	ScoringVersion = "1.0"

	// EventTypeAnalysisCompleted 分析完成事件
	EventTypeAnalysisCompleted = "analysis.completed"

	// DefaultResultTTL 分析结果缓存默认有效期
	DefaultResultTTL = 24 * time.Hour
	// DefaultStatsTTL 看板统计缓存默认有效期
	DefaultStatsTTL = 5 * time.Minute
	// StatsLockTTL 统计重算锁有效期
	StatsLockTTL = 10 * time.Second

	// DefaultPageSize 历史记录默认分页大小
	DefaultPageSize = 20
	// MaxPageSize 历史记录最大分页大小
	MaxPageSize = 100
)
