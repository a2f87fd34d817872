package storage

import "time"

// AnalysisCompletedEvent 分析完成事件，经发件箱投递到事件交换机
type AnalysisCompletedEvent struct {
	AnalysisUUID         string    `json:"analysis_uuid"`
	Filename             string    `json:"filename,omitempty"`
	ATSScore             int       `json:"ats_score"`
	SkillMatchPercentage float64   `json:"skill_match_percentage"`
	MissingSkills        []string  `json:"missing_skills"`
	ScoringVersion       string    `json:"scoring_version"`
	OriginalObjectKey    string    `json:"original_object_key,omitempty"`
	CompletedAt          time.Time `json:"completed_at"`
}
