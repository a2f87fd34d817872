package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ResumeAnalysis 一次简历分析的记录
type ResumeAnalysis struct {
	ID                   uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AnalysisUUID         string         `gorm:"type:char(36);not null;uniqueIndex:idx_resume_analysis_uuid" json:"analysis_uuid"`
	Filename             string         `gorm:"type:varchar(255)" json:"filename"`
	JobDescription       string         `gorm:"type:text;not null" json:"job_description"`
	ResumeText           string         `gorm:"type:mediumtext;not null" json:"resume_text"`
	ResumeTextMD5        string         `gorm:"type:char(32);index:idx_resume_analysis_text_md5" json:"resume_text_md5"`
	ATSScore             int            `gorm:"not null" json:"ats_score"`
	MatchedSkills        datatypes.JSON `gorm:"type:json" json:"matched_skills"`        // string[]
	MissingSkills        datatypes.JSON `gorm:"type:json" json:"missing_skills"`        // string[]
	SkillMatchPercentage float64        `gorm:"not null;default:0" json:"skill_match_percentage"`
	Suggestions          datatypes.JSON `gorm:"type:json" json:"suggestions"`           // []types.Suggestion
	ScoreBreakdown       datatypes.JSON `gorm:"type:json" json:"score_breakdown"`       // types.ScoreBreakdown
	OriginalObjectKey    string         `gorm:"type:varchar(255)" json:"original_object_key,omitempty"` // MinIO中的原始文件
	CreatedAt            time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resume_analysis_created_at" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (ResumeAnalysis) TableName() string {
	return "resume_analysis"
}

// DownloadLog 优化简历下载记录
type DownloadLog struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	ResumeID     uint64    `gorm:"not null;index:idx_download_logs_resume_id"`
	ObjectKey    string    `gorm:"type:varchar(255)"` // MinIO中的优化简历，上传失败时为空
	DownloadTime time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (DownloadLog) TableName() string {
	return "download_logs"
}

// Admin 管理员账号
type Admin struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_admin_username"`
	PasswordHash string    `gorm:"type:varchar(255);not null"` // bcrypt
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Admin) TableName() string {
	return "admin"
}

// DailyScore 看板图表中的一个点
type DailyScore struct {
	Date                 string  `json:"date"`
	ATSScore             int     `json:"ats_score"`
	SkillMatchPercentage float64 `json:"skill_match_percentage"`
}

// AnalysisStats 看板统计
type AnalysisStats struct {
	TotalResumes  int64        `json:"total_resumes"`
	AvgATSScore   float64      `json:"avg_ats_score"`
	AvgSkillMatch float64      `json:"avg_skill_match"`
	Recent        []DailyScore `json:"recent"` // 从旧到新
}

// ToJSON 将任意值序列化为 datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// StringsFromJSON 解析 string[] 类型的JSON列，空值返回空切片
func StringsFromJSON(data datatypes.JSON) []string {
	out := []string{}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
