package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// AnalysisModulePrefix 分析模块
	AnalysisModulePrefix = "analysis"
	// AdminModulePrefix 管理后台模块
	AdminModulePrefix = "admin"
	// DashboardModulePrefix 看板模块
	DashboardModulePrefix = "dashboard"

	// EntityResult 分析结果实体
	EntityResult = "result"
	// EntityToken 登录令牌实体
	EntityToken = "token"
	// EntityStats 统计实体
	EntityStats = "stats"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyAnalysisResult 分析结果缓存 (STRING, JSON)
	// 格式: app:analysis:result:{md5(resume_text + job_description)}
	KeyAnalysisResult = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityResult + ":%s"

	// KeyAdminToken 管理员登录令牌 (STRING, 值为用户名)
	// 格式: app:admin:token:{token}
	KeyAdminToken = AppPrefix + ":" + AdminModulePrefix + ":" + EntityToken + ":%s"

	// KeyDashboardStats 看板统计缓存 (STRING, JSON)
	// 格式: app:dashboard:stats
	KeyDashboardStats = AppPrefix + ":" + DashboardModulePrefix + ":" + EntityStats

	// KeyDashboardStatsLock 看板统计重算锁 (STRING)
	// 格式: app:dashboard:lock
	KeyDashboardStatsLock = AppPrefix + ":" + DashboardModulePrefix + ":" + EntityLock
)
