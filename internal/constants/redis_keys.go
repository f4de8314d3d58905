package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// InterviewModulePrefix 面试模块
	InterviewModulePrefix = "interview"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// DashboardModulePrefix 看板模块
	DashboardModulePrefix = "dashboard"

	// EntitySnapshot 会话快照实体
	EntitySnapshot = "snapshot"
	// EntityLatch 一次性闩锁实体
	EntityLatch = "latch"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityMD5ToCandidate MD5到候选人ID的映射实体
	EntityMD5ToCandidate = "md5_to_candidate"
	// EntityLeaderboard 排行榜实体
	EntityLeaderboard = "leaderboard"

	// KeyInterviewSnapshot 会话快照 (STRING, JSON)
	// 格式: app:interview:snapshot:{candidateID}
	KeyInterviewSnapshot = AppPrefix + ":" + InterviewModulePrefix + ":" + EntitySnapshot + ":%s"

	// KeyTerminationLatch 终止闩锁 (STRING, SETNX)
	// 格式: app:interview:latch:{candidateID}
	KeyTerminationLatch = AppPrefix + ":" + InterviewModulePrefix + ":" + EntityLatch + ":%s"

	// KeyJobLock 定时任务分布式锁 (STRING)
	// 格式: app:interview:lock:{jobName}
	KeyJobLock = AppPrefix + ":" + InterviewModulePrefix + ":" + EntityLock + ":%s"

	// KeyFileMD5ToCandidate 简历文件MD5到候选人ID的映射 (STRING)
	// 格式: app:file:md5_to_candidate:{md5}
	KeyFileMD5ToCandidate = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToCandidate + ":%s"

	// KeyLeaderboard 最终得分排行榜 (ZSET)
	// 格式: app:dashboard:leaderboard
	KeyLeaderboard = AppPrefix + ":" + DashboardModulePrefix + ":" + EntityLeaderboard
)
