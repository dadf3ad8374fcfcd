package utils

import "time"

// TrendingWindow 热门统计窗口
const TrendingWindow = 48 * time.Hour

// EngagementScore 热门分：每票计 2 分，每条回复计 1 分
func EngagementScore(up, down, replies int) int {
	return (up+down)*2 + replies
}

// TrendingSQL is EngagementScore as an ORDER BY expression over the posts table.
const TrendingSQL = "(upvotes + downvotes) * 2 + reply_count"
