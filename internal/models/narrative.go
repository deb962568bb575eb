package models

// NarrativeRequest is the size-reduced analysis input sent to the completion endpoint
type NarrativeRequest struct {
	Community        string           `json:"community"`
	SubscriberCount  int              `json:"subscriberCount"`
	ActiveUserCount  int              `json:"activeUserCount"`
	Description      string           `json:"description"`
	Rules            []ClassifiedRule `json:"rules"`
	AvgComments      float64          `json:"avgComments"`
	AvgScore         float64          `json:"avgScore"`
	InteractionRate  float64          `json:"interactionRate"`
	PostsPerDay      float64          `json:"postsPerDay"`
	PeakHours        []int            `json:"peakHours"`
	BestTimes        []string         `json:"bestTimes"`
	RecommendedTypes []ContentType    `json:"recommendedTypes"`
	Score            int              `json:"score"`
	RecentPosts      []RecentPost     `json:"recentPosts"`
}

type RecentPost struct {
	Title        string      `json:"title"`
	Score        int         `json:"score"`
	CommentCount int         `json:"commentCount"`
	Type         ContentType `json:"type"`
}
