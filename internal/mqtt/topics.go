package mqtt

import "fmt"

func TopicEmotion(prefix, dashboardID string) string {
	return fmt.Sprintf("%s/dashboard/%s/emotion", prefix, dashboardID)
}

func TopicCommand(prefix, dashboardID string) string {
	return fmt.Sprintf("%s/dashboard/%s/command", prefix, dashboardID)
}

func TopicState(prefix, dashboardID string) string {
	return fmt.Sprintf("%s/dashboard/%s/state", prefix, dashboardID)
}

func TopicOnline(prefix, dashboardID string) string {
	return fmt.Sprintf("%s/dashboard/%s/online", prefix, dashboardID)
}

func TopicAnyCommand(prefix string) string {
	return fmt.Sprintf("%s/dashboard/+/command", prefix)
}
