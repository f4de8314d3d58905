package interview

import (
	"fmt"
	"strconv"

	"mock-interview-go/internal/constants"
)

// Reason 面试被强制终止的原因
type Reason string

const (
	ReasonTabSwitch Reason = "tab_switch"
	ReasonAbandoned Reason = "abandoned"
)

// Valid 是否为已知原因
func (r Reason) Valid() bool {
	return r == ReasonTabSwitch || r == ReasonAbandoned
}

// Summary 写入面试记录的终止总结
func (r Reason) Summary() string {
	if r == ReasonAbandoned {
		return "Interview terminated after a long period of inactivity."
	}
	return "Interview terminated due to browser tab switch. Please avoid switching tabs during timed assessments."
}

// Notice 展示给候选人的阻断提示
func (r Reason) Notice() string {
	if r == ReasonAbandoned {
		return "The interview has ended because it was inactive for too long."
	}
	return "You've switched tabs. The interview is now ended."
}

const (
	pauseMessage  = "⏸️ Interview paused. Click resume when ready to continue."
	resumeMessage = "▶️ Interview resumed. Timer continues..."
)

func welcomeMessage(name string) string {
	return fmt.Sprintf("Welcome %s! 🎯 Your interview is about to begin.\n\n"+
		"This is a %s interview with %d questions:\n"+
		"• 2 Easy questions (%d seconds each)\n"+
		"• 2 Medium questions (%d seconds each)\n"+
		"• 2 Hard questions (%d seconds each)\n\n"+
		"You can pause the interview at any time. Good luck! 🚀",
		name, constants.InterviewRoleTitle, constants.TotalQuestions,
		constants.EasyTimeLimitSeconds, constants.MediumTimeLimitSeconds, constants.HardTimeLimitSeconds)
}

func welcomeBackMessage(name string, questionNumber, total int) string {
	return fmt.Sprintf("👋 Welcome back, %s! Your interview is paused at question %d of %d. Click resume when ready to continue.",
		name, questionNumber, total)
}

func scoreMessage(score float64, feedback string) string {
	return fmt.Sprintf("Your answer scored %s/10. %s", strconv.FormatFloat(score, 'f', -1, 64), feedback)
}

func completionMessage(total float64, summary string) string {
	return fmt.Sprintf("🎉 Interview completed! Your final score is %.1f/10.\n\n%s", total, summary)
}
