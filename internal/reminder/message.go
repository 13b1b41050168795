package reminder

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/notify/telegram"
	"github.com/mergestat/timediff"
)

// BuildMessage renders the reminder for a due user. lastAnswer may be nil.
func BuildMessage(frontendURL string, d Due, lastAnswer *time.Time, now time.Time) telegram.OutgoingMessage {
	dailyURL := frontendURL + "/daily"
	link := dailyURL
	if d.QuestionID != nil {
		link = fmt.Sprintf("%s/answer/%d", frontendURL, *d.QuestionID)
	}

	name := d.User.DisplayName()
	if name == "" {
		name = "friend"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi, %s! 👋\n\n", html.EscapeString(name))
	if d.IsTest {
		b.WriteString("🧪 [TEST MODE] ")
	}
	b.WriteString("Time to answer the question of the day and keep moving towards clarity.\n\n")
	fmt.Fprintf(&b, "🔗 <a href=\"%s\">Open the question of the day</a>\n\n", html.EscapeString(link))
	if lastAnswer != nil {
		fmt.Fprintf(&b, "Your last answer was %s.\n\n", timediff.TimeDiff(*lastAnswer, timediff.WithStartTime(now)))
	}
	b.WriteString("Or tap the button below to open the app:")

	return telegram.OutgoingMessage{
		ChatID:      d.User.TelegramID,
		Text:        b.String(),
		ParseMode:   telegram.ParseModeHTML,
		ReplyMarkup: telegram.WebAppButton("Answer the question", dailyURL),
	}
}
