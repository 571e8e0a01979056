package notify

import (
	"fmt"

	"github.com/dukerupert/zooz/internal/model"
)

// TemplateData fills the title and message of a notification. Redemption
// selects the wording for redemption requests instead of activity
// submissions.
type TemplateData struct {
	ChildName     string
	ActivityTitle string
	TokenValue    int
	Redemption    bool
}

type rendered struct {
	title     string
	message   string
	actionURL string
}

func render(typ model.NotificationType, relatedID string, d TemplateData) (rendered, error) {
	if d.Redemption {
		return renderRedemption(typ, relatedID, d)
	}
	switch typ {
	case model.NotifSubmission:
		return rendered{
			title:     "New Activity Submission",
			message:   fmt.Sprintf("%s has submitted %q for review.", d.ChildName, d.ActivityTitle),
			actionURL: "/parent/approvals/" + relatedID,
		}, nil
	case model.NotifApproval:
		return rendered{
			title:     "Activity Approved",
			message:   fmt.Sprintf("Your submission for %q has been approved! You earned %d tokens.", d.ActivityTitle, d.TokenValue),
			actionURL: "/child/activities/" + relatedID,
		}, nil
	case model.NotifRejection:
		return rendered{
			title:     "Activity Needs Revision",
			message:   fmt.Sprintf("Your submission for %q needs some changes. Check the feedback and try again.", d.ActivityTitle),
			actionURL: "/child/activities/" + relatedID,
		}, nil
	case model.NotifReminder:
		return rendered{
			title:     "Activity Reminder",
			message:   fmt.Sprintf("Don't forget to complete %q before it expires.", d.ActivityTitle),
			actionURL: "/child/activities/" + relatedID,
		}, nil
	}
	return rendered{}, fmt.Errorf("unknown notification type %q", typ)
}

func renderRedemption(typ model.NotificationType, relatedID string, d TemplateData) (rendered, error) {
	switch typ {
	case model.NotifSubmission:
		return rendered{
			title:     "New Redemption Request",
			message:   fmt.Sprintf("%s has requested %q.", d.ChildName, d.ActivityTitle),
			actionURL: "/parent/redemptions/" + relatedID,
		}, nil
	case model.NotifApproval:
		return rendered{
			title:     "Redemption Approved",
			message:   fmt.Sprintf("Your request %q has been approved! %d tokens were spent.", d.ActivityTitle, d.TokenValue),
			actionURL: "/child/redemptions/" + relatedID,
		}, nil
	case model.NotifRejection:
		return rendered{
			title:     "Redemption Declined",
			message:   fmt.Sprintf("Your request %q was not approved. Check the feedback.", d.ActivityTitle),
			actionURL: "/child/redemptions/" + relatedID,
		}, nil
	}
	return rendered{}, fmt.Errorf("no redemption template for %q", typ)
}
