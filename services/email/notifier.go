package emailsvc

import (
	"net/mail"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
)

// notifier turns enrollment pipeline events into templated emails.
type notifier struct {
	mailSvc core.EmailService
}

var _ enrollment.Notifier = (*notifier)(nil)

func NewEnrollmentNotifier(mailSvc core.EmailService) enrollment.Notifier {
	return &notifier{mailSvc: mailSvc}
}

func (n *notifier) SendStudentWelcome(m enrollment.StudentWelcome) {
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: m.StudentName, Address: m.To}},
		Subject:      "Welcome to " + m.SchoolName,
		TemplateName: "student-welcome",
		TemplateData: m,
	})
}

func (n *notifier) SendParentWelcome(m enrollment.ParentWelcome) {
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: m.ParentName, Address: m.To}},
		Subject:      "Your parent account",
		TemplateName: "parent-welcome",
		TemplateData: m,
	})
}

func (n *notifier) SendParentInvitation(m enrollment.ParentInvitation) {
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: m.ParentName, Address: m.To}},
		Subject:      "Confirm your link to " + m.StudentName,
		TemplateName: "parent-invitation",
		TemplateData: m,
	})
}
