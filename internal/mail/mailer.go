package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Attachment is a file sent along with a message. Name overrides the filename
// shown to the recipient so on-disk artifact names stay internal.
type Attachment struct {
	Path string
	Name string
}

// Mailer sends application email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers a fully custom HTML message, used by the report path.
func (m *Mailer) Send(to, subject, html string, attachments ...Attachment) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	for _, a := range attachments {
		if a.Name != "" {
			msg.Attach(a.Path, gomail.Rename(a.Name))
		} else {
			msg.Attach(a.Path)
		}
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SendReminder delivers the standard medication reminder template.
func (m *Mailer) SendReminder(to, medicineName, scheduledTime string) error {
	html := fmt.Sprintf(`
		<h2>Medication Reminder</h2>
		<p>It's time to take your medication:</p>
		<h3>%s</h3>
		<p>Scheduled time: %s</p>
		<p>Please don't forget to mark it as done in the app once taken.</p>`,
		medicineName, scheduledTime)
	return m.Send(to, "Medication Reminder", html)
}

// SendWelcome greets a freshly registered user.
func (m *Mailer) SendWelcome(to, name string) error {
	html := fmt.Sprintf(`
		<h2>Welcome to Health &amp; Wellness System!</h2>
		<p>Hello %s,</p>
		<p>Thank you for joining our platform. We're here to help you manage your medications and wellness journey.</p>
		<ul>
			<li>Add your medications</li>
			<li>Set up reminders</li>
			<li>Check your weekly reports</li>
		</ul>`,
		name)
	return m.Send(to, "Welcome to Health & Wellness System", html)
}
