package email

import (
	"fmt"
	"log"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	baseURL     string
	sendGridKey string
	useSendGrid bool
}

// NewService creates a new email service
// If sendGridAPIKey is provided, emails will be sent via SendGrid
// Otherwise, emails will be logged to console (development mode)
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		baseURL:     baseURL,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// SendPaymentFailedEmail notifies a user that their subscription payment
// did not go through
func (s *Service) SendPaymentFailedEmail(toEmail, toName string) error {
	billingURL := fmt.Sprintf("%s/account/billing", s.baseURL)

	subject := "Action needed: your BibleGPT payment failed"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Payment Failed</h2>
			<p>Hi %s,</p>
			<p>We couldn't process the payment for your BibleGPT subscription. Your account is now past due and premium features are paused.</p>
			<p>Please update your payment method to restore access:</p>
			<p><a href="%s" style="background-color: #4A90E2; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Update Payment Method</a></p>
			<p>Or copy and paste this link into your browser:</p>
			<p><a href="%s">%s</a></p>
			<p>We'll retry the charge automatically over the next few days.</p>
			<p>Thanks,<br>The BibleGPT Team</p>
		</body>
		</html>
	`, toName, billingURL, billingURL, billingURL)

	plainText := fmt.Sprintf(`
Hi %s,

We couldn't process the payment for your BibleGPT subscription. Your account is now past due and premium features are paused.

Please update your payment method to restore access:

%s

We'll retry the charge automatically over the next few days.

Thanks,
The BibleGPT Team
	`, toName, billingURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}

	// Development mode: log to console
	return s.logEmailToConsole(toEmail, toName, subject, billingURL)
}

// SendTrialEndingEmail reminds a user their free trial is about to end
func (s *Service) SendTrialEndingEmail(toEmail, toName string, trialEndsAt time.Time) error {
	subscribeURL := fmt.Sprintf("%s/subscribe", s.baseURL)
	endDate := trialEndsAt.Format("January 2, 2006")

	subject := "Your BibleGPT trial ends soon"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Your Trial Is Ending</h2>
			<p>Hi %s,</p>
			<p>Your free BibleGPT trial ends on <strong>%s</strong>.</p>
			<p>Subscribe now to keep your daily devotionals and unlimited conversations:</p>
			<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Choose a Plan</a></p>
			<p>Or copy and paste this link into your browser:</p>
			<p><a href="%s">%s</a></p>
			<p>Thanks,<br>The BibleGPT Team</p>
		</body>
		</html>
	`, toName, endDate, subscribeURL, subscribeURL, subscribeURL)

	plainText := fmt.Sprintf(`
Hi %s,

Your free BibleGPT trial ends on %s.

Subscribe now to keep your daily devotionals and unlimited conversations:

%s

Thanks,
The BibleGPT Team
	`, toName, endDate, subscribeURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}

	// Development mode: log to console
	return s.logEmailToConsole(toEmail, toName, subject, subscribeURL)
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)

	if err != nil {
		log.Printf("❌ SendGrid error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("❌ SendGrid returned error status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent successfully to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

// logEmailToConsole logs email details to console (development mode)
func (s *Service) logEmailToConsole(toEmail, toName, subject, actionURL string) error {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   Action URL: %s", actionURL)
	log.Printf("   ---")
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	log.Printf("   Set SENDGRID_API_KEY environment variable to enable email sending")
	log.Printf("   ---")
	return nil
}
