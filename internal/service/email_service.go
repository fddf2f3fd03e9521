package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService sends transactional email via Amazon SES. When no sender
// address is configured the service runs disabled and every send becomes a
// logged no-op, which keeps local development working without AWS credentials.
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendInvitation emails an invitation code to a prospective co-parent
func (s *EmailService) SendInvitation(ctx context.Context, toEmail, inviterName, code string, expiresAt time.Time) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): invitation to %s", toEmail)
		return nil
	}

	subject := fmt.Sprintf("%s invited you to join their family on Care4Kids", inviterName)
	expiry := expiresAt.Format("January 2, 2006")

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 20px; background-color: #fff; border: 2px dashed #4a90e2; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>You're Invited!</h1>
		</div>
		<div class="content">
			<p>Hi,</p>
			<p>%s has invited you to join their family on Care4Kids so you can help manage your children's devices together.</p>
			<p>Open the Care4Kids app, choose "Join a Family", and enter this code:</p>
			<div class="code">%s</div>
			<p><strong>This code expires on %s.</strong></p>
			<p>If you weren't expecting this invitation, you can safely ignore this email.</p>
		</div>
		<div class="footer">
			<p>This is an automated email from Care4Kids. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, inviterName, code, expiry)

	textBody := fmt.Sprintf(`Hi,

%s has invited you to join their family on Care4Kids so you can help manage your children's devices together.

Open the Care4Kids app, choose "Join a Family", and enter this code:

    %s

This code expires on %s.

If you weren't expecting this invitation, you can safely ignore this email.

---
This is an automated email from Care4Kids. Please do not reply.
`, inviterName, code, expiry)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendWelcome emails a short welcome note to a newly registered parent
func (s *EmailService) SendWelcome(ctx context.Context, toEmail, toName string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): welcome to %s", toEmail)
		return nil
	}

	subject := "Welcome to Care4Kids!"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Welcome to Care4Kids!</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>Your family account is ready. Here's what you can do next:</p>
			<ul>
				<li>Invite a co-parent to share family management</li>
				<li>Generate a code to link your child's device</li>
				<li>Review your family's monitoring settings</li>
			</ul>
		</div>
		<div class="footer">
			<p>This is an automated email from Care4Kids. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, toName)

	textBody := fmt.Sprintf(`Hi %s,

Your family account is ready. Here's what you can do next:
- Invite a co-parent to share family management
- Generate a code to link your child's device
- Review your family's monitoring settings

---
This is an automated email from Care4Kids. Please do not reply.
`, toName)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	log.Printf("Email sent successfully: to=%s, subject=%s", toEmail, subject)
	return nil
}
