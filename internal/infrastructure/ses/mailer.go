package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/infrastructure/awscfg"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer sends email through Amazon SES v2.
type Mailer struct {
	client sesAPI
	from   string
}

func NewMailer(cfg *config.Config) (*Mailer, error) {
	awsCfg, err := awscfg.Load(context.Background(), cfg, cfg.SESRegion)
	if err != nil {
		return nil, err
	}
	opts := []func(*sesv2.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sesv2.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Mailer{client: sesv2.NewFromConfig(awsCfg, opts...), from: cfg.MailFrom}, nil
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}
