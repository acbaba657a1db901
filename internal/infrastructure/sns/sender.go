package sns

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/lead-otp-gateway/internal/config"
	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/phone"
)

// Publisher is the subset of the SNS client the sender uses.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers templates as plain SMS via AWS SNS. Each template name maps to a text
// with WhatsApp-style {{1}}, {{2}} placeholders filled from the body values.
type Sender struct {
	client   Publisher
	texts    map[string]string
	senderID string
}

func NewSender(ctx context.Context, cfg *config.Config, texts map[string]string) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SNSRegion)}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return NewSenderWithClient(sns.NewFromConfig(awsCfg, clientOpts...), texts, cfg.SNSSenderID), nil
}

func NewSenderWithClient(client Publisher, texts map[string]string, senderID string) *Sender {
	return &Sender{client: client, texts: texts, senderID: senderID}
}

func (s *Sender) SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error {
	msg, err := s.render(tmpl)
	if err != nil {
		return err
	}
	in := &sns.PublishInput{
		PhoneNumber: aws.String(phone.International(to)),
		Message:     aws.String(msg),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType: aws.String("String"), StringValue: aws.String(s.senderID),
		}
	}
	_, err = s.client.Publish(ctx, in)
	return err
}

func (s *Sender) render(tmpl domain.Template) (string, error) {
	text, ok := s.texts[tmpl.Name]
	if !ok {
		return "", fmt.Errorf("sns: no sms text for template %q", tmpl.Name)
	}
	pairs := make([]string, 0, 2*len(tmpl.BodyValues))
	for i, v := range tmpl.BodyValues {
		pairs = append(pairs, "{{"+strconv.Itoa(i+1)+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text), nil
}
