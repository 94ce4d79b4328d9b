package bootstrap

import (
	"strings"

	"github.com/wolfman30/pharmacy-order-relay/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
	"github.com/wolfman30/pharmacy-order-relay/internal/events"
	"github.com/wolfman30/pharmacy-order-relay/internal/quotation"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// BuildMessenger creates the WhatsApp sender. It returns nil and a reason
// when credentials are missing.
func BuildMessenger(cfg *appconfig.Config) (*whatsapp.Client, string) {
	if cfg == nil {
		return nil, "missing config"
	}
	if strings.TrimSpace(cfg.WhatsAppAccessToken) == "" {
		return nil, "WHATSAPP_ACCESS_TOKEN not set"
	}
	if strings.TrimSpace(cfg.WhatsAppPhoneNumberID) == "" {
		return nil, "WHATSAPP_PHONE_NUMBER_ID not set"
	}
	return whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken:      cfg.WhatsAppAccessToken,
		PhoneNumberID:    cfg.WhatsAppPhoneNumberID,
		APIBase:          cfg.WhatsAppAPIURL,
		TemplateName:     cfg.WhatsAppTemplateName,
		TemplateLanguage: cfg.WhatsAppTemplateLanguage,
		Timeout:          cfg.MessagingTimeout,
	}), ""
}

// BuildQuoter creates the partner commerce client.
func BuildQuoter(cfg *appconfig.Config, logger *logging.Logger) (*quotation.Client, error) {
	if cfg == nil {
		return quotation.New(quotation.Config{Logger: logger})
	}
	return quotation.New(quotation.Config{
		BaseURL: cfg.PartnerAPIBaseURL,
		APIKey:  cfg.PartnerAPIKey,
		Timeout: cfg.PartnerTimeout,
		Logger:  logger,
	})
}

// BuildEventPublisher connects to Kafka when brokers are configured. With no
// brokers it returns a nil publisher and order events are skipped.
func BuildEventPublisher(cfg *appconfig.Config, logger *logging.Logger) (events.Publisher, func(), error) {
	noop := func() {}
	if cfg == nil || len(cfg.KafkaBrokers) == 0 {
		return nil, noop, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
	if err != nil {
		return nil, noop, err
	}
	return publisher, publisher.Close, nil
}
