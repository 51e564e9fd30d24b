package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/campaign"
	"github.com/example/sms-campaign/internal/config"
	kafkaproducer "github.com/example/sms-campaign/internal/kafka/producer"
	kafkapublisher "github.com/example/sms-campaign/internal/kafka/publisher"
	"github.com/example/sms-campaign/internal/logger"
	"github.com/example/sms-campaign/internal/models"
	"github.com/example/sms-campaign/internal/providers/factory"
	"github.com/example/sms-campaign/internal/recipients"
)

func main() {
	recipientsPath := flag.String("recipients", "", "path to the recipient CSV file (Name, Phone Number columns)")
	optOutPath := flag.String("optouts", "", "path to the opt-out list, one phone number per line")
	message := flag.String("message", "", "message template; {Name} and {Phone} are substituted per recipient")
	messageFile := flag.String("message-file", "", "read the message template from a file instead")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	var writers []io.Writer
	var auditFile io.WriteCloser
	if cfg.App.AuditLogFile != "" {
		auditFile, err = logger.FileWriter(cfg.App.AuditLogFile)
		if err != nil {
			fail("audit log init", err)
		}
		defer auditFile.Close()
		writers = append(writers, logger.DefaultWriter(cfg.App.Env), auditFile)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, writers...)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "campaign-worker").Logger()

	if *recipientsPath == "" {
		log.Fatal().Msg("-recipients flag is required")
	}
	template, err := resolveTemplate(*message, *messageFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve message template")
	}

	recipientList, err := recipients.LoadFile(*recipientsPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *recipientsPath).Msg("failed to load recipients")
	}
	log.Info().Int("count", len(recipientList)).Str("file", *recipientsPath).Msg("recipients loaded")

	optOuts := models.NewOptOutSet()
	if *optOutPath != "" {
		optOuts, err = recipients.LoadOptOutFile(*optOutPath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *optOutPath).Msg("failed to load opt-out list")
		}
		log.Info().Int("count", optOuts.Len()).Str("file", *optOutPath).Msg("opt-out list loaded")
	}

	providerLogger := log.With().
		Str("component", "sms-provider").
		Str("backend", strings.ToLower(strings.TrimSpace(cfg.Providers.Backend))).
		Logger()
	provider, err := factory.SMS(cfg.Providers, providerLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sms provider")
	}

	var status campaign.StatusPublisher
	if cfg.Kafka.Enabled() {
		kafkaLogger := log.With().Str("component", "kafka").Logger()
		prod, err := kafkaproducer.New(cfg.Kafka.Brokers, kafkaLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()

		publisher := kafkapublisher.NewEventPublisher(prod, cfg.Kafka.StatusTopic, log.With().Str("component", "event-publisher").Logger())
		if publisher == nil {
			log.Fatal().Msg("failed to create event publisher")
		}
		status = publisher
		log.Info().Str("topic", cfg.Kafka.StatusTopic).Msg("campaign events will be published to kafka")
	}

	progressLogger := log.With().Str("component", "dispatch").Logger()
	runner, err := campaign.NewRunner(campaign.Config{
		WorkerConcurrency: cfg.Engine.WorkerConcurrency,
		PollMaxAttempts:   cfg.Engine.PollMaxAttempts,
		PollDelay:         time.Duration(cfg.Engine.PollDelaySeconds) * time.Second,
	}, campaign.Dependencies{
		Provider: provider,
		Status:   status,
		Progress: func(completed, total int) {
			progressLogger.Info().Int("completed", completed).Int("total", total).Msg("dispatch progress")
		},
		Logger: log,
		Now:    time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise campaign runner")
	}

	report, err := runner.Run(ctx, campaign.Campaign{
		Recipients: recipientList,
		Template:   template,
		OptOuts:    optOuts,
	})
	if err != nil {
		if report != nil {
			renderReport(report)
		}
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("campaign run cancelled")
			return
		}
		log.Fatal().Err(err).Msg("campaign run failed")
	}

	renderReport(report)
}

func resolveTemplate(message, messageFile string) (string, error) {
	if strings.TrimSpace(message) != "" {
		return message, nil
	}
	if messageFile == "" {
		return "", errors.New("either -message or -message-file must be provided")
	}
	data, err := os.ReadFile(messageFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func renderReport(report *models.RunReport) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Phone", "Send", "Message ID", "Delivery", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, res := range report.Results {
		table.Append([]string{
			res.Recipient.Name,
			res.Recipient.Phone,
			string(res.Send),
			res.MessageID,
			string(res.Delivery),
			res.Reason,
		})
	}
	table.Render()
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("campaign worker init failed")
}
