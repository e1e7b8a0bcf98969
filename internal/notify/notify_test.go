package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"testing"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/statement"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func suspended() *statement.ExtendedProcessError {
	return &statement.ExtendedProcessError{
		Collector: "bca",
		AccountID: 7,
		Err:       fmt.Errorf("%w: token required", collector.ErrExtendedProcess),
	}
}

func TestNewMailer(t *testing.T) {
	_, err := NewMailer(SmtpConfig{}, &telemetry.Recorder{})
	require.Error(t, err)
	_, err = NewMailer(SmtpConfig{Server: "localhost", Port: 25}, &telemetry.Recorder{})
	require.Error(t, err)
	_, err = NewMailer(SmtpConfig{Server: "localhost", Port: 25, EmailAddress: "bot@example.com"}, &telemetry.Recorder{})
	require.Error(t, err)

	config := SmtpConfig{Server: "localhost", Port: 25, EmailAddress: "bot@example.com", Notify: []string{"ops@example.com"}}
	require.True(t, config.Enabled())
	_, err = NewMailer(config, &telemetry.Recorder{})
	require.NoError(t, err)
}

func TestExtendedProcessMail(t *testing.T) {
	mailer, err := NewMailer(SmtpConfig{
		Server:       "localhost",
		Port:         25,
		EmailAddress: "bot@example.com",
		Notify:       []string{"ops@example.com", "finance@example.com"},
	}, &telemetry.Recorder{})
	require.NoError(t, err)

	mail := mailer.extendedProcessMail(suspended())
	require.Equal(t, "Bank Statements <bot@example.com>", mail.From)
	require.Equal(t, []string{"ops@example.com", "finance@example.com"}, mail.To)
	require.Contains(t, mail.Subject, "[bca]")
	require.Contains(t, string(mail.Text), "bank account 7")
	require.Contains(t, string(mail.Text), "--password bca=<password>")
}

func TestSendFailureIsReported(t *testing.T) {
	rec := &telemetry.Recorder{}
	mailer, err := NewMailer(SmtpConfig{
		// nothing listens on the discard port
		Server:       "127.0.0.1",
		Port:         9,
		EmailAddress: "bot@example.com",
		Notify:       []string{"ops@example.com"},
	}, rec)
	require.NoError(t, err)

	err = mailer.NotifyExtendedProcess(context.Background(), suspended())
	require.Error(t, err)
	require.True(t, rec.Has("broken", report_mailer_send))
}

// TestNotifyThroughSmtp needs docker, set BANKSTATEMENTS_CONTAINER_TESTS to run it.
func TestNotifyThroughSmtp(t *testing.T) {
	if os.Getenv("BANKSTATEMENTS_CONTAINER_TESTS") == "" {
		t.Skip("BANKSTATEMENTS_CONTAINER_TESTS is not set")
	}
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, server.Terminate(context.Background()))
	})

	host, err := server.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := server.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := server.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	port, err := strconv.Atoi(smtpPort.Port())
	require.NoError(t, err)
	mailer, err := NewMailer(SmtpConfig{
		Server:       host,
		Port:         port,
		EmailAddress: "bot@example.com",
		Password:     "default",
		Notify:       []string{"ops@example.com"},
	}, &telemetry.Recorder{})
	require.NoError(t, err)

	require.NoError(t, mailer.NotifyExtendedProcess(ctx, suspended()))

	res, err := resty.New().R().Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "bank account 7")
}
