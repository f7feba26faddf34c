package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core"
	logsvc "github.com/intigym/backoffice/services/logger"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, logsvc.NewNopLogger())

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Ana Torres", Address: "ana@example.com"}},
		Subject:      "Bienvenida",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"Name":           "Ana Torres",
			"Plan":           "mensual",
			"ExpirationDate": "1 de julio de 2024",
			"DNI":            "45871236",
		},
	}
	require.NoError(t, msg.Attach(bytes.NewReader([]byte("\x89PNG")), "QR_Ana_Torres_45871236.png", "image/png"))
	noRecipient := &core.EmailMessage{Subject: "nadie", BodyStr: "hola"}

	svc.SendMessages(msg, noRecipient)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Hola Ana Torres")
	assert.Contains(t, sent[0].TextContent, "hasta el 1 de julio de 2024")
	assert.Contains(t, sent[0].HTMLContent, "Ana Torres")
	assert.True(t, sent[0].HasAttachments())

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleFormat(t *testing.T) {
	conf := core.NewTestConfig()
	svc := &consoleService{conf: conf, from: conf.DefaultFromEmail, subjPrefix: "[Inti-Gym] "}

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "luis@example.com"}},
		Cc:          []mail.Address{{Address: "caja@example.com"}},
		Subject:     "Recordatorio",
		TextContent: "Tu membresía vence pronto",
		HTMLContent: "<p>Tu membresía vence pronto</p>",
	}
	require.NoError(t, msg.Attach(strings.NewReader("qr"), "qr.png", "image/png"))

	body, err := svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Inti-Gym] Recordatorio\r\n")
	assert.Contains(t, body, "To: <luis@example.com>\r\n")
	assert.Contains(t, body, "Cc: <caja@example.com>\r\n")
	assert.NotContains(t, body, "Bcc:")
	assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, body, "Tu membresía vence pronto")
	assert.Contains(t, body, `filename="qr.png"`)
}

func TestSendgridPrepare(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.test"
	svc := NewSendgridService(conf, logsvc.NewNopLogger())

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject:     "Hola",
		TextContent: "texto",
	}
	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Inti-Gym] Hola", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ana@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.test"
	assert.IsType(t, &consoleService{}, New(conf, logsvc.NewNopLogger()))

	conf.TestMode = false
	assert.IsType(t, &sendgridService{}, New(conf, logsvc.NewNopLogger()))
}
