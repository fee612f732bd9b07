package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMTPSendRejectsEmptyRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.test", Port: 587, From: "noreply@recurra.dev"})

	// Must fail before any dial; the interface does not promise a recipient.
	err := p.Send(context.Background(), nil, "subject", "<p>body</p>")
	require.ErrorContains(t, err, "no recipients")
}
