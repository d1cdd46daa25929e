package notify

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func TestSendNoRecipients(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"})
	err := m.Send(Message{Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, models.ErrConnectFailed)
}

func TestSendBuildsMessageAndCallsTransport(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := New(Config{Host: "smtp.example.com", Port: 587, Username: "bot", Password: "secret", From: "alerts@example.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(Message{To: []string{"oncall@example.com"}, Subject: "anomaly detected", Body: "row count dropped"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: anomaly detected")
	assert.Contains(t, string(gotMsg), "row count dropped")
}

func TestSendTransportFailureWrapped(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := m.Send(Message{To: []string{"oncall@example.com"}, Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, models.ErrConnectFailed)
}
