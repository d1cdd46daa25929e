package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func TestAuthOptNoneIsNil(t *testing.T) {
	opt, err := authOpt(Config{Auth: AuthNone})
	require.NoError(t, err)
	assert.Nil(t, opt)

	opt, err = authOpt(Config{})
	require.NoError(t, err)
	assert.Nil(t, opt)
}

func TestAuthOptSASLPlain(t *testing.T) {
	opt, err := authOpt(Config{Auth: AuthSASLPlain, SASLUser: "user", SASLPass: "pass"})
	require.NoError(t, err)
	assert.NotNil(t, opt)
}

func TestAuthOptUnknownMechanism(t *testing.T) {
	_, err := authOpt(Config{Auth: "bogus"})
	assert.ErrorIs(t, err, models.ErrConnectFailed)
}

func TestAuthOptKerberosMissingKeytabFails(t *testing.T) {
	_, err := authOpt(Config{
		Auth: AuthKerberos,
		Kerberos: KerberosConfig{
			KrbConfPath: "/nonexistent/krb5.conf",
			KeytabPath:  "/nonexistent/kafka.keytab",
			Realm:       "EXAMPLE.COM",
			Username:    "svc-dataflow",
			Service:     "kafka",
		},
	})
	assert.ErrorIs(t, err, models.ErrConnectFailed)
}

func TestDialWithUnknownMechanismFailsBeforeNetworkIO(t *testing.T) {
	_, err := Dial(Config{Brokers: []string{"127.0.0.1:9092"}, Auth: "bogus"})
	assert.ErrorIs(t, err, models.ErrConnectFailed)
}
