package sftp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	pkgsftp "github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/objectfs"
	"github.com/marmos91/dray/pkg/store/object/memory"
)

type authCounter struct {
	nopMetrics
	mu      sync.Mutex
	results map[string]int
}

func (a *authCounter) RecordAuth(result string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[result]++
}

func (a *authCounter) count(result string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results[result]
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(string, time.Duration, string) {}
func (nopMetrics) RecordRequestStart(string)                   {}
func (nopMetrics) RecordRequestEnd(string)                     {}
func (nopMetrics) RecordBytes(string, int64)                   {}
func (nopMetrics) RecordAuth(string)                           {}
func (nopMetrics) RecordConnectionAccepted()                   {}
func (nopMetrics) RecordConnectionClosed()                     {}
func (nopMetrics) RecordConnectionForceClosed()                {}
func (nopMetrics) SetActiveConnections(int32)                  {}

type fixture struct {
	adapter *Adapter
	store   *memory.Store
	user    ssh.Signer
	metrics *authCounter
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	user := newSigner(t)
	require.NoError(t, store.Put(context.Background(), auth.AuthorizedKeysKey("alice"),
		ssh.MarshalAuthorizedKey(user.PublicKey())))

	hostKey, err := auth.GenerateHostKey()
	require.NoError(t, err)
	az, err := auth.NewAuthorizer(auth.ModeHome, false)
	require.NoError(t, err)

	m := &authCounter{results: map[string]int{}}
	a, err := New(Config{Version: "test", HandshakeTimeout: 5 * time.Second}, Deps{
		FS:            objectfs.New(store, objectfs.Options{}),
		Authenticator: auth.NewAuthenticator(auth.NewKeyStore(store, auth.KeyStoreConfig{})),
		Authorizer:    az,
		HostKeys:      []ssh.Signer{hostKey},
		Metrics:       m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.CancelRequests() })
	return &fixture{adapter: a, store: store, user: user, metrics: m}
}

// dial runs one server connection over a pipe and completes the client
// side of the SSH handshake.
func (f *fixture) dial(t *testing.T, user string, signer ssh.Signer) (*ssh.Client, error) {
	t.Helper()
	server, client := net.Pipe()
	go f.adapter.NewConnection(server).Serve(f.adapter.ShutdownCtx)

	conn, chans, reqs, err := ssh.NewClientConn(client, "pipe", &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	c := ssh.NewClient(conn, chans, reqs)
	t.Cleanup(func() { _ = c.Close() })
	return c, nil
}

func TestSSHEndToEnd(t *testing.T) {
	f := newFixture(t)
	c, err := f.dial(t, "alice", f.user)
	require.NoError(t, err)
	assert.Equal(t, "SSH-2.0-dray_test", string(c.ServerVersion()))

	client, err := pkgsftp.NewClient(c)
	require.NoError(t, err)
	defer client.Close()

	w, err := client.Create("hello.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello over ssh"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := client.Open("/home/alice/hello.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello over ssh", string(data))
	require.NoError(t, r.Close())

	// The key file itself is never reachable.
	_, err = client.Stat("/.ssh/alice/authorized_keys")
	assert.Error(t, err)

	assert.Equal(t, 1, f.metrics.count("success"))
}

func TestSSHRejectsUnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.dial(t, "alice", newSigner(t))
	assert.Error(t, err)
	_, err = f.dial(t, "mallory", f.user)
	assert.Error(t, err)
	assert.Zero(t, f.metrics.count("success"))
	assert.GreaterOrEqual(t, f.metrics.count("failure"), 2)
}

func TestSSHChannelDiscipline(t *testing.T) {
	f := newFixture(t)
	c, err := f.dial(t, "alice", f.user)
	require.NoError(t, err)

	_, _, err = c.OpenChannel("direct-tcpip", nil)
	var oce *ssh.OpenChannelError
	require.ErrorAs(t, err, &oce)
	assert.Equal(t, ssh.UnknownChannelType, oce.Reason)

	s, err := c.NewSession()
	require.NoError(t, err)
	assert.Error(t, s.RequestSubsystem("scp"))
	assert.Error(t, s.Shell())
	_ = s.Close()

	s, err = c.NewSession()
	require.NoError(t, err)
	assert.NoError(t, s.RequestSubsystem("sftp"))
	_ = s.Close()
}

func TestNewValidation(t *testing.T) {
	az, err := auth.NewAuthorizer(auth.ModeBucket, false)
	require.NoError(t, err)
	deps := Deps{
		FS:            objectfs.New(memory.New(), objectfs.Options{}),
		Authenticator: auth.NewAuthenticator(),
		Authorizer:    az,
	}

	_, err = New(Config{}, deps)
	assert.ErrorIs(t, err, ErrNoHostKeys)

	_, err = New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultMaxRequestsPerConnection, cfg.MaxRequestsPerConnection)
	assert.NotZero(t, cfg.MaxPacketSize)
	assert.Equal(t, "SSH-2.0-dray_dev", cfg.ServerVersion())
}

func TestIdentityFromPermissions(t *testing.T) {
	_, ok := identityFrom(nil)
	assert.False(t, ok)

	id, ok := identityFrom(&ssh.Permissions{Extensions: map[string]string{
		extUsername: "alice", extHome: "/home/alice", extFingerprint: "SHA256:x",
	}})
	require.True(t, ok)
	assert.Equal(t, auth.Identity{Username: "alice", Home: "/home/alice", Fingerprint: "SHA256:x"}, id)
}
