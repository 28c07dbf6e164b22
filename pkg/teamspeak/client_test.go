package teamspeak

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nu11ified/sync-server/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// fakeQueryServer speaks just enough ServerQuery to exercise the adapter.
type fakeQueryServer struct {
	listener net.Listener
	commands atomic.Int64
	// respond maps a command prefix to its payload line (may be empty)
	// and error line.
	respond map[string]string
	fail    map[string]string
}

func newFakeQueryServer(t *testing.T) *fakeQueryServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fakeQueryServer{
		listener: listener,
		respond:  make(map[string]string),
		fail:     make(map[string]string),
	}
	go srv.serve()
	t.Cleanup(func() { listener.Close() })
	return srv
}

func (s *fakeQueryServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeQueryServer) handle(conn net.Conn) {
	defer conn.Close()
	fmt.Fprint(conn, "TS3\n\r")
	fmt.Fprint(conn, "Welcome to the TeamSpeak 3 ServerQuery interface\n\r")

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		command := strings.TrimSpace(line)
		if command == "quit" {
			return
		}
		s.commands.Add(1)

		handled := false
		for prefix, errLine := range s.fail {
			if strings.HasPrefix(command, prefix) {
				fmt.Fprintf(conn, "%s\n\r", errLine)
				handled = true
				break
			}
		}
		if handled {
			continue
		}
		for prefix, payload := range s.respond {
			if strings.HasPrefix(command, prefix) {
				if payload != "" {
					fmt.Fprintf(conn, "%s\n\r", payload)
				}
				fmt.Fprint(conn, "error id=0 msg=ok\n\r")
				handled = true
				break
			}
		}
		if !handled {
			// login, use and anything unconfigured succeed silently.
			fmt.Fprint(conn, "error id=0 msg=ok\n\r")
		}
	}
}

func (s *fakeQueryServer) addr(t *testing.T) (string, int) {
	t.Helper()
	addr := s.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func newLiveClient(t *testing.T, srv *fakeQueryServer) *Client {
	t.Helper()
	host, port := srv.addr(t)
	c, err := New(Config{
		Host:     host,
		Port:     port,
		ServerID: 1,
		Login:    "serveradmin",
		Password: "secret",
		Backoff:  time.Millisecond,
	}, testLogger(), nil)
	require.NoError(t, err)
	assert.False(t, c.Simulated())
	return c
}

func TestSimulatedModeWithoutCredentials(t *testing.T) {
	c, err := New(Config{Host: "ts.example.com"}, testLogger(), nil)
	require.NoError(t, err)
	assert.True(t, c.Simulated())

	groups, _, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, groups)

	assert.NoError(t, c.AddToGroup(context.Background(), "uid", "g1"))
	assert.NoError(t, c.RemoveFromGroup(context.Background(), "uid", "g1"))
}

func TestListGroupsFiltersRegularGroups(t *testing.T) {
	srv := newFakeQueryServer(t)
	srv.respond["servergrouplist"] = `sgid=1 name=Guest\sServer\sQuery type=2|sgid=6 name=Server\sAdmin type=1|sgid=7 name=Normal type=1`

	c := newLiveClient(t, srv)
	groups, cached, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []Group{
		{ID: "6", Name: "Server Admin"},
		{ID: "7", Name: "Normal"},
	}, groups)

	// Second listing within the TTL is served from cache, no new session.
	before := srv.commands.Load()
	_, cached, err = c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, before, srv.commands.Load())
}

func TestAddToGroup(t *testing.T) {
	srv := newFakeQueryServer(t)
	srv.respond["clientgetdbidfromuid"] = "cluid=abc123= cldbid=42"
	srv.respond["servergroupaddclient"] = ""

	c := newLiveClient(t, srv)
	require.NoError(t, c.AddToGroup(context.Background(), "abc123=", "6"))
}

func TestAddToGroupDuplicateIsSuccess(t *testing.T) {
	srv := newFakeQueryServer(t)
	srv.respond["clientgetdbidfromuid"] = "cluid=abc123= cldbid=42"
	srv.fail["servergroupaddclient"] = `error id=2561 msg=duplicate\sentry`

	c := newLiveClient(t, srv)
	assert.NoError(t, c.AddToGroup(context.Background(), "abc123=", "6"))
}

func TestAddToGroupUnknownClientFails(t *testing.T) {
	srv := newFakeQueryServer(t)
	srv.fail["clientgetdbidfromuid"] = `error id=512 msg=invalid\sclientID`

	c := newLiveClient(t, srv)
	err := c.AddToGroup(context.Background(), "missing", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "512")
}

func TestRemoveFromGroup(t *testing.T) {
	srv := newFakeQueryServer(t)
	srv.respond["clientgetdbidfromuid"] = "cluid=abc123= cldbid=42"
	srv.respond["servergroupdelclient"] = ""

	c := newLiveClient(t, srv)
	require.NoError(t, c.RemoveFromGroup(context.Background(), "abc123=", "6"))
}

func TestUnreachableServerFails(t *testing.T) {
	c, err := New(Config{
		Host:     "127.0.0.1",
		Port:     1, // nothing listens here
		Login:    "serveradmin",
		Password: "secret",
		Backoff:  time.Millisecond,
	}, testLogger(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.AddToGroup(ctx, "uid", "6"))
}
