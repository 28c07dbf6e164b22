package teamspeak

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Nu11ified/sync-server/pkg/platform"
)

const defaultDialTimeout = 5 * time.Second

// queryError is a ServerQuery-level failure (error id != 0).
type queryError struct {
	ID      int
	Message string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("server query error %d: %s", e.ID, e.Message)
}

// session is one authenticated ServerQuery connection.
type session struct {
	conn   net.Conn
	reader *bufio.Reader
}

// dial opens a query session: TCP connect, banner, login, server select.
func dial(ctx context.Context, cfg Config) (*session, error) {
	dialer := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, platform.Classify(platform.TeamSpeak, "dial", err)
	}

	s := &session{conn: conn, reader: bufio.NewReader(conn)}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	// The server greets with "TS3" and a welcome line before accepting
	// commands.
	for i := 0; i < 2; i++ {
		if _, err := s.readLine(); err != nil {
			s.Close()
			return nil, platform.Classify(platform.TeamSpeak, "banner", err)
		}
	}

	login := fmt.Sprintf("login client_login_name=%s client_login_password=%s", escape(cfg.Login), escape(cfg.Password))
	if _, err := s.exec(login); err != nil {
		s.Close()
		return nil, wrapQueryErr("login", err)
	}

	if _, err := s.exec(fmt.Sprintf("use sid=%d", cfg.ServerID)); err != nil {
		s.Close()
		return nil, wrapQueryErr("use", err)
	}

	return s, nil
}

// Close sends a best-effort quit and closes the connection.
func (s *session) Close() error {
	fmt.Fprint(s.conn, "quit\n")
	return s.conn.Close()
}

// exec sends one command and reads until its error line. The returned rows
// are the parsed payload entries, if any.
func (s *session) exec(command string) ([]map[string]string, error) {
	if _, err := fmt.Fprintf(s.conn, "%s\n", command); err != nil {
		return nil, err
	}

	var rows []map[string]string
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "error ") {
			fields := parseRow(strings.TrimPrefix(line, "error "))
			id, _ := strconv.Atoi(fields["id"])
			if id != 0 {
				return rows, &queryError{ID: id, Message: fields["msg"]}
			}
			return rows, nil
		}

		for _, raw := range strings.Split(line, "|") {
			rows = append(rows, parseRow(raw))
		}
	}
}

func (s *session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.Trim(line, "\r\n"), nil
}

// parseRow parses "key=value key2=value2" into a map, unescaping values.
func parseRow(raw string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Fields(raw) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			fields[pair] = ""
			continue
		}
		fields[key] = unescape(value)
	}
	return fields
}

// wrapQueryErr classifies a session failure: query-level errors (bad
// credentials, unknown ids) are permanent, transport errors transient.
func wrapQueryErr(op string, err error) error {
	if qe, ok := err.(*queryError); ok {
		return platform.NewError(platform.TeamSpeak, op, platform.KindPermanent, qe)
	}
	return platform.Classify(platform.TeamSpeak, op, err)
}

// ServerQuery escape table, applied to every transmitted value.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`/`, `\/`,
	` `, `\s`,
	`|`, `\p`,
	"\a", `\a`,
	"\b", `\b`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
)

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\/`, `/`,
	`\s`, ` `,
	`\p`, `|`,
	`\a`, "\a",
	`\b`, "\b",
	`\f`, "\f",
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\v`, "\v",
)

func escape(value string) string {
	return escaper.Replace(value)
}

func unescape(value string) string {
	return unescaper.Replace(value)
}
