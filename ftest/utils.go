package ftest

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"io"
	"log"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	imapserver "github.com/emersion/go-imap/server"
)

// The memory backend ships with a single account.
const (
	DefaultUser = "username"
	DefaultPass = "password"
)

// Server is an in-process IMAP server over TLS. Its INBOX starts with one
// message (UID 6) that is already read.
type Server struct {
	Addr      string
	ClientTLS *tls.Config
}

func SetupIMAPServer(t *testing.T, extraMailboxes ...string) *Server {
	t.Helper()

	serverTLS, clientTLS := testTLSConfig(t)
	be := memory.New()
	user, err := be.Login(nil, DefaultUser, DefaultPass)
	if err != nil {
		t.Fatalf("login to backend: %v", err)
	}
	for _, mailbox := range extraMailboxes {
		if strings.TrimSpace(mailbox) == "" {
			continue
		}
		if err := user.CreateMailbox(mailbox); err != nil {
			t.Fatalf("create mailbox %q: %v", mailbox, err)
		}
	}

	server := imapserver.New(be)
	server.ErrorLog = log.New(io.Discard, "", 0)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverTLS)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	t.Cleanup(func() {
		_ = server.Close()
		_ = ln.Close()
		select {
		case <-errCh:
		case <-time.After(time.Second):
		}
	})

	return &Server{
		Addr:      ln.Addr().String(),
		ClientTLS: clientTLS,
	}
}

func (s *Server) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.DialTLS(s.Addr, s.ClientTLS)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := c.Login(DefaultUser, DefaultPass); err != nil {
		t.Fatalf("login: %v", err)
	}
	return c
}

// Append delivers raw to mailbox over a separate connection.
func (s *Server) Append(t *testing.T, mailbox, raw string, flags ...string) {
	t.Helper()
	c := s.dial(t)
	defer func() { _ = c.Logout() }()

	if err := c.Append(mailbox, flags, time.Now(), bytes.NewBufferString(raw)); err != nil {
		t.Fatalf("append to %q: %v", mailbox, err)
	}
}

// Flags returns the flags of one message.
func (s *Server) Flags(t *testing.T, mailbox string, uid uint32) []string {
	t.Helper()
	c := s.dial(t)
	defer func() { _ = c.Logout() }()

	if _, err := c.Select(mailbox, true); err != nil {
		t.Fatalf("examine %q: %v", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchFlags}, messages)
	}()

	var flags []string
	found := false
	for msg := range messages {
		flags = msg.Flags
		found = true
	}
	if err := <-done; err != nil {
		t.Fatalf("fetch flags: %v", err)
	}
	if !found {
		t.Fatalf("message %d not found in %q", uid, mailbox)
	}
	return flags
}

func SampleMessage(from, subject, body string) string {
	builder := &strings.Builder{}
	builder.WriteString("From: ")
	builder.WriteString(from)
	builder.WriteString("\r\n")
	builder.WriteString("To: archive@example.com\r\n")
	builder.WriteString("Subject: ")
	builder.WriteString(subject)
	builder.WriteString("\r\n")
	builder.WriteString("Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return builder.String()
}

// SampleMessageWithAttachment builds a multipart/mixed message with a text
// body and one base64 attachment.
func SampleMessageWithAttachment(from, subject, body, filename string, attachment []byte) string {
	const boundary = "ftest-boundary"
	builder := &strings.Builder{}
	builder.WriteString("From: ")
	builder.WriteString(from)
	builder.WriteString("\r\n")
	builder.WriteString("To: archive@example.com\r\n")
	builder.WriteString("Subject: ")
	builder.WriteString(subject)
	builder.WriteString("\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: multipart/mixed; boundary=" + boundary + "\r\n")
	builder.WriteString("\r\n")
	builder.WriteString("--" + boundary + "\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	builder.WriteString("\r\n")
	builder.WriteString("--" + boundary + "\r\n")
	builder.WriteString("Content-Type: application/octet-stream\r\n")
	builder.WriteString("Content-Disposition: attachment; filename=\"" + filename + "\"\r\n")
	builder.WriteString("Content-Transfer-Encoding: base64\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(base64.StdEncoding.EncodeToString(attachment))
	builder.WriteString("\r\n")
	builder.WriteString("--" + boundary + "--\r\n")
	return builder.String()
}

// testTLSConfig returns a self-signed server config and a client config that
// trusts it.
func testTLSConfig(t *testing.T) (*tls.Config, *tls.Config) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(parsed)

	serverTLS := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		}},
	}
	clientTLS := &tls.Config{RootCAs: roots}
	return serverTLS, clientTLS
}
