package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	got []EmailRequestedEvent
	err error
}

func (m *recordingMailer) Deliver(_ context.Context, ev EmailRequestedEvent) error {
	m.got = append(m.got, ev)
	return m.err
}

func TestHandleMessageDelivers(t *testing.T) {
	ev := NewEmailRequestedEvent("a@example.com", "New seat match", "Listing #2 matches")
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	m := &recordingMailer{}
	require.NoError(t, handleMessage(context.Background(), body, m))
	require.Len(t, m.got, 1)
	assert.Equal(t, ev, m.got[0])
	assert.NotEmpty(t, m.got[0].ID)
}

func TestHandleMessageRejects(t *testing.T) {
	m := &recordingMailer{}
	assert.Error(t, handleMessage(context.Background(), []byte("{not json"), m))
	assert.Error(t, handleMessage(context.Background(), []byte(`{"subject":"x"}`), m))
	assert.Empty(t, m.got)

	m.err = errors.New("smtp down")
	body, _ := json.Marshal(NewEmailRequestedEvent("a@example.com", "s", "b"))
	assert.ErrorContains(t, handleMessage(context.Background(), body, m), "smtp down")
}

func TestFileMailerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "email.log")
	m := &FileMailer{Path: path}

	require.NoError(t, m.Deliver(context.Background(), NewEmailRequestedEvent("a@example.com", "one", "first\nline")))
	require.NoError(t, m.Deliver(context.Background(), NewEmailRequestedEvent("b@example.com", "two", "second")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "to=a@example.com")
	assert.Contains(t, lines[0], `body="first line"`)
	assert.Contains(t, lines[1], `subject="two"`)
}
