package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/pkg/config"
)

var testCfg = config.MailConfig{SendGridKey: "SG.test", FromAddress: "admissions@example.edu", AppName: "Admissions"}

func TestNewPicksConsoleWithoutKey(t *testing.T) {
	_, ok := New(config.MailConfig{}, nil).(*ConsoleSender)
	assert.True(t, ok)
	_, ok = New(testCfg, nil).(*SendGridSender)
	assert.True(t, ok)
}

func TestSendGridSenderPostsMessage(t *testing.T) {
	var body map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpoint, r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(testCfg, nil).WithHost(srv.URL)
	err := sender.Send(context.Background(), Message{ToName: "Ada", ToAddress: "ada@example.com", Subject: "Admitted", Text: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer SG.test", auth)

	personalizations := body["personalizations"].([]interface{})
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[Admissions] Admitted", first["subject"])
}

func TestSendGridSenderReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewSendGridSender(testCfg, nil).WithHost(srv.URL).Send(context.Background(), Message{ToAddress: "ada@example.com", Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestConsoleSenderRecords(t *testing.T) {
	sender := NewConsoleSender(testCfg, nil)
	require.NoError(t, sender.Send(context.Background(), Message{ToAddress: "ada@example.com", Subject: "Admitted"}))
	require.Error(t, sender.Send(context.Background(), Message{}))
	assert.Len(t, sender.Sent(), 1)
}
