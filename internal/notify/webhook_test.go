package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/achgen/internal/returns"
)

func TestReturnAppliedPostsEvent(t *testing.T) {
	var got returns.Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	event := returns.Event{
		RecordID:      uuid.New(),
		EntryID:       uuid.New(),
		OriginalTrace: "231380100000001",
		Type:          returns.TypeReturn,
		Code:          "R10",
		Description:   "Customer advises not authorized",
		Severity:      returns.SeverityCritical,
		HardReturn:    true,
	}

	NewWebhook(srv.URL).ReturnApplied(context.Background(), event)

	assert.Equal(t, event, got)
}

func TestReturnAppliedSwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	// Must not panic or block; failures are logged only.
	NewWebhook(srv.URL).ReturnApplied(context.Background(), returns.Event{RecordID: uuid.New()})
	NewWebhook("http://127.0.0.1:0").ReturnApplied(context.Background(), returns.Event{RecordID: uuid.New()})
}
