package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/models"
)

func TestConnectQRData(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	session := &models.Session{
		ID:           uuid.New(),
		SessionToken: "deadbeefdeadbeefdeadbeefdeadbeef",
		Status:       models.SessionActive,
	}

	data := connectQRData(session)
	parts := strings.Split(data, ";")
	require.Len(t, parts, 3)
	assert.Equal(t, "session:"+session.ID.String(), parts[0])
	assert.Equal(t, "token:"+session.SessionToken, parts[1])

	h := hmac.New(sha256.New, []byte("test-secret"))
	fmt.Fprintf(h, "%s:%s", session.ID.String(), session.SessionToken)
	want := "signature:" + hex.EncodeToString(h.Sum(nil))
	assert.Equal(t, want, parts[2])
}
